package ingestion

import "errors"

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrJobTrackerRequired is returned when a job tracker is not provided.
	ErrJobTrackerRequired = errors.New("job tracker required")

	// ErrBlobStoreRequired is returned when a blob store is not provided.
	ErrBlobStoreRequired = errors.New("blob store required")

	// ErrTextExtractorRequired is returned when a text extractor is not provided.
	ErrTextExtractorRequired = errors.New("text extractor required")

	// ErrMetadataExtractorRequired is returned when a metadata extractor is not provided.
	ErrMetadataExtractorRequired = errors.New("metadata extractor required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrIndexerRequired is returned when an indexer is not provided.
	ErrIndexerRequired = errors.New("indexer required")

	// ErrPollerRequired is returned when an index status poller is not provided.
	ErrPollerRequired = errors.New("index poller required")

	// ErrProcessingDisabled is returned by Process when processing is switched off.
	ErrProcessingDisabled = errors.New("document processing is disabled")

	// ErrNoContent indicates a document has neither stored bytes nor a source URL.
	ErrNoContent = errors.New("document has no retrievable content")
)
