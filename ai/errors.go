package ai

import "errors"

var (
	// ErrEmptyDocument indicates a document yielded no text.
	ErrEmptyDocument = errors.New("document contains no extractable text")

	// ErrUnsupportedFormat indicates the extractor cannot read the document's format.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrIndexEntryNotFound indicates the index backend has no entry with the given ID.
	ErrIndexEntryNotFound = errors.New("index entry not found")

	// ErrInvalidMetadata indicates the model response did not match the metadata schema.
	ErrInvalidMetadata = errors.New("invalid metadata response")

	// ErrEmbeddingMismatch indicates the embedder returned a different number of vectors than inputs.
	ErrEmbeddingMismatch = errors.New("embedding count does not match input count")
)
