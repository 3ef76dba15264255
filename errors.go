package docpipe

import "errors"

var (
	// ErrNoContent is returned when an ingest request carries no bytes, storage ID or source URL.
	ErrNoContent = errors.New("ingest request has no content")

	// ErrQueryUnsupported is returned by Query when the configured indexer cannot search.
	ErrQueryUnsupported = errors.New("configured indexer does not support similarity queries")

	// ErrRequestNotRecorded is returned by a queued run whose request record could not be saved.
	ErrRequestNotRecorded = errors.New("reprocessing request was not recorded")
)
