package storage

import (
	"context"

	"github.com/poiesic/docpipe/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	Close() error
}

// DocumentPatch mutates a freshly read document inside an atomic update.
// Returning an error aborts the update without writing.
type DocumentPatch func(doc *core.Document) error

// DocumentRepository provides operations for managing document records.
type DocumentRepository interface {
	Repository

	// CreateDocument stores a new document and assigns its ID.
	// When ContentHash is set, the hash is checked and claimed in the same
	// transaction; an existing hash yields *core.DuplicateContentError and
	// nothing is written.
	CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// FindByContentHash looks up the document owning a content hash.
	// Returns ErrNotFound if no document has that hash.
	FindByContentHash(ctx context.Context, hash string) (*core.Document, error)

	// PatchDocument applies fn to the current stored document and writes the
	// result atomically, retrying on write conflicts.
	// ID, ContentHash and CreatedAt cannot be changed by a patch.
	// Returns ErrNotFound if the document doesn't exist.
	PatchDocument(ctx context.Context, id core.ID, fn DocumentPatch) (*core.Document, error)

	// DeleteDocument removes a document, its hash index entry, its cached
	// text and every processing job that belongs to it.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id core.ID) error

	// ListDocuments returns up to limit documents with ID > afterID, ordered by ID.
	ListDocuments(ctx context.Context, afterID core.ID, limit int) ([]*core.Document, error)

	// GetDocumentsByIndexStatus returns documents whose IndexStatus matches.
	GetDocumentsByIndexStatus(ctx context.Context, status core.IndexStatus) ([]*core.Document, error)

	// SaveExtractedText caches extracted text for a document.
	SaveExtractedText(ctx context.Context, id core.ID, text string) error

	// GetExtractedText returns cached text for a document.
	// The boolean is false when nothing is cached.
	GetExtractedText(ctx context.Context, id core.ID) (string, bool, error)
}

// JobPatch mutates a freshly read job inside an atomic update.
type JobPatch func(job *core.ProcessingJob) error

// JobRepository provides operations for managing processing jobs.
type JobRepository interface {
	Repository

	// AddJob stores a new job and assigns its ID.
	// Returns ErrNotFound if the owning document doesn't exist.
	AddJob(ctx context.Context, job *core.ProcessingJob) (*core.ProcessingJob, error)

	// GetJob retrieves a single job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id core.ID) (*core.ProcessingJob, error)

	// PatchJob applies fn to the stored job and writes it atomically.
	// Returns ErrNotFound if the job doesn't exist.
	PatchJob(ctx context.Context, id core.ID, fn JobPatch) (*core.ProcessingJob, error)

	// GetJobsByDocument returns every job of a document, oldest first.
	GetJobsByDocument(ctx context.Context, documentID core.ID) ([]*core.ProcessingJob, error)

	// GetJobsByStage returns jobs currently in any of the given stages, ordered by ID.
	GetJobsByStage(ctx context.Context, stages ...core.JobStage) ([]*core.ProcessingJob, error)
}

// RequestPatch mutates a freshly read request inside an atomic update.
type RequestPatch func(req *core.ReprocessingRequest) error

// RequestRepository persists work queue requests.
type RequestRepository interface {
	Repository

	// SaveRequest stores a new request keyed by its handle.
	// Returns ErrDuplicateKey if the handle is already present.
	SaveRequest(ctx context.Context, req *core.ReprocessingRequest) error

	// GetRequest retrieves a request by handle.
	// Returns ErrNotFound if the handle is unknown.
	GetRequest(ctx context.Context, handle string) (*core.ReprocessingRequest, error)

	// PatchRequest applies fn to the stored request and writes it atomically.
	PatchRequest(ctx context.Context, handle string, fn RequestPatch) (*core.ReprocessingRequest, error)

	// GetRequestsByDocument returns the requests issued for a document, oldest first.
	GetRequestsByDocument(ctx context.Context, documentID core.ID) ([]*core.ReprocessingRequest, error)
}

// CheckpointRepository stores progress markers for resumable bulk operations.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint for a processor type.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a processor type.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)

	// ClearCheckpoint removes the checkpoint for a processor type.
	ClearCheckpoint(ctx context.Context, processorType string) error
}

// IndexRepository stores chunk vectors for the local index backend.
type IndexRepository interface {
	Repository

	// PutEntry stores or replaces an index entry keyed by its ID.
	PutEntry(ctx context.Context, entry *core.IndexEntry) error

	// GetEntry retrieves an index entry.
	// Returns ErrNotFound if the entry doesn't exist.
	GetEntry(ctx context.Context, id string) (*core.IndexEntry, error)

	// DeleteEntry removes an index entry.
	// Returns ErrNotFound if the entry doesn't exist.
	DeleteEntry(ctx context.Context, id string) error

	// FindSimilar scans stored chunks and returns those with similarity >= minSimilarity,
	// highest first, up to limit results.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.ChunkMatch, error)
}
