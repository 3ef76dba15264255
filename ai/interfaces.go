package ai

import (
	"context"

	"github.com/poiesic/docpipe/core"
)

// Embedder generates vector embeddings from text.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Extraction is the result of pulling text out of a document.
type Extraction struct {
	Text      string
	PageCount int
}

// TextExtractor turns raw document bytes into plain text.
// Implementations must be thread-safe for concurrent use.
type TextExtractor interface {
	// ExtractText returns the text content of data.
	// Returns ErrEmptyDocument if the document holds no extractable text.
	ExtractText(ctx context.Context, data []byte) (*Extraction, error)
}

// MetadataHints carries what is already known about a document.
type MetadataHints struct {
	Filename string
	Title    string
}

// MetadataExtractor derives descriptive metadata from document text.
// Implementations must be thread-safe for concurrent use.
type MetadataExtractor interface {
	// ExtractMetadata analyzes text and returns whatever fields it can determine.
	// Every returned field is optional.
	ExtractMetadata(ctx context.Context, text string, hints MetadataHints) (*core.DocumentMetadata, error)
}

// IndexContent is the embedded payload uploaded to an index.
type IndexContent struct {
	DocumentID core.ID
	Chunks     []core.IndexedChunk
}

// IndexStatus describes an index entry as reported by the backend.
type IndexStatus struct {
	ID           string
	Status       core.IndexStatus
	ErrorMessage string
}

// Indexer stores embedded documents in a searchable index.
// Upload may complete asynchronously; callers poll Describe until the
// entry leaves the processing state.
type Indexer interface {
	// Upload creates a new index entry.
	Upload(ctx context.Context, content IndexContent, metadata map[string]string) (*IndexStatus, error)

	// Describe reports the current state of an entry.
	// Returns ErrIndexEntryNotFound if the backend has no such entry.
	Describe(ctx context.Context, id string) (*IndexStatus, error)

	// Delete removes an entry.
	// Returns ErrIndexEntryNotFound if the backend has no such entry.
	Delete(ctx context.Context, id string) error
}

// Provider aggregates the model-backed services for lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// MetadataExtractor returns the metadata extraction service.
	MetadataExtractor() MetadataExtractor

	// Close releases resources held by the provider and its services.
	Close() error
}
