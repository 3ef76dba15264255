// Package localindex implements ai.Indexer on top of the badger index
// repository. Uploads are stored synchronously and are available as soon
// as Upload returns.
package localindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// Index stores embedded chunks in a storage.IndexRepository.
type Index struct {
	repo   storage.IndexRepository
	logger *slog.Logger
}

var _ ai.Indexer = (*Index)(nil)

// New creates an Index over repo.
func New(repo storage.IndexRepository) *Index {
	return &Index{
		repo:   repo,
		logger: slog.Default().With("component", "local-index"),
	}
}

// Upload stores content as a new available entry.
func (i *Index) Upload(ctx context.Context, content ai.IndexContent, metadata map[string]string) (*ai.IndexStatus, error) {
	if len(content.Chunks) == 0 {
		return nil, errors.New("index upload has no chunks")
	}

	entry := &core.IndexEntry{
		ID:         uuid.NewString(),
		DocumentID: content.DocumentID,
		Chunks:     content.Chunks,
		Metadata:   maps.Clone(metadata),
		Status:     core.IndexAvailable,
		CreatedAt:  time.Now().UTC(),
	}
	if err := i.repo.PutEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("store index entry: %w", err)
	}

	i.logger.Debug("indexed document", "document_id", content.DocumentID, "entry_id", entry.ID, "chunks", len(entry.Chunks))
	return &ai.IndexStatus{ID: entry.ID, Status: entry.Status}, nil
}

// Describe reports the stored state of an entry.
func (i *Index) Describe(ctx context.Context, id string) (*ai.IndexStatus, error) {
	entry, err := i.repo.GetEntry(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return &ai.IndexStatus{ID: entry.ID, Status: entry.Status, ErrorMessage: entry.Error}, nil
}

// Delete removes an entry.
func (i *Index) Delete(ctx context.Context, id string) error {
	return translate(i.repo.DeleteEntry(ctx, id))
}

// FindSimilar returns the stored chunks closest to vector.
func (i *Index) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.ChunkMatch, error) {
	return i.repo.FindSimilar(ctx, vector, minSimilarity, limit)
}

func translate(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %w", ai.ErrIndexEntryNotFound, err)
	}
	return err
}
