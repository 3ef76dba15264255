package badger

import (
	"context"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// IndexRepository implements storage.IndexRepository for BadgerDB.
type IndexRepository struct {
	backend *Backend
}

var _ storage.IndexRepository = (*IndexRepository)(nil)

// NewIndexRepository creates a new IndexRepository.
func NewIndexRepository(backend *Backend) *IndexRepository {
	return &IndexRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned by the caller.
func (r *IndexRepository) Close() error {
	return nil
}

// PutEntry stores or replaces an index entry.
func (r *IndexRepository) PutEntry(ctx context.Context, entry *core.IndexEntry) error {
	value, err := storage.MarshalIndexEntry(entry)
	if err != nil {
		return err
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeIndexEntryKey(entry.ID), value)
	})
}

// GetEntry retrieves an index entry by ID.
func (r *IndexRepository) GetEntry(ctx context.Context, id string) (*core.IndexEntry, error) {
	var result *core.IndexEntry
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = readValue(tx, makeIndexEntryKey(id), storage.UnmarshalIndexEntry)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// DeleteEntry removes an index entry.
func (r *IndexRepository) DeleteEntry(ctx context.Context, id string) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		key := makeIndexEntryKey(id)
		if _, err := tx.Get(key); err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return tx.Delete(key)
	})
}

// FindSimilar performs brute-force similarity search over the chunks of every
// available entry.
func (r *IndexRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.ChunkMatch, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.ChunkMatch
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(indexEntryPrefix), func(_, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, err := storage.UnmarshalIndexEntry(val)
			if err != nil {
				return err
			}
			if entry.Status != core.IndexAvailable {
				return nil
			}

			for i, chunk := range entry.Chunks {
				if len(chunk.Vector) == 0 {
					continue
				}
				// Cosine similarity (dot product for normalized vectors)
				similarity := dotProduct(vector, chunk.Vector)
				if similarity >= minSimilarity {
					results = append(results, &core.ChunkMatch{
						EntryID:    entry.ID,
						DocumentID: entry.DocumentID,
						ChunkIndex: i,
						Text:       chunk.Text,
						Score:      similarity,
					})
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.ChunkMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func dotProduct(a, b []float32) float32 {
	var sum float32
	n := min(len(a), len(b))
	for i := range n {
		sum += a[i] * b[i]
	}
	return sum
}
