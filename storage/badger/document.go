package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	idSeq, err := backend.GetSequence(documentIDSeq)
	if err != nil {
		return nil, err
	}

	return &DocumentRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *DocumentRepository) Close() error {
	return r.idSeq.Release()
}

// CreateDocument stores a new document. A non-empty ContentHash is claimed in
// the same transaction that writes the record.
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}

	id, err := nextID(r.idSeq)
	if err != nil {
		return nil, err
	}

	var duplicate *core.DuplicateContentError
	err = r.backend.Update(func(tx *badger.Txn) error {
		duplicate = nil
		if doc.ContentHash != "" {
			// The read is tracked, so a concurrent claim of the same hash
			// makes this commit fail with ErrConflict and the retry sees it.
			existing, err := readValue(tx, makeDocumentHashKey(doc.ContentHash), decodeID)
			if err != nil {
				return err
			}
			if existing != nil {
				duplicate = &core.DuplicateContentError{Hash: doc.ContentHash, ExistingID: *existing}
				return duplicate
			}
		}

		now := time.Now().UTC()
		doc.ID = core.ID(id)
		doc.CreatedAt = now
		doc.UpdatedAt = now
		if doc.Status == "" {
			doc.Status = core.DocumentPending
		}

		if err := r.writeDocument(tx, nil, doc); err != nil {
			return err
		}
		if doc.ContentHash != "" {
			if err := tx.Set(makeDocumentHashKey(doc.ContentHash), storage.MarshalID(doc.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if duplicate != nil {
		doc.ID = 0
		return nil, duplicate
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = readValue(tx, makeDocumentKey(id), storage.UnmarshalDocument)
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

// FindByContentHash looks up the document owning a content hash.
func (r *DocumentRepository) FindByContentHash(ctx context.Context, hash string) (*core.Document, error) {
	var result *core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		id, err := readValue(tx, makeDocumentHashKey(hash), decodeID)
		if err != nil {
			return err
		}
		if id == nil {
			return storage.ErrNotFound
		}
		result, err = readValue(tx, makeDocumentKey(*id), storage.UnmarshalDocument)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("hash index points at missing document %d: %w", *id, storage.ErrNotFound)
		}
		return nil
	})
	return result, err
}

// PatchDocument applies fn to the stored document and writes the result.
func (r *DocumentRepository) PatchDocument(ctx context.Context, id core.ID, fn storage.DocumentPatch) (*core.Document, error) {
	var result *core.Document
	err := r.backend.Update(func(tx *badger.Txn) error {
		old, err := readValue(tx, makeDocumentKey(id), storage.UnmarshalDocument)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		// Decode a second copy so fn can't alias the old index values
		doc, err := readValue(tx, makeDocumentKey(id), storage.UnmarshalDocument)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		if doc.ID != old.ID || doc.ContentHash != old.ContentHash || !doc.CreatedAt.Equal(old.CreatedAt) {
			return storage.ErrImmutableField
		}

		doc.UpdatedAt = time.Now().UTC()
		if err := r.writeDocument(tx, old, doc); err != nil {
			return err
		}
		result = doc
		return nil
	})
	return result, err
}

// DeleteDocument removes a document together with its jobs, requests index,
// hash claim and cached text.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id core.ID) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		doc, err := readValue(tx, key, storage.UnmarshalDocument)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		// Cascade to jobs via the job-by-document index
		for _, indexKey := range scanKeys(tx, makePartialJobDocumentKey(id)) {
			jobID, err := storage.UnmarshalID(indexKey[len(indexKey)-8:])
			if err != nil {
				return err
			}
			job, err := readValue(tx, makeJobKey(jobID), storage.UnmarshalJob)
			if err != nil {
				return err
			}
			if job != nil {
				if err := tx.Delete(makeJobStageKey(job.Stage, job.ID)); err != nil {
					return err
				}
				if err := tx.Delete(makeJobKey(job.ID)); err != nil {
					return err
				}
			}
			if err := tx.Delete(indexKey); err != nil {
				return err
			}
		}

		if doc.ContentHash != "" {
			if err := tx.Delete(makeDocumentHashKey(doc.ContentHash)); err != nil {
				return err
			}
		}
		if doc.IndexStatus != core.IndexNone {
			if err := tx.Delete(makeDocumentIndexStatusKey(doc.IndexStatus, id)); err != nil {
				return err
			}
		}
		if err := tx.Delete(makeDocumentTextKey(id)); err != nil {
			return err
		}
		return tx.Delete(key)
	})
}

// ListDocuments returns up to limit documents with ID > afterID, ordered by ID.
func (r *DocumentRepository) ListDocuments(ctx context.Context, afterID core.ID, limit int) ([]*core.Document, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeDocumentKey(afterID + 1)); iter.Valid(); iter.Next() {
			if len(results) >= limit {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			if documentIDFromKey(item.Key()) <= afterID {
				continue
			}
			var doc *core.Document
			if err := item.Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocument(val)
				return err
			}); err != nil {
				return err
			}
			results = append(results, doc)
		}
		return nil
	})
	return results, err
}

// GetDocumentsByIndexStatus returns documents whose IndexStatus matches.
func (r *DocumentRepository) GetDocumentsByIndexStatus(ctx context.Context, status core.IndexStatus) ([]*core.Document, error) {
	if status == core.IndexNone {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, makePartialDocumentIndexStatusKey(status), func(_, val []byte) error {
			id, err := storage.UnmarshalID(val)
			if err != nil {
				return err
			}
			doc, err := readValue(tx, makeDocumentKey(id), storage.UnmarshalDocument)
			if err != nil {
				return err
			}
			if doc != nil {
				results = append(results, doc)
			}
			return nil
		})
	})
	return results, err
}

// SaveExtractedText caches extracted text for a document.
func (r *DocumentRepository) SaveExtractedText(ctx context.Context, id core.ID, text string) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		exists, err := readValue(tx, makeDocumentKey(id), storage.UnmarshalDocument)
		if err != nil {
			return err
		}
		if exists == nil {
			return storage.ErrNotFound
		}
		return tx.Set(makeDocumentTextKey(id), []byte(text))
	})
}

// GetExtractedText returns cached text for a document.
func (r *DocumentRepository) GetExtractedText(ctx context.Context, id core.ID) (string, bool, error) {
	var (
		text  string
		found bool
	)
	err := r.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDocumentTextKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		text, found = string(val), true
		return nil
	})
	return text, found, err
}

// writeDocument stores doc and keeps the index status index in step with old.
// old is nil for new documents.
func (r *DocumentRepository) writeDocument(tx *badger.Txn, old, doc *core.Document) error {
	value, err := storage.MarshalDocument(doc)
	if err != nil {
		return err
	}
	if err := tx.Set(makeDocumentKey(doc.ID), value); err != nil {
		return err
	}

	oldStatus := core.IndexNone
	if old != nil {
		oldStatus = old.IndexStatus
	}
	if oldStatus == doc.IndexStatus {
		return nil
	}
	if oldStatus != core.IndexNone {
		if err := tx.Delete(makeDocumentIndexStatusKey(oldStatus, doc.ID)); err != nil {
			return err
		}
	}
	if doc.IndexStatus != core.IndexNone {
		return tx.Set(makeDocumentIndexStatusKey(doc.IndexStatus, doc.ID), storage.MarshalID(doc.ID))
	}
	return nil
}
