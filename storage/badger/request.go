package badger

import (
	"context"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// RequestRepository implements storage.RequestRepository for BadgerDB.
type RequestRepository struct {
	backend *Backend
}

var _ storage.RequestRepository = (*RequestRepository)(nil)

// NewRequestRepository creates a new RequestRepository.
func NewRequestRepository(backend *Backend) *RequestRepository {
	return &RequestRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned by the caller.
func (r *RequestRepository) Close() error {
	return nil
}

// SaveRequest stores a new request keyed by its handle.
func (r *RequestRepository) SaveRequest(ctx context.Context, req *core.ReprocessingRequest) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		key := makeRequestKey(req.Handle)
		existing, err := readValue(tx, key, storage.UnmarshalRequest)
		if err != nil {
			return err
		}
		if existing != nil {
			return storage.ErrDuplicateKey
		}

		value, err := storage.MarshalRequest(req)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Set(makeRequestDocumentKey(req.DocumentID, req.Handle), []byte(req.Handle))
	})
}

// GetRequest retrieves a request by handle.
func (r *RequestRepository) GetRequest(ctx context.Context, handle string) (*core.ReprocessingRequest, error) {
	var result *core.ReprocessingRequest
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = readValue(tx, makeRequestKey(handle), storage.UnmarshalRequest)
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

// PatchRequest applies fn to the stored request and writes it.
func (r *RequestRepository) PatchRequest(ctx context.Context, handle string, fn storage.RequestPatch) (*core.ReprocessingRequest, error) {
	var result *core.ReprocessingRequest
	err := r.backend.Update(func(tx *badger.Txn) error {
		key := makeRequestKey(handle)
		req, err := readValue(tx, key, storage.UnmarshalRequest)
		if err != nil {
			return err
		}
		if req == nil {
			return storage.ErrNotFound
		}

		documentID := req.DocumentID
		if err := fn(req); err != nil {
			return err
		}
		if req.Handle != handle || req.DocumentID != documentID {
			return storage.ErrImmutableField
		}

		value, err := storage.MarshalRequest(req)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		result = req
		return nil
	})
	return result, err
}

// GetRequestsByDocument returns the requests issued for a document, oldest first.
func (r *RequestRepository) GetRequestsByDocument(ctx context.Context, documentID core.ID) ([]*core.ReprocessingRequest, error) {
	var results []*core.ReprocessingRequest
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, makePartialRequestDocumentKey(documentID), func(_, val []byte) error {
			req, err := readValue(tx, makeRequestKey(string(val)), storage.UnmarshalRequest)
			if err != nil {
				return err
			}
			if req != nil {
				results = append(results, req)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.ReprocessingRequest) int {
		return a.EnqueuedAt.Compare(b.EnqueuedAt)
	})
	return results, nil
}
