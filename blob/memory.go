package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	ttl     time.Duration
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		ttl:     15 * time.Minute,
	}
}

func (s *MemoryStore) GetURL(ctx context.Context, storageID string) (string, error) {
	if storageID == "" {
		return "", ErrEmptyStorageID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[storageID]; !ok {
		return "", ErrNotFound
	}
	return "memory://" + storageID, nil
}

func (s *MemoryStore) GenerateUploadURL(ctx context.Context) (*UploadTarget, error) {
	id := uuid.NewString()
	return &UploadTarget{
		StorageID: id,
		URL:       "memory://" + id,
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}, nil
}

func (s *MemoryStore) Fetch(ctx context.Context, storageID string) ([]byte, error) {
	if storageID == "" {
		return nil, ErrEmptyStorageID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[storageID]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(data), nil
}

func (s *MemoryStore) Put(ctx context.Context, r io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read blob: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return "", fmt.Errorf("blob size mismatch: declared %d, read %d", size, len(data))
	}
	id := uuid.NewString()
	s.Set(id, data)
	return id, nil
}

func (s *MemoryStore) Delete(ctx context.Context, storageID string) error {
	if storageID == "" {
		return ErrEmptyStorageID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, storageID)
	return nil
}

// Len reports how many objects are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Set stores data under a caller-chosen ID, as a completed upload would.
func (s *MemoryStore) Set(storageID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[storageID] = bytes.Clone(data)
}
