package mock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
)

// MockIndexer is an in-memory test double for ai.Indexer.
//
// Uploaded entries start in InitialStatus (available when empty). Each
// Describe call consumes the next value of DescribeSequence for that entry
// before settling on the last one, which lets tests script slow backends.
type MockIndexer struct {
	// UploadFunc is called by Upload if set.
	UploadFunc func(ctx context.Context, content ai.IndexContent, metadata map[string]string) (*ai.IndexStatus, error)

	// DescribeFunc is called by Describe if set.
	DescribeFunc func(ctx context.Context, id string) (*ai.IndexStatus, error)

	// InitialStatus is the status reported by Upload.
	InitialStatus core.IndexStatus

	// DescribeSequence scripts the statuses reported by Describe.
	DescribeSequence []ai.IndexStatus

	mu            sync.Mutex
	entries       map[string]*entry
	uploadCount   atomic.Int64
	describeCount atomic.Int64
	deleteCount   atomic.Int64
}

type entry struct {
	content  ai.IndexContent
	metadata map[string]string
	status   ai.IndexStatus
	describe int
}

// NewMockIndexer creates an empty mock indexer.
func NewMockIndexer() *MockIndexer {
	return &MockIndexer{entries: make(map[string]*entry)}
}

// Upload stores content under a fresh ID.
func (m *MockIndexer) Upload(ctx context.Context, content ai.IndexContent, metadata map[string]string) (*ai.IndexStatus, error) {
	m.uploadCount.Add(1)

	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, content, metadata)
	}

	status := m.InitialStatus
	if status == core.IndexNone {
		status = core.IndexAvailable
	}
	st := ai.IndexStatus{ID: uuid.NewString(), Status: status}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[st.ID] = &entry{content: content, metadata: metadata, status: st}
	return &st, nil
}

// Describe reports an entry's scripted or stored status.
func (m *MockIndexer) Describe(ctx context.Context, id string) (*ai.IndexStatus, error) {
	m.describeCount.Add(1)

	if m.DescribeFunc != nil {
		return m.DescribeFunc(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ai.ErrIndexEntryNotFound
	}
	if len(m.DescribeSequence) > 0 {
		next := m.DescribeSequence[min(e.describe, len(m.DescribeSequence)-1)]
		e.describe++
		e.status.Status = next.Status
		e.status.ErrorMessage = next.ErrorMessage
	}
	st := e.status
	return &st, nil
}

// Delete removes an entry.
func (m *MockIndexer) Delete(ctx context.Context, id string) error {
	m.deleteCount.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ai.ErrIndexEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

// Put seeds an entry directly, bypassing Upload.
func (m *MockIndexer) Put(st ai.IndexStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[st.ID] = &entry{status: st}
}

// Has reports whether an entry exists.
func (m *MockIndexer) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[id]
	return ok
}

// Len returns the number of stored entries.
func (m *MockIndexer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Content returns what was uploaded under id.
func (m *MockIndexer) Content(id string) (ai.IndexContent, map[string]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ai.IndexContent{}, nil, false
	}
	return e.content, e.metadata, true
}

// UploadCount returns the number of Upload calls.
func (m *MockIndexer) UploadCount() int { return int(m.uploadCount.Load()) }

// DescribeCount returns the number of Describe calls.
func (m *MockIndexer) DescribeCount() int { return int(m.describeCount.Load()) }

// DeleteCount returns the number of Delete calls.
func (m *MockIndexer) DeleteCount() int { return int(m.deleteCount.Load()) }
