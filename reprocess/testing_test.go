package reprocess

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/queue"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/stretchr/testify/require"
)

// fakeSubmitter resolves requests synchronously from a per-document outcome table.
type fakeSubmitter struct {
	mu sync.Mutex

	// outcomes maps a document to its terminal status; completed by default.
	outcomes map[core.ID]core.RequestStatus

	// saturate makes the next n Enqueue calls fail with ErrQueueSaturated.
	saturate int

	// enqueueErr is returned by every Enqueue when set.
	enqueueErr error

	requests map[string]*core.ReprocessingRequest
	order    []core.ID
	forced   []bool
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{
		outcomes: make(map[core.ID]core.RequestStatus),
		requests: make(map[string]*core.ReprocessingRequest),
	}
}

func (f *fakeSubmitter) Enqueue(ctx context.Context, documentID core.ID, force bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.enqueueErr != nil {
		return "", f.enqueueErr
	}
	if f.saturate > 0 {
		f.saturate--
		return "", queue.ErrQueueSaturated
	}

	status, ok := f.outcomes[documentID]
	if !ok {
		status = core.RequestCompleted
	}
	handle := uuid.NewString()
	f.requests[handle] = &core.ReprocessingRequest{
		Handle:      handle,
		DocumentID:  documentID,
		Force:       force,
		Status:      status,
		EnqueuedAt:  time.Now(),
		CompletedAt: time.Now(),
	}
	f.order = append(f.order, documentID)
	f.forced = append(f.forced, force)
	return handle, nil
}

func (f *fakeSubmitter) Wait(ctx context.Context, handle string) (*core.ReprocessingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	req, ok := f.requests[handle]
	if !ok {
		return nil, queue.ErrUnknownHandle
	}
	return req, nil
}

func (f *fakeSubmitter) submitted() []core.ID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.ID(nil), f.order...)
}

func newRepos(t *testing.T) *badger.Repositories {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

// seedDocuments creates n documents and returns their IDs in creation order.
func seedDocuments(t *testing.T, repos *badger.Repositories, n int) []core.ID {
	t.Helper()
	ids := make([]core.ID, 0, n)
	for i := range n {
		content := fmt.Sprintf("document %d", i)
		doc, err := repos.Documents.CreateDocument(context.Background(), &core.Document{
			Filename:    fmt.Sprintf("doc-%d.txt", i),
			StorageID:   "memory-" + strings.ReplaceAll(content, " ", "-"),
			ContentHash: core.Fingerprint([]byte(content)),
			Source:      core.SourceUpload,
		})
		require.NoError(t, err)
		ids = append(ids, doc.ID)
	}
	return ids
}

func setStatus(t *testing.T, repos *badger.Repositories, id core.ID, status core.DocumentStatus) {
	t.Helper()
	_, err := repos.Documents.PatchDocument(context.Background(), id, func(d *core.Document) error {
		d.Status = status
		return nil
	})
	require.NoError(t, err)
}
