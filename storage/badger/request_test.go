package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLifecycle(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	now := time.Now().UTC()
	req := &core.ReprocessingRequest{
		Handle:     "h-1",
		DocumentID: 5,
		Status:     core.RequestPending,
		EnqueuedAt: now,
	}
	require.NoError(t, repos.Requests.SaveRequest(ctx, req))

	err := repos.Requests.SaveRequest(ctx, req)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	updated, err := repos.Requests.PatchRequest(ctx, "h-1", func(r *core.ReprocessingRequest) error {
		r.Status = core.RequestCompleted
		r.CompletedAt = now.Add(time.Second)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, core.RequestCompleted, updated.Status)

	fetched, err := repos.Requests.GetRequest(ctx, "h-1")
	require.NoError(t, err)
	assert.Equal(t, core.RequestCompleted, fetched.Status)

	_, err = repos.Requests.GetRequest(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPatchRequest_ImmutableHandle(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Requests.SaveRequest(ctx, &core.ReprocessingRequest{Handle: "h-1", DocumentID: 1}))

	_, err := repos.Requests.PatchRequest(ctx, "h-1", func(r *core.ReprocessingRequest) error {
		r.DocumentID = 2
		return nil
	})
	assert.ErrorIs(t, err, storage.ErrImmutableField)
}

func TestGetRequestsByDocument(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, repos.Requests.SaveRequest(ctx, &core.ReprocessingRequest{Handle: "zz", DocumentID: 1, EnqueuedAt: base}))
	require.NoError(t, repos.Requests.SaveRequest(ctx, &core.ReprocessingRequest{Handle: "aa", DocumentID: 1, EnqueuedAt: base.Add(time.Minute)}))
	require.NoError(t, repos.Requests.SaveRequest(ctx, &core.ReprocessingRequest{Handle: "mm", DocumentID: 2, EnqueuedAt: base}))

	reqs, err := repos.Requests.GetRequestsByDocument(ctx, 1)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "zz", reqs[0].Handle)
	assert.Equal(t, "aa", reqs[1].Handle)
}

func TestCheckpoint(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	loaded, err := repos.Checkpoints.LoadCheckpoint(ctx, "reprocess")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, repos.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: "reprocess", LastID: 12}))

	loaded, err = repos.Checkpoints.LoadCheckpoint(ctx, "reprocess")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, core.ID(12), loaded.LastID)
	assert.False(t, loaded.UpdatedAt.IsZero())

	require.NoError(t, repos.Checkpoints.ClearCheckpoint(ctx, "reprocess"))
	loaded, err = repos.Checkpoints.LoadCheckpoint(ctx, "reprocess")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
