package reprocess

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docs(ids ...core.ID) []*core.Document {
	out := make([]*core.Document, len(ids))
	for i, id := range ids {
		out[i] = &core.Document{ID: id}
	}
	return out
}

func TestBatchProcessor_TalliesOutcomes(t *testing.T) {
	sub := newFakeSubmitter()
	sub.outcomes[2] = core.RequestFailed
	sub.outcomes[3] = core.RequestCanceled

	bp := NewBatchProcessor(sub, true, 3, time.Millisecond)
	result, err := bp.Process(context.Background(), docs(1, 2, 3, 4))
	require.NoError(t, err)

	assert.Equal(t, BatchResult{Enqueued: 4, Completed: 2, Failed: 1, Canceled: 1}, result)
	assert.Equal(t, []core.ID{1, 2, 3, 4}, sub.submitted())
	assert.Equal(t, []bool{true, true, true, true}, sub.forced)
}

func TestBatchProcessor_RetriesSaturation(t *testing.T) {
	sub := newFakeSubmitter()
	sub.saturate = 2

	bp := NewBatchProcessor(sub, false, 5, time.Millisecond)
	result, err := bp.Process(context.Background(), docs(1))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Completed)
	assert.Zero(t, result.Skipped)
}

func TestBatchProcessor_SkipsWhenStillSaturated(t *testing.T) {
	sub := newFakeSubmitter()
	sub.saturate = 2

	bp := NewBatchProcessor(sub, false, 2, time.Millisecond)
	result, err := bp.Process(context.Background(), docs(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, []core.ID{2}, sub.submitted())
}

func TestBatchProcessor_EnqueueErrorStops(t *testing.T) {
	sub := newFakeSubmitter()
	sub.enqueueErr = queue.ErrQueueClosed

	bp := NewBatchProcessor(sub, false, 3, time.Millisecond)
	_, err := bp.Process(context.Background(), docs(1, 2))
	assert.True(t, errors.Is(err, queue.ErrQueueClosed))
}

func TestBatchProcessor_Empty(t *testing.T) {
	bp := NewBatchProcessor(newFakeSubmitter(), false, 3, time.Millisecond)
	result, err := bp.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result)
}
