package reprocess

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func TestNewReprocessor_Requires(t *testing.T) {
	repos := newRepos(t)

	_, err := NewReprocessor(nil, nil, newFakeSubmitter(), nil, nil)
	assert.ErrorIs(t, err, ErrDocumentRepositoryRequired)

	_, err = NewReprocessor(repos.Documents, nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrSubmitterRequired)
}

func TestReprocessor_RunsEveryDocument(t *testing.T) {
	repos := newRepos(t)
	ids := seedDocuments(t, repos, 5)
	sub := newFakeSubmitter()
	sub.outcomes[ids[3]] = core.RequestFailed

	var out bytes.Buffer
	r, err := NewReprocessor(repos.Documents, repos.Checkpoints, sub, testConfig(), &out)
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 5, report.Enqueued)
	assert.Equal(t, 4, report.Completed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, ids, sub.submitted())
	assert.Contains(t, out.String(), "Reprocessing complete")

	cp, err := repos.Checkpoints.LoadCheckpoint(context.Background(), CheckpointName)
	require.NoError(t, err)
	assert.Nil(t, cp, "a clean run clears its checkpoint")
}

func TestReprocessor_NothingToDo(t *testing.T) {
	repos := newRepos(t)

	var out bytes.Buffer
	r, err := NewReprocessor(repos.Documents, repos.Checkpoints, newFakeSubmitter(), testConfig(), &out)
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Contains(t, out.String(), "No documents")
}

func TestReprocessor_StatusFilter(t *testing.T) {
	repos := newRepos(t)
	ids := seedDocuments(t, repos, 4)
	setStatus(t, repos, ids[0], core.DocumentFailed)
	setStatus(t, repos, ids[2], core.DocumentFailed)

	cfg := testConfig()
	cfg.Statuses = []core.DocumentStatus{core.DocumentFailed}
	sub := newFakeSubmitter()

	r, err := NewReprocessor(repos.Documents, repos.Checkpoints, sub, cfg, nil)
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, []core.ID{ids[0], ids[2]}, sub.submitted())
}

func TestReprocessor_CheckpointsAndResumes(t *testing.T) {
	repos := newRepos(t)
	ids := seedDocuments(t, repos, 5)
	ctx := context.Background()

	// First run dies once the queue closes during the second batch.
	sub := &closingSubmitter{fakeSubmitter: newFakeSubmitter(), closeAfter: 3}
	r, err := NewReprocessor(repos.Documents, repos.Checkpoints, sub, testConfig(), nil)
	require.NoError(t, err)

	_, err = r.Run(ctx)
	require.ErrorIs(t, err, queue.ErrQueueClosed)

	cp, err := repos.Checkpoints.LoadCheckpoint(ctx, CheckpointName)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, ids[1], cp.LastID)

	cfg := testConfig()
	cfg.Resume = true
	fresh := newFakeSubmitter()
	r, err = NewReprocessor(repos.Documents, repos.Checkpoints, fresh, cfg, nil)
	require.NoError(t, err)

	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, ids[2:], fresh.submitted())
}

func TestReprocessor_ContextCanceled(t *testing.T) {
	repos := newRepos(t)
	seedDocuments(t, repos, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := NewReprocessor(repos.Documents, nil, newFakeSubmitter(), testConfig(), nil)
	require.NoError(t, err)

	_, err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// closingSubmitter accepts closeAfter documents and then reports a closed queue.
type closingSubmitter struct {
	*fakeSubmitter
	closeAfter int
}

func (c *closingSubmitter) Enqueue(ctx context.Context, documentID core.ID, force bool) (string, error) {
	if len(c.submitted()) >= c.closeAfter {
		return "", queue.ErrQueueClosed
	}
	return c.fakeSubmitter.Enqueue(ctx, documentID, force)
}
