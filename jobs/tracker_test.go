package jobs

import (
	"context"
	"strings"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Tracker, core.ID) {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	doc, err := repos.Documents.CreateDocument(context.Background(), &core.Document{
		Filename:    "a.pdf",
		StorageID:   "blob",
		ContentHash: strings.Repeat("a", 64),
		Source:      core.SourceUpload,
	})
	require.NoError(t, err)

	tracker, err := NewTracker(repos.Jobs)
	require.NoError(t, err)
	return tracker, doc.ID
}

func TestNewTracker_RequiresRepository(t *testing.T) {
	_, err := NewTracker(nil)
	assert.ErrorIs(t, err, ErrJobRepositoryRequired)
}

func TestCreateJob(t *testing.T) {
	tracker, docID := setup(t)
	ctx := context.Background()

	job, err := tracker.CreateJob(ctx, docID, core.StageExtracting)
	require.NoError(t, err)
	assert.Equal(t, core.StageExtracting, job.Stage)
	assert.True(t, job.CompletedAt.IsZero())

	_, err = tracker.CreateJob(ctx, docID, core.StageCompleted)
	assert.ErrorIs(t, err, core.ErrInvalidStageTransition)

	_, err = tracker.CreateJob(ctx, 4242, core.StageExtracting)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateJob_ForwardProgress(t *testing.T) {
	tracker, docID := setup(t)
	ctx := context.Background()

	job, err := tracker.CreateJob(ctx, docID, core.StageExtracting)
	require.NoError(t, err)

	var meta core.JobMetadata
	require.NoError(t, meta.Set(core.MetaPageCount, 3))
	job, err = tracker.UpdateJob(ctx, job.ID, Update{Stage: core.StageEmbedding, Metadata: meta})
	require.NoError(t, err)
	assert.Equal(t, core.StageEmbedding, job.Stage)
	assert.True(t, job.CompletedAt.IsZero())

	var more core.JobMetadata
	require.NoError(t, more.Set(core.MetaChunkCount, 7))
	job, err = tracker.UpdateJob(ctx, job.ID, Update{Stage: core.StageStoring, Metadata: more})
	require.NoError(t, err)

	pages, _ := job.Metadata.Get(core.MetaPageCount)
	chunks, _ := job.Metadata.Get(core.MetaChunkCount)
	assert.Equal(t, "3", pages)
	assert.Equal(t, "7", chunks)

	job, err = tracker.UpdateJob(ctx, job.ID, Update{Stage: core.StageCompleted})
	require.NoError(t, err)
	assert.False(t, job.CompletedAt.IsZero())
}

func TestUpdateJob_RejectsBackwardTransition(t *testing.T) {
	tracker, docID := setup(t)
	ctx := context.Background()

	job, err := tracker.CreateJob(ctx, docID, core.StageExtracting)
	require.NoError(t, err)
	_, err = tracker.UpdateJob(ctx, job.ID, Update{Stage: core.StageStoring})
	require.NoError(t, err)

	_, err = tracker.UpdateJob(ctx, job.ID, Update{Stage: core.StageEmbedding})
	assert.ErrorIs(t, err, core.ErrInvalidStageTransition)
}

func TestUpdateJob_TerminalIsImmutable(t *testing.T) {
	tracker, docID := setup(t)
	ctx := context.Background()

	job, err := tracker.CreateJob(ctx, docID, core.StageExtracting)
	require.NoError(t, err)
	failed, err := tracker.UpdateJob(ctx, job.ID, Update{Stage: core.StageFailed, Error: "corrupt file"})
	require.NoError(t, err)
	assert.Equal(t, "corrupt file", failed.Error)
	assert.False(t, failed.CompletedAt.IsZero())

	_, err = tracker.UpdateJob(ctx, job.ID, Update{Error: "again"})
	assert.ErrorIs(t, err, core.ErrJobTerminal)

	stored, err := tracker.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "corrupt file", stored.Error)
}

func TestActiveAndFailedJobs(t *testing.T) {
	tracker, docID := setup(t)
	ctx := context.Background()

	running, err := tracker.CreateJob(ctx, docID, core.StageExtracting)
	require.NoError(t, err)
	done, err := tracker.CreateJob(ctx, docID, core.StageExtracting)
	require.NoError(t, err)
	broken, err := tracker.CreateJob(ctx, docID, core.StageExtracting)
	require.NoError(t, err)

	_, err = tracker.UpdateJob(ctx, done.ID, Update{Stage: core.StageCompleted})
	require.NoError(t, err)
	_, err = tracker.UpdateJob(ctx, broken.ID, Update{Stage: core.StageFailed, Error: "x"})
	require.NoError(t, err)

	active, err := tracker.GetActiveJobs(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, running.ID, active[0].ID)

	failed, err := tracker.GetFailedJobs(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, broken.ID, failed[0].ID)

	history, err := tracker.JobsForDocument(ctx, docID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}
