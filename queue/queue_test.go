package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, opts ...Option) *Queue {
	t.Helper()
	q, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Close(ctx)
	})
	return q
}

func waitResult(t *testing.T, q *Queue, h Handle) Result {
	t.Helper()
	f, err := q.Future(h)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := f.Wait(ctx)
	require.NoError(t, err)
	return r
}

// blocker returns a handler that signals started and then waits for release.
func blocker() (Handler, chan struct{}, chan struct{}) {
	started := make(chan struct{})
	release := make(chan struct{})
	return func(ctx context.Context) error {
		close(started)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, started, release
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(WithWorkers(0))
	assert.Error(t, err)

	_, err = New(WithMaxPending(0))
	assert.Error(t, err)
}

func TestEnqueue_NilHandler(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.Enqueue(nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}

func TestEnqueue_RunsHandler(t *testing.T) {
	q := newTestQueue(t)

	h, err := q.Enqueue(func(ctx context.Context) error { return nil }, WithLabel("doc-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, h)

	r := waitResult(t, q, h)
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Equal(t, "doc-1", r.Label)
	assert.NoError(t, r.Err)
	assert.False(t, r.StartedAt.IsZero())
	assert.False(t, r.FinishedAt.Before(r.StartedAt))

	status, err := q.Status(h)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, status)
}

func TestQueue_ConcurrencyNeverExceedsWorkers(t *testing.T) {
	const workers = 3
	q := newTestQueue(t, WithWorkers(workers))

	var running, peak atomic.Int32
	handler := func(ctx context.Context) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return nil
	}

	var handles []Handle
	for range 15 {
		h, err := q.Enqueue(handler)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	for _, h := range handles {
		assert.Equal(t, StatusSucceeded, waitResult(t, q, h).Status)
	}

	assert.LessOrEqual(t, peak.Load(), int32(workers))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestQueue_FailureDoesNotStopOthers(t *testing.T) {
	q := newTestQueue(t, WithWorkers(2))

	boom := errors.New("boom")
	var handles []Handle
	for i := range 3 {
		h, err := q.Enqueue(func(ctx context.Context) error {
			if i == 0 {
				return boom
			}
			return nil
		})
		require.NoError(t, err)
		handles = append(handles, h)
	}

	first := waitResult(t, q, handles[0])
	assert.Equal(t, StatusFailed, first.Status)
	assert.ErrorIs(t, first.Err, boom)
	assert.Equal(t, StatusSucceeded, waitResult(t, q, handles[1]).Status)
	assert.Equal(t, StatusSucceeded, waitResult(t, q, handles[2]).Status)
}

func TestQueue_PanicIsRecorded(t *testing.T) {
	q := newTestQueue(t, WithWorkers(1))

	h, err := q.Enqueue(func(ctx context.Context) error { panic("kaboom") })
	require.NoError(t, err)
	r := waitResult(t, q, h)
	assert.Equal(t, StatusFailed, r.Status)
	assert.ErrorIs(t, r.Err, ErrHandlerPanic)
	assert.Contains(t, r.Err.Error(), "kaboom")

	// The single worker is still usable
	h, err = q.Enqueue(func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, waitResult(t, q, h).Status)
}

func TestQueue_Saturation(t *testing.T) {
	obs := &countingObserver{}
	q := newTestQueue(t, WithWorkers(1), WithMaxPending(2), WithObserver(obs))


	block, started, release := blocker()
	_, err := q.Enqueue(block)
	require.NoError(t, err)
	<-started

	noop := func(ctx context.Context) error { return nil }
	_, err = q.Enqueue(noop)
	require.NoError(t, err)
	_, err = q.Enqueue(noop)
	require.NoError(t, err)

	_, err = q.Enqueue(noop)
	assert.ErrorIs(t, err, ErrQueueSaturated)
	assert.Equal(t, int32(1), obs.saturated.Load())

	stats := q.Stats()
	assert.Equal(t, 1, stats.Workers)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Running)

	close(release)
}

func TestQueue_Cancel(t *testing.T) {
	q := newTestQueue(t, WithWorkers(1))

	block, started, release := blocker()
	running, err := q.Enqueue(block)
	require.NoError(t, err)
	<-started

	var ran atomic.Bool
	var hooks atomic.Int32
	pending, err := q.Enqueue(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}, WithOnComplete(func(Result) { hooks.Add(1) }))
	require.NoError(t, err)

	require.NoError(t, q.Cancel(pending))
	assert.ErrorIs(t, q.Cancel(pending), ErrNotCancelable)
	assert.ErrorIs(t, q.Cancel(running), ErrNotCancelable)
	assert.ErrorIs(t, q.Cancel("missing"), ErrUnknownHandle)

	r := waitResult(t, q, pending)
	assert.Equal(t, StatusCanceled, r.Status)

	close(release)
	assert.Equal(t, StatusSucceeded, waitResult(t, q, running).Status)

	// A later item proves the canceled one was skipped, not just delayed
	h, err := q.Enqueue(func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	waitResult(t, q, h)

	assert.False(t, ran.Load())
	assert.Equal(t, int32(1), hooks.Load())
}

func TestQueue_OnCompleteFiresOnce(t *testing.T) {
	q := newTestQueue(t)

	var calls atomic.Int32
	var got Result
	var mu sync.Mutex
	h, err := q.Enqueue(func(ctx context.Context) error { return nil },
		WithOnComplete(func(r Result) {
			mu.Lock()
			got = r
			mu.Unlock()
			calls.Add(1)
		}))
	require.NoError(t, err)

	waitResult(t, q, h)
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, h, got.Handle)
	assert.Equal(t, StatusSucceeded, got.Status)
}

func TestQueue_HookPanicIsContained(t *testing.T) {
	q := newTestQueue(t, WithWorkers(1))

	h, err := q.Enqueue(func(ctx context.Context) error { return nil },
		WithOnComplete(func(Result) { panic("hook") }))
	require.NoError(t, err)
	waitResult(t, q, h)

	h, err = q.Enqueue(func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, waitResult(t, q, h).Status)
}

func TestQueue_FIFOStartOrder(t *testing.T) {
	q := newTestQueue(t, WithWorkers(1))

	var mu sync.Mutex
	var order []int
	var handles []Handle
	for i := range 6 {
		h, err := q.Enqueue(func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
		handles = append(handles, h)
	}
	for _, h := range handles {
		waitResult(t, q, h)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, order)
}

func TestQueue_Retention(t *testing.T) {
	q := newTestQueue(t, WithRetention(1))

	first, err := q.Enqueue(func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	f, err := q.Future(first)
	require.NoError(t, err)
	_, err = f.Wait(context.Background())
	require.NoError(t, err)

	second, err := q.Enqueue(func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	waitResult(t, q, second)

	_, err = q.Status(first)
	assert.ErrorIs(t, err, ErrUnknownHandle)
	_, err = q.Status(second)
	assert.NoError(t, err)

	// The future stays valid for holders
	r, ok := f.Result()
	assert.True(t, ok)
	assert.Equal(t, StatusSucceeded, r.Status)
}

func TestQueue_CloseCancelsPending(t *testing.T) {
	q, err := New(WithWorkers(1))
	require.NoError(t, err)

	block, started, release := blocker()
	running, err := q.Enqueue(block)
	require.NoError(t, err)
	<-started

	pending, err := q.Enqueue(func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	pendingFuture, err := q.Future(pending)
	require.NoError(t, err)
	runningFuture, err := q.Future(running)
	require.NoError(t, err)

	closed := make(chan error, 1)
	go func() { closed <- q.Close(context.Background()) }()

	<-pendingFuture.Done()
	r, _ := pendingFuture.Result()
	assert.Equal(t, StatusCanceled, r.Status)

	close(release)
	require.NoError(t, <-closed)

	r, ok := runningFuture.Result()
	require.True(t, ok)
	assert.Equal(t, StatusSucceeded, r.Status)

	_, err = q.Enqueue(func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.NoError(t, q.Close(context.Background()))
}

func TestQueue_CloseTimeoutCancelsHandlers(t *testing.T) {
	q, err := New(WithWorkers(1))
	require.NoError(t, err)

	block, started, _ := blocker()
	h, err := q.Enqueue(block)
	require.NoError(t, err)
	<-started
	f, err := q.Future(h)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Close(ctx), context.DeadlineExceeded)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	r, err := f.Wait(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, r.Status)
	assert.ErrorIs(t, r.Err, context.Canceled)
}

func TestQueue_Observer(t *testing.T) {
	obs := &countingObserver{}
	q := newTestQueue(t, WithObserver(obs))

	h1, err := q.Enqueue(func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	h2, err := q.Enqueue(func(ctx context.Context) error { return errors.New("nope") })
	require.NoError(t, err)
	waitResult(t, q, h1)
	waitResult(t, q, h2)

	assert.Eventually(t, func() bool { return obs.finished.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), obs.enqueued.Load())
	assert.Equal(t, int32(2), obs.started.Load())
	assert.Equal(t, int32(1), obs.failed.Load())
}

type countingObserver struct {
	enqueued  atomic.Int32
	saturated atomic.Int32
	started   atomic.Int32
	finished  atomic.Int32
	failed    atomic.Int32
	dropped   atomic.Int32
}

func (o *countingObserver) Enqueued()            { o.enqueued.Add(1) }
func (o *countingObserver) Saturated()           { o.saturated.Add(1) }
func (o *countingObserver) Started(time.Duration) { o.started.Add(1) }
func (o *countingObserver) Dropped(Status) { o.dropped.Add(1) }
func (o *countingObserver) Finished(s Status, _ time.Duration) {
	o.finished.Add(1)
	if s == StatusFailed {
		o.failed.Add(1)
	}
}
