// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package queue runs work items with bounded concurrency.
//
// Items are admitted into a FIFO backlog and handed, in order, by a single
// dispatcher goroutine to an ants pool of N workers. The dispatcher blocks
// until a worker is free, so at most N handlers ever run at once and items
// start in the order they were enqueued.
//
// Handler errors and panics are recorded against the item's handle; they
// never take down a worker and are never retried automatically.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// Queue is a bounded FIFO work queue.
type Queue struct {
	workers    int
	maxPending int
	retention  int
	observer   Observer
	logger     *slog.Logger

	pool *ants.Pool

	// ctx is handed to handlers; it is canceled when Close gives up waiting.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	cond     *sync.Cond
	backlog  []*item
	depth    int // items in StatusPending
	active   int // items in StatusRunning
	items    map[Handle]*item
	finished []Handle // oldest first, for retention
	closed   bool

	inflight       sync.WaitGroup
	dispatcherDone chan struct{}
}

type item struct {
	handle     Handle
	label      string
	handler    Handler
	onComplete []func(Result)
	future     *Future

	status     Status
	err        error
	enqueuedAt time.Time
	startedAt  time.Time
	finishedAt time.Time
}

func (it *item) result() Result {
	return Result{
		Handle:     it.handle,
		Label:      it.label,
		Status:     it.status,
		Err:        it.err,
		EnqueuedAt: it.enqueuedAt,
		StartedAt:  it.startedAt,
		FinishedAt: it.finishedAt,
	}
}

// antsLogger adapts slog.Logger to the ants.Logger interface.
type antsLogger struct {
	logger *slog.Logger
}

func (l antsLogger) Printf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// New creates a queue and starts its dispatcher.
func New(opts ...Option) (*Queue, error) {
	q := &Queue{
		workers:    defaultWorkers,
		maxPending: defaultMaxPending,
		retention:  defaultRetention,
		observer:   nopObserver{},
		logger:     slog.Default(),
		items:      make(map[Handle]*item),
	}
	for _, opt := range opts {
		if err := opt(q); err != nil {
			return nil, err
		}
	}
	q.logger = q.logger.With("component", "queue")

	pool, err := ants.NewPool(q.workers,
		ants.WithLogger(antsLogger{logger: q.logger}),
		ants.WithPanicHandler(func(p any) {
			q.logger.Error("worker panic escaped handler recovery", "panic", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	q.pool = pool
	q.cond = sync.NewCond(&q.mu)
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.dispatcherDone = make(chan struct{})
	go q.dispatch()
	return q, nil
}

// Enqueue admits handler and returns its handle immediately.
func (q *Queue) Enqueue(handler Handler, opts ...EnqueueOption) (Handle, error) {
	if handler == nil {
		return "", ErrNilHandler
	}

	it := &item{
		handle:     Handle(uuid.NewString()),
		handler:    handler,
		future:     newFuture(),
		status:     StatusPending,
		enqueuedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(it)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrQueueClosed
	}
	if q.depth >= q.maxPending {
		q.mu.Unlock()
		q.observer.Saturated()
		return "", ErrQueueSaturated
	}
	q.items[it.handle] = it
	q.backlog = append(q.backlog, it)
	q.depth++
	q.cond.Signal()
	q.mu.Unlock()

	q.observer.Enqueued()
	q.logger.Debug("item enqueued", "handle", it.handle, "label", it.label)
	return it.handle, nil
}

// Status returns the current status of handle.
func (q *Queue) Status(handle Handle) (Status, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[handle]
	if !ok {
		return "", ErrUnknownHandle
	}
	return it.status, nil
}

// Future returns the completion future of handle.
func (q *Queue) Future(handle Handle) (*Future, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[handle]
	if !ok {
		return nil, ErrUnknownHandle
	}
	return it.future, nil
}

// Cancel withdraws an item that has not started yet.
func (q *Queue) Cancel(handle Handle) error {
	q.mu.Lock()
	it, ok := q.items[handle]
	if !ok {
		q.mu.Unlock()
		return ErrUnknownHandle
	}
	if it.status != StatusPending {
		q.mu.Unlock()
		return ErrNotCancelable
	}
	q.markCanceled(it)
	q.mu.Unlock()

	q.logger.Debug("item canceled", "handle", handle)
	q.observer.Dropped(StatusCanceled)
	q.complete(it)
	return nil
}

// Stats returns a snapshot of queue occupancy.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{Workers: q.workers, Pending: q.depth, Running: q.active}
}

// Close stops admission, cancels everything still pending and waits for
// running handlers. If ctx ends first, handlers' context is canceled and
// ctx's error is returned.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	var canceled []*item
	for _, it := range q.items {
		if it.status == StatusPending {
			q.markCanceled(it)
			canceled = append(canceled, it)
		}
	}
	q.backlog = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	for _, it := range canceled {
		q.observer.Dropped(StatusCanceled)
		q.complete(it)
	}

	done := make(chan struct{})
	go func() {
		<-q.dispatcherDone
		q.inflight.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		q.cancel()
		err = ctx.Err()
	}
	q.cancel()

	if releaseErr := q.pool.ReleaseTimeout(time.Second); releaseErr != nil {
		q.logger.Warn("worker pool release timed out", "err", releaseErr)
	}
	q.logger.Debug("queue closed", "canceled", len(canceled))
	return err
}

// dispatch hands backlog items to the pool in FIFO order.
func (q *Queue) dispatch() {
	defer close(q.dispatcherDone)

	for {
		q.mu.Lock()
		for len(q.backlog) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		it := q.backlog[0]
		q.backlog[0] = nil
		q.backlog = q.backlog[1:]
		if it.status != StatusPending {
			q.mu.Unlock()
			continue
		}
		q.mu.Unlock()

		q.inflight.Add(1)
		// Blocks until a worker is free
		if err := q.pool.Submit(func() {
			defer q.inflight.Done()
			q.run(it)
		}); err != nil {
			q.inflight.Done()
			q.fail(it, fmt.Errorf("submit to worker pool: %w", err))
		}
	}
}

// run executes one item on a pool worker.
func (q *Queue) run(it *item) {
	q.mu.Lock()
	// Canceled while waiting for a worker
	if it.status != StatusPending {
		q.mu.Unlock()
		return
	}
	it.status = StatusRunning
	it.startedAt = time.Now().UTC()
	q.depth--
	q.active++
	q.mu.Unlock()

	q.observer.Started(it.startedAt.Sub(it.enqueuedAt))
	err := q.invoke(it)

	q.mu.Lock()
	it.finishedAt = time.Now().UTC()
	if err != nil {
		it.status = StatusFailed
		it.err = err
	} else {
		it.status = StatusSucceeded
	}
	q.active--
	q.retire(it)
	q.mu.Unlock()

	if err != nil {
		q.logger.Warn("item failed", "handle", it.handle, "label", it.label, "err", err)
	}
	q.observer.Finished(it.status, it.finishedAt.Sub(it.startedAt))
	q.complete(it)
}

// invoke calls the handler, converting a panic into an error.
func (q *Queue) invoke(it *item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return it.handler(q.ctx)
}

// fail finishes a pending item that could not be scheduled.
func (q *Queue) fail(it *item, err error) {
	q.mu.Lock()
	if it.status != StatusPending {
		q.mu.Unlock()
		return
	}
	it.status = StatusFailed
	it.err = err
	it.finishedAt = time.Now().UTC()
	q.depth--
	q.retire(it)
	q.mu.Unlock()

	q.logger.Error("item could not be scheduled", "handle", it.handle, "err", err)
	q.observer.Dropped(StatusFailed)
	q.complete(it)
}

// markCanceled must be called with q.mu held on a pending item.
func (q *Queue) markCanceled(it *item) {
	it.status = StatusCanceled
	it.finishedAt = time.Now().UTC()
	q.depth--
	q.retire(it)
}

// retire records a finished item and forgets the oldest beyond retention.
// Must be called with q.mu held.
func (q *Queue) retire(it *item) {
	q.finished = append(q.finished, it.handle)
	for len(q.finished) > q.retention {
		delete(q.items, q.finished[0])
		q.finished = q.finished[1:]
	}
}

// complete resolves the future and fires hooks. The future's sync.Once
// guarantees a single delivery per handle.
func (q *Queue) complete(it *item) {
	q.mu.Lock()
	result := it.result()
	q.mu.Unlock()

	if !it.future.resolve(result) {
		return
	}
	for _, fn := range it.onComplete {
		q.safeHook(fn, result)
	}
}

func (q *Queue) safeHook(fn func(Result), result Result) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("completion hook panicked", "handle", result.Handle, "panic", r)
		}
	}()
	fn(result)
}
