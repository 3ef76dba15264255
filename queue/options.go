package queue

import (
	"errors"
	"log/slog"
)

const (
	defaultWorkers    = 3
	defaultMaxPending = 100
	defaultRetention  = 1024
)

// Option configures a Queue.
type Option func(*Queue) error

// WithWorkers sets the number of concurrent handlers. Default is 3.
func WithWorkers(n int) Option {
	return func(q *Queue) error {
		if n < 1 {
			return errors.New("workers must be at least 1")
		}
		q.workers = n
		return nil
	}
}

// WithMaxPending sets the backlog size at which Enqueue fails with
// ErrQueueSaturated. Default is 100.
func WithMaxPending(n int) Option {
	return func(q *Queue) error {
		if n < 1 {
			return errors.New("max pending must be at least 1")
		}
		q.maxPending = n
		return nil
	}
}

// WithRetention sets how many finished items stay queryable by handle.
// Default is 1024.
func WithRetention(n int) Option {
	return func(q *Queue) error {
		if n < 0 {
			n = 0
		}
		q.retention = n
		return nil
	}
}

// WithObserver registers an Observer for lifecycle events.
func WithObserver(o Observer) Option {
	return func(q *Queue) error {
		if o != nil {
			q.observer = o
		}
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) error {
		if logger == nil {
			logger = slog.Default()
		}
		q.logger = logger
		return nil
	}
}

// EnqueueOption configures a single work item.
type EnqueueOption func(*item)

// WithOnComplete registers a hook fired exactly once when the item finishes.
func WithOnComplete(fn func(Result)) EnqueueOption {
	return func(it *item) {
		if fn != nil {
			it.onComplete = append(it.onComplete, fn)
		}
	}
}

// WithLabel attaches a human readable label used in logs and results.
func WithLabel(label string) EnqueueOption {
	return func(it *item) {
		it.label = label
	}
}
