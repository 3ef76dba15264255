package queue

import (
	"context"
	"time"
)

// Handler is a unit of work run by the queue.
type Handler func(ctx context.Context) error

// Handle identifies an enqueued item.
type Handle string

// Status is the lifecycle state of a work item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// IsTerminal reports whether the item has finished.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Result is the final state of a work item.
type Result struct {
	Handle     Handle
	Label      string
	Status     Status
	Err        error
	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Workers int
	Pending int
	Running int
}

// Observer receives queue lifecycle events. Implementations must be cheap
// and safe for concurrent use; they are called outside the queue lock.
type Observer interface {
	Enqueued()
	Saturated()
	Started(wait time.Duration)
	// Finished is called for items that ran.
	Finished(status Status, runtime time.Duration)
	// Dropped is called for items that finished without running.
	Dropped(status Status)
}

type nopObserver struct{}

func (nopObserver) Enqueued()                      {}
func (nopObserver) Saturated()                     {}
func (nopObserver) Started(time.Duration)          {}
func (nopObserver) Finished(Status, time.Duration) {}
func (nopObserver) Dropped(Status)                 {}
