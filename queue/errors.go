package queue

import "errors"

var (
	// ErrQueueSaturated is returned by Enqueue when the pending backlog is full.
	// Callers should retry later.
	ErrQueueSaturated = errors.New("work queue saturated")

	// ErrQueueClosed is returned by Enqueue after Close has been called.
	ErrQueueClosed = errors.New("work queue closed")

	// ErrUnknownHandle is returned for handles the queue never issued or has forgotten.
	ErrUnknownHandle = errors.New("unknown handle")

	// ErrNotCancelable is returned when canceling an item that already started.
	ErrNotCancelable = errors.New("work item already started")

	// ErrHandlerPanic wraps a panic recovered from a handler.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrNilHandler is returned when Enqueue is called without a handler.
	ErrNilHandler = errors.New("handler required")
)
