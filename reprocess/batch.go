package reprocess

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/queue"
)

// Submitter hands documents to the work queue and waits on the results.
type Submitter interface {
	// Enqueue schedules documentID for processing and returns its handle.
	Enqueue(ctx context.Context, documentID core.ID, force bool) (string, error)

	// Wait blocks until the request behind handle is terminal.
	Wait(ctx context.Context, handle string) (*core.ReprocessingRequest, error)
}

// BatchResult tallies how the documents of one batch ended.
type BatchResult struct {
	Enqueued  int
	Completed int
	Failed    int
	Canceled  int
	Skipped   int
}

func (r *BatchResult) add(other BatchResult) {
	r.Enqueued += other.Enqueued
	r.Completed += other.Completed
	r.Failed += other.Failed
	r.Canceled += other.Canceled
	r.Skipped += other.Skipped
}

// BatchProcessor submits batches of documents and waits for every request to finish.
type BatchProcessor struct {
	submitter      Submitter
	force          bool
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of enqueue attempts while the queue is saturated
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(submitter Submitter, force bool, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		submitter:      submitter,
		force:          force,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process enqueues every document in docs, then waits for all of them.
// Documents the queue refuses even after backing off are counted as skipped.
// A failed document does not stop the batch; only context and queue shutdown do.
func (bp *BatchProcessor) Process(ctx context.Context, docs []*core.Document) (BatchResult, error) {
	var result BatchResult
	if len(docs) == 0 {
		return result, nil
	}

	handles := make([]string, 0, len(docs))
	for _, doc := range docs {
		var handle string
		err := RetryIf(ctx, func() error {
			var err error
			handle, err = bp.submitter.Enqueue(ctx, doc.ID, bp.force)
			return err
		}, isSaturated, bp.maxRetries, bp.retryBaseDelay)

		switch {
		case err == nil:
			handles = append(handles, handle)
			result.Enqueued++
		case isSaturated(err):
			result.Skipped++
		default:
			return result, fmt.Errorf("enqueue document %d: %w", doc.ID, err)
		}
	}

	for _, handle := range handles {
		req, err := bp.submitter.Wait(ctx, handle)
		if err != nil {
			return result, fmt.Errorf("wait for %s: %w", handle, err)
		}
		switch req.Status {
		case core.RequestCompleted:
			result.Completed++
		case core.RequestCanceled:
			result.Canceled++
		default:
			result.Failed++
		}
	}

	return result, nil
}

func isSaturated(err error) bool {
	return errors.Is(err, queue.ErrQueueSaturated)
}
