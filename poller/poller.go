// Package poller waits for asynchronous index entries to settle.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/metrics"
)

const (
	defaultInterval = 2 * time.Second
	defaultMaxWait  = 60 * time.Second
)

// ErrIndexerRequired is returned by New without an indexer.
var ErrIndexerRequired = errors.New("indexer is required")

// Outcome is how a wait ended.
type Outcome string

const (
	OutcomeAvailable  Outcome = "available"
	OutcomeFailed     Outcome = "failed"
	OutcomeProcessing Outcome = "processing"
)

// Result reports the final observed state of an index entry.
type Result struct {
	Outcome      Outcome
	ErrorMessage string
	Attempts     int
}

// Poller repeatedly describes an index entry until it leaves the processing state.
type Poller struct {
	indexer  ai.Indexer
	interval time.Duration
	maxWait  time.Duration
	logger   *slog.Logger
}

// Option configures a Poller.
type Option func(*Poller) error

// WithInterval sets the delay between Describe calls. Default is 2s.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		p.interval = d
		return nil
	}
}

// WithMaxWait sets the total wait budget. Default is 60s.
func WithMaxWait(d time.Duration) Option {
	return func(p *Poller) error {
		if d <= 0 {
			return errors.New("max wait must be positive")
		}
		p.maxWait = d
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// New creates a Poller over indexer.
func New(indexer ai.Indexer, opts ...Option) (*Poller, error) {
	if indexer == nil {
		return nil, ErrIndexerRequired
	}
	p := &Poller{
		indexer:  indexer,
		interval: defaultInterval,
		maxWait:  defaultMaxWait,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "poller")
	return p, nil
}

// Wait describes indexID until it is available or failed, or the wait budget
// runs out. Running out of budget yields OutcomeProcessing, not an error, even
// when a Describe call is still in flight. Describe errors other than
// ai.ErrIndexEntryNotFound are retried within the same budget.
// An error is returned only when ctx itself ends.
func (p *Poller) Wait(ctx context.Context, indexID string) (Result, error) {
	wctx, cancel := context.WithDeadline(ctx, time.Now().Add(p.maxWait))
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var result Result
	for {
		result.Attempts++
		status, err := p.indexer.Describe(wctx, indexID)
		switch {
		case errors.Is(err, ai.ErrIndexEntryNotFound):
			result.Outcome = OutcomeFailed
			result.ErrorMessage = err.Error()
			return p.finish(indexID, result), nil
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			if wctx.Err() != nil {
				return p.timedOut(indexID, result), nil
			}
			p.logger.Warn("describe failed, will retry", "index_id", indexID, "attempt", result.Attempts, "err", err)
		case status == nil:
		case status.Status == core.IndexAvailable:
			result.Outcome = OutcomeAvailable
			return p.finish(indexID, result), nil
		case status.Status == core.IndexFailed:
			result.Outcome = OutcomeFailed
			result.ErrorMessage = status.ErrorMessage
			return p.finish(indexID, result), nil
		}

		select {
		case <-wctx.Done():
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			return p.timedOut(indexID, result), nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) timedOut(indexID string, result Result) Result {
	result.Outcome = OutcomeProcessing
	return p.finish(indexID, result)
}

func (p *Poller) finish(indexID string, result Result) Result {
	metrics.PollOutcomes.WithLabelValues(string(result.Outcome)).Inc()
	p.logger.Debug("index wait finished", "index_id", indexID, "outcome", result.Outcome, "attempts", result.Attempts)
	return result
}
