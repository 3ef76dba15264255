package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/metrics"
	"github.com/poiesic/docpipe/storage"
	"golang.org/x/sync/errgroup"
)

const defaultReconcileConcurrency = 4

// SweepReport counts what a sweep did.
type SweepReport struct {
	Checked   int
	Available int
	Failed    int
	Pending   int
	Stale     int
	Errors    int
}

// Reconciler re-checks documents whose index entry was still processing
// when their pipeline run ended.
type Reconciler struct {
	documents   storage.DocumentRepository
	indexer     ai.Indexer
	staleAfter  time.Duration
	concurrency int
	logger      *slog.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler) error

// WithStaleAfter fails entries still processing this long after upload.
// Zero, the default, never fails an entry for being slow.
func WithStaleAfter(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) error {
		if d < 0 {
			return errors.New("stale after cannot be negative")
		}
		r.staleAfter = d
		return nil
	}
}

// WithReconcileConcurrency sets how many entries are described at once. Default is 4.
func WithReconcileConcurrency(n int) ReconcilerOption {
	return func(r *Reconciler) error {
		if n < 1 {
			n = 1
		}
		r.concurrency = n
		return nil
	}
}

// WithReconcilerLogger sets a custom logger.
func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewReconciler creates a Reconciler.
func NewReconciler(documents storage.DocumentRepository, indexer ai.Indexer, opts ...ReconcilerOption) (*Reconciler, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if indexer == nil {
		return nil, ErrIndexerRequired
	}
	r := &Reconciler{
		documents:   documents,
		indexer:     indexer,
		concurrency: defaultReconcileConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "reconciler")
	return r, nil
}

// Sweep describes every document with IndexStatus processing once.
// Available entries are promoted, backend failures fail the document, and
// entries older than the stale threshold are failed when one is configured.
// Describe errors are counted and left for the next sweep.
func (r *Reconciler) Sweep(ctx context.Context) (*SweepReport, error) {
	docs, err := r.documents.GetDocumentsByIndexStatus(ctx, core.IndexProcessing)
	if err != nil {
		return nil, fmt.Errorf("list processing index entries: %w", err)
	}

	results := make([]sweepResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			results[i] = r.check(gctx, doc)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &SweepReport{Checked: len(docs)}
	for _, res := range results {
		switch res {
		case sweepAvailable:
			report.Available++
		case sweepFailed:
			report.Failed++
		case sweepStale:
			report.Stale++
		case sweepError:
			report.Errors++
		default:
			report.Pending++
		}
	}
	r.logger.Info("sweep finished", "checked", report.Checked, "available", report.Available,
		"failed", report.Failed, "stale", report.Stale, "pending", report.Pending, "errors", report.Errors)
	return report, nil
}

type sweepResult int

const (
	sweepPending sweepResult = iota
	sweepAvailable
	sweepFailed
	sweepStale
	sweepError
)

func (r *Reconciler) check(ctx context.Context, doc *core.Document) sweepResult {
	logger := r.logger.With("document_id", doc.ID, "index_id", doc.IndexID)

	status, err := r.indexer.Describe(ctx, doc.IndexID)
	switch {
	case errors.Is(err, ai.ErrIndexEntryNotFound):
		return r.markFailed(ctx, doc, err.Error(), sweepFailed, logger)
	case err != nil:
		logger.Warn("describe failed", "err", err)
		return sweepError
	case status == nil:
		logger.Warn("describe returned no status")
		return sweepError
	case status.Status == core.IndexAvailable:
		applied, err := r.patchIndexStatus(ctx, doc, func(d *core.Document) {
			d.IndexStatus = core.IndexAvailable
		})
		if err != nil {
			logger.Error("failed to promote index entry", "err", err)
			return sweepError
		}
		if !applied {
			logger.Debug("index entry superseded, skipping")
			return sweepPending
		}
		metrics.PollOutcomes.WithLabelValues("available").Inc()
		logger.Info("index entry became available")
		return sweepAvailable
	case status.Status == core.IndexFailed:
		message := status.ErrorMessage
		if message == "" {
			message = "index backend reported failure"
		}
		return r.markFailed(ctx, doc, message, sweepFailed, logger)
	}

	if r.staleAfter > 0 && !doc.IndexRequestedAt.IsZero() && time.Since(doc.IndexRequestedAt) > r.staleAfter {
		message := fmt.Sprintf("index entry still processing after %s", r.staleAfter)
		return r.markFailed(ctx, doc, message, sweepStale, logger)
	}
	return sweepPending
}

func (r *Reconciler) markFailed(ctx context.Context, doc *core.Document, message string, result sweepResult, logger *slog.Logger) sweepResult {
	applied, err := r.patchIndexStatus(ctx, doc, func(d *core.Document) {
		d.IndexStatus = core.IndexFailed
		d.Status = core.DocumentFailed
		d.ProcessingError = message
	})
	if err != nil {
		logger.Error("failed to record index failure", "err", err)
		return sweepError
	}
	if !applied {
		logger.Debug("index entry superseded, skipping")
		return sweepPending
	}
	metrics.PollOutcomes.WithLabelValues("failed").Inc()
	logger.Warn("index entry failed", "reason", message)
	return result
}

// patchIndexStatus applies fn only if the document still points at the same
// processing entry, so a concurrent re-run is not overwritten. It reports
// whether the patch was applied.
func (r *Reconciler) patchIndexStatus(ctx context.Context, doc *core.Document, fn func(*core.Document)) (bool, error) {
	_, err := r.documents.PatchDocument(ctx, doc.ID, func(current *core.Document) error {
		if current.IndexID != doc.IndexID || current.IndexStatus != core.IndexProcessing {
			return errSuperseded
		}
		fn(current)
		return nil
	})
	if errors.Is(err, errSuperseded) {
		return false, nil
	}
	return err == nil, err
}

var errSuperseded = errors.New("index entry superseded")
