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

package reprocess

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// CheckpointName is the processor type under which progress is stored.
const CheckpointName = "reprocess"

// Config holds configuration for a reprocessing run.
type Config struct {
	// BatchSize is the number of documents to submit in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of enqueue attempts while the queue is saturated
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Force ignores cached extracted text
	Force bool

	// Statuses limits the run to documents in these states; empty means all
	Statuses []core.DocumentStatus

	// Resume continues after the last checkpoint instead of starting over
	Resume bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 10,
		MaxRetries:     5,
		RetryDelay:     500 * time.Millisecond,
	}
}

// Report summarizes a reprocessing run.
type Report struct {
	Total int
	BatchResult
	Elapsed time.Duration
}

// Reprocessor walks stored documents and pushes them back through the pipeline.
type Reprocessor struct {
	documents   storage.DocumentRepository
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer
	processor   *BatchProcessor
	iterator    *DocumentIterator
}

// NewReprocessor creates a new reprocessor.
// checkpoints may be nil, in which case runs are not resumable.
// progress: where to write progress output (typically os.Stderr)
func NewReprocessor(documents storage.DocumentRepository, checkpoints storage.CheckpointRepository, submitter Submitter, config *Config, progress io.Writer) (*Reprocessor, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if submitter == nil {
		return nil, ErrSubmitterRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reprocessor{
		documents:   documents,
		checkpoints: checkpoints,
		config:      config,
		progress:    progress,
		processor:   NewBatchProcessor(submitter, config.Force, config.MaxRetries, config.RetryDelay),
		iterator:    NewDocumentIterator(documents, config.BatchSize, config.Statuses...),
	}, nil
}

// Run submits every matching document and waits for the results.
// After each batch the last document ID is checkpointed; a clean finish clears it.
func (r *Reprocessor) Run(ctx context.Context) (*Report, error) {
	var start core.ID
	if r.config.Resume && r.checkpoints != nil {
		cp, err := r.checkpoints.LoadCheckpoint(ctx, CheckpointName)
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if cp != nil {
			start = cp.LastID
			slog.Info("resuming reprocessing", "after_id", start)
		}
	}

	total, err := r.iterator.Count(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	report := &Report{Total: total}
	if total == 0 {
		fmt.Fprintf(r.progress, "No documents to reprocess\n")
		return report, r.clearCheckpoint(ctx)
	}

	fmt.Fprintf(r.progress, "Starting reprocessing of %d documents (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, start, func(docs []*core.Document) error {
		result, err := r.processor.Process(ctx, docs)
		report.add(result)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}

		processed += len(docs)
		tracker.Update(processed, report.Failed)

		return r.saveCheckpoint(ctx, docs[len(docs)-1].ID)
	})
	report.Elapsed = tracker.Elapsed()
	if err != nil {
		return report, err
	}

	tracker.Finish()

	fmt.Fprintf(r.progress, "Reprocessing complete. %d completed, %d failed, %d canceled, %d skipped in %v\n",
		report.Completed, report.Failed, report.Canceled, report.Skipped, report.Elapsed.Round(time.Second))

	return report, r.clearCheckpoint(ctx)
}

func (r *Reprocessor) saveCheckpoint(ctx context.Context, lastID core.ID) error {
	if r.checkpoints == nil {
		return nil
	}
	err := r.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: CheckpointName,
		LastID:        lastID,
		UpdatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (r *Reprocessor) clearCheckpoint(ctx context.Context) error {
	if r.checkpoints == nil {
		return nil
	}
	if err := r.checkpoints.ClearCheckpoint(ctx, CheckpointName); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}
