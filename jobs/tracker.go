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


// Package jobs records per-attempt processing history for documents.
//
// A job is created when a pipeline run starts and then only moves forward
// through extracting, embedding and storing until it becomes completed or
// failed. Terminal jobs are immutable; a retry creates a new job.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// ErrJobRepositoryRequired is returned when no repository is supplied.
var ErrJobRepositoryRequired = errors.New("job repository required")

// Update describes a change to a job. Zero fields are left untouched.
type Update struct {
	Stage    core.JobStage
	Error    string
	Metadata core.JobMetadata
}

// Tracker creates and advances processing jobs.
type Tracker struct {
	repo   storage.JobRepository
	logger *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) error {
		if logger == nil {
			logger = slog.Default()
		}
		t.logger = logger
		return nil
	}
}

// NewTracker creates a Tracker over repo.
func NewTracker(repo storage.JobRepository, opts ...Option) (*Tracker, error) {
	if repo == nil {
		return nil, ErrJobRepositoryRequired
	}
	t := &Tracker{
		repo:   repo,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	t.logger = t.logger.With("component", "job-tracker")
	return t, nil
}

// CreateJob starts a new job for documentID at stage.
func (t *Tracker) CreateJob(ctx context.Context, documentID core.ID, stage core.JobStage) (*core.ProcessingJob, error) {
	if stage.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot start a job in stage %q", core.ErrInvalidStageTransition, stage)
	}

	job, err := t.repo.AddJob(ctx, &core.ProcessingJob{
		DocumentID: documentID,
		Stage:      stage,
		StartedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("create job for document %d: %w", documentID, err)
	}

	t.logger.Debug("job created", "job_id", job.ID, "document_id", documentID, "stage", stage)
	return job, nil
}

// UpdateJob applies u to a job. Moving to completed or failed stamps
// CompletedAt. Metadata is merged into what the job already carries.
func (t *Tracker) UpdateJob(ctx context.Context, jobID core.ID, u Update) (*core.ProcessingJob, error) {
	job, err := t.repo.PatchJob(ctx, jobID, func(job *core.ProcessingJob) error {
		if job.Stage.IsTerminal() {
			return core.ErrJobTerminal
		}
		if u.Stage != "" {
			if err := core.ValidateStageTransition(job.Stage, u.Stage); err != nil {
				return err
			}
			job.Stage = u.Stage
			if u.Stage.IsTerminal() {
				job.CompletedAt = time.Now().UTC()
			}
		}
		if u.Error != "" {
			job.Error = u.Error
		}
		job.Metadata.Merge(u.Metadata)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update job %d: %w", jobID, err)
	}

	t.logger.Debug("job updated", "job_id", jobID, "stage", job.Stage)
	return job, nil
}

// GetJob returns a single job.
func (t *Tracker) GetJob(ctx context.Context, jobID core.ID) (*core.ProcessingJob, error) {
	return t.repo.GetJob(ctx, jobID)
}

// GetActiveJobs returns every job not yet completed or failed.
func (t *Tracker) GetActiveJobs(ctx context.Context) ([]*core.ProcessingJob, error) {
	return t.repo.GetJobsByStage(ctx, core.StageExtracting, core.StageEmbedding, core.StageStoring)
}

// GetFailedJobs returns every failed job.
func (t *Tracker) GetFailedJobs(ctx context.Context) ([]*core.ProcessingJob, error) {
	return t.repo.GetJobsByStage(ctx, core.StageFailed)
}

// JobsForDocument returns the attempt history of a document, oldest first.
func (t *Tracker) JobsForDocument(ctx context.Context, documentID core.ID) ([]*core.ProcessingJob, error) {
	return t.repo.GetJobsByDocument(ctx, documentID)
}
