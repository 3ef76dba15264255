package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) (*JobRepository, error) {
	idSeq, err := backend.GetSequence(jobIDSeq)
	if err != nil {
		return nil, err
	}

	return &JobRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *JobRepository) Close() error {
	return r.idSeq.Release()
}

// AddJob stores a new job for an existing document.
func (r *JobRepository) AddJob(ctx context.Context, job *core.ProcessingJob) (*core.ProcessingJob, error) {
	id, err := nextID(r.idSeq)
	if err != nil {
		return nil, err
	}

	err = r.backend.Update(func(tx *badger.Txn) error {
		// Reading the document ties this write to a concurrent cascade delete
		doc, err := readValue(tx, makeDocumentKey(job.DocumentID), storage.UnmarshalDocument)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		job.ID = core.ID(id)
		if job.StartedAt.IsZero() {
			job.StartedAt = time.Now().UTC()
		}

		if err := r.writeJob(tx, "", job); err != nil {
			return err
		}
		return tx.Set(makeJobDocumentKey(job.DocumentID, job.ID), storage.MarshalID(job.ID))
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob retrieves a single job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id core.ID) (*core.ProcessingJob, error) {
	var result *core.ProcessingJob
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = readValue(tx, makeJobKey(id), storage.UnmarshalJob)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// PatchJob applies fn to the stored job and writes it, moving its stage index entry when needed.
func (r *JobRepository) PatchJob(ctx context.Context, id core.ID, fn storage.JobPatch) (*core.ProcessingJob, error) {
	var result *core.ProcessingJob
	err := r.backend.Update(func(tx *badger.Txn) error {
		job, err := readValue(tx, makeJobKey(id), storage.UnmarshalJob)
		if err != nil {
			return err
		}
		if job == nil {
			return storage.ErrNotFound
		}

		oldStage := job.Stage
		if err := fn(job); err != nil {
			return err
		}
		if job.ID != id {
			return storage.ErrImmutableField
		}
		if err := r.writeJob(tx, oldStage, job); err != nil {
			return err
		}
		result = job
		return nil
	})
	return result, err
}

// GetJobsByDocument returns every job of a document, oldest first.
func (r *JobRepository) GetJobsByDocument(ctx context.Context, documentID core.ID) ([]*core.ProcessingJob, error) {
	var results []*core.ProcessingJob
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, makePartialJobDocumentKey(documentID), func(_, val []byte) error {
			jobID, err := storage.UnmarshalID(val)
			if err != nil {
				return err
			}
			job, err := readValue(tx, makeJobKey(jobID), storage.UnmarshalJob)
			if err != nil {
				return err
			}
			if job != nil {
				results = append(results, job)
			}
			return nil
		})
	})
	return results, err
}

// GetJobsByStage returns jobs currently in any of the given stages, ordered by ID.
func (r *JobRepository) GetJobsByStage(ctx context.Context, stages ...core.JobStage) ([]*core.ProcessingJob, error) {
	var results []*core.ProcessingJob
	err := r.backend.View(func(tx *badger.Txn) error {
		for _, stage := range stages {
			err := scanPrefix(tx, makePartialJobStageKey(stage), func(_, val []byte) error {
				jobID, err := storage.UnmarshalID(val)
				if err != nil {
					return err
				}
				job, err := readValue(tx, makeJobKey(jobID), storage.UnmarshalJob)
				if err != nil {
					return err
				}
				if job != nil {
					results = append(results, job)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.ProcessingJob) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return results, nil
}

// writeJob stores job and keeps the stage index in step. oldStage is empty for new jobs.
func (r *JobRepository) writeJob(tx *badger.Txn, oldStage core.JobStage, job *core.ProcessingJob) error {
	value, err := storage.MarshalJob(job)
	if err != nil {
		return err
	}
	if err := tx.Set(makeJobKey(job.ID), value); err != nil {
		return err
	}
	if oldStage == job.Stage {
		return nil
	}
	if oldStage != "" {
		if err := tx.Delete(makeJobStageKey(oldStage, job.ID)); err != nil {
			return err
		}
	}
	return tx.Set(makeJobStageKey(job.Stage, job.ID), storage.MarshalID(job.ID))
}
