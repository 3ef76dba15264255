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


package ingestion

import (
	"context"

	"github.com/poiesic/docpipe/core"
)

// stage is one step of a pipeline run.
// Implementations read and extend the shared run state.
type stage interface {
	// name identifies the stage in job records and metrics.
	name() core.StageName

	// run executes the stage. A returned error is a stage failure.
	run(ctx context.Context, state *runState) error
}

// interruptedError wraps a storage or context error raised inside a stage.
// The orchestrator treats it as an infrastructure error, not a stage failure.
type interruptedError struct {
	err error
}

func (e *interruptedError) Error() string { return e.err.Error() }

func (e *interruptedError) Unwrap() error { return e.err }

func interrupted(err error) error {
	return &interruptedError{err: err}
}

// runState is carried from stage to stage within one run.
type runState struct {
	doc    *core.Document
	job    *core.ProcessingJob
	config RunConfig

	// cached text loaded before the run started
	cachedText  string
	cachedFound bool

	text          string
	pageCount     int
	cacheHit      bool
	metadataError string
	chunks        []core.IndexedChunk
	indexID       string
	indexStatus   core.IndexStatus
	pollAttempts  int

	// meta accumulates job metadata written when the stage finishes
	meta core.JobMetadata
}

// setMeta records a known metadata key. Keys used here are all known.
func (s *runState) setMeta(key core.MetadataKey, value any) {
	_ = s.meta.Set(key, value)
}
