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


package core

import (
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyFilename indicates the Filename field is empty.
	ErrEmptyFilename = errors.New("filename cannot be empty")

	// ErrInvalidSource indicates an unknown Source value.
	ErrInvalidSource = errors.New("invalid document source")

	// ErrInvalidContentHash indicates a malformed content hash.
	ErrInvalidContentHash = errors.New("invalid content hash")

	// ErrMissingContentLocation indicates a document has neither a storage ID nor a source URL.
	ErrMissingContentLocation = errors.New("document needs a storage id or source url")

	// ErrDuplicateContent is matched by every DuplicateContentError.
	ErrDuplicateContent = errors.New("content already exists")

	// ErrJobTerminal indicates an attempt to mutate a completed or failed job.
	ErrJobTerminal = errors.New("job is terminal")

	// ErrInvalidStageTransition indicates a job stage moved backwards.
	ErrInvalidStageTransition = errors.New("invalid stage transition")

	// ErrUnknownMetadataKey indicates a job metadata key outside the known set.
	ErrUnknownMetadataKey = errors.New("unknown job metadata key")
)

// DuplicateContentError is returned when a document with the same content hash already exists.
type DuplicateContentError struct {
	Hash       string
	ExistingID ID
}

func (e *DuplicateContentError) Error() string {
	return fmt.Sprintf("content %s already exists as document %d", e.Hash, e.ExistingID)
}

// Is makes errors.Is(err, ErrDuplicateContent) true for any DuplicateContentError.
func (e *DuplicateContentError) Is(target error) bool {
	return target == ErrDuplicateContent
}

// StageName identifies a pipeline stage executor.
type StageName string

const (
	StageNameExtraction StageName = "extraction"
	StageNameMetadata   StageName = "metadata"
	StageNameEmbedding  StageName = "embedding"
	StageNameIndexing   StageName = "indexing"
)

// Fatal reports whether a failure in this stage fails the document.
func (s StageName) Fatal() bool {
	return s != StageNameMetadata
}

// JobStage maps a stage executor to the job stage it runs under.
func (s StageName) JobStage() JobStage {
	switch s {
	case StageNameEmbedding:
		return StageEmbedding
	case StageNameIndexing:
		return StageStoring
	}
	return StageExtracting
}

// StageFailure records a stage executor error. Message is the stage's error text, verbatim.
type StageFailure struct {
	Stage   StageName
	Message string
	Err     error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("%s stage failed: %s", e.Stage, e.Message)
}

func (e *StageFailure) Unwrap() error {
	return e.Err
}

// NewStageFailure wraps err as a failure of stage.
func NewStageFailure(stage StageName, err error) *StageFailure {
	return &StageFailure{Stage: stage, Message: err.Error(), Err: err}
}
