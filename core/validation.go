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
	"encoding/hex"
	"fmt"
)

// ValidateDocument validates a new Document according to domain rules.
//
// Validation rules:
//   - Filename must not be empty
//   - Source must be upload, external-link or imported
//   - ContentHash, when present, must be a hex BLAKE2b-256 digest
//   - External links need a SourceURL; other sources need a StorageID
//
// NOT validated (populated by the pipeline):
//   - Status, ProcessingError, Metadata, index fields
//   - ID (assigned from database sequences)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Filename == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyFilename)
	}

	if err := ValidateSource(doc.Source); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if doc.ContentHash != "" {
		if err := ValidateContentHash(doc.ContentHash); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
	}

	switch doc.Source {
	case SourceExternalLink:
		if doc.SourceURL == "" && doc.StorageID == "" {
			return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrMissingContentLocation)
		}
	default:
		if doc.StorageID == "" {
			return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrMissingContentLocation)
		}
	}

	return nil
}

// ValidateSource validates that a Source has a known value.
func ValidateSource(source Source) error {
	switch source {
	case SourceUpload, SourceExternalLink, SourceImported:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidSource, source)
}

// ValidateContentHash checks that hash is a lowercase hex digest of FingerprintSize bytes.
func ValidateContentHash(hash string) error {
	if len(hash) != FingerprintSize*2 {
		return fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidContentHash, FingerprintSize*2, len(hash))
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidContentHash, err)
	}
	return nil
}

// ValidateStageTransition checks that a job may move from one stage to another.
// Terminal stages never change, failed is reachable from any active stage,
// and active stages only move forward.
func ValidateStageTransition(from, to JobStage) error {
	if from.IsTerminal() {
		return fmt.Errorf("%w: stage %s", ErrJobTerminal, from)
	}
	if to == StageFailed {
		return nil
	}
	if to.order() == 0 || to.order() < from.order() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStageTransition, from, to)
	}
	return nil
}
