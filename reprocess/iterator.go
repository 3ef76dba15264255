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
	"slices"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

const (
	// DefaultBatchSize is the default number of documents to fetch in each batch
	DefaultBatchSize = 50
)

// DocumentIterator walks stored documents in ID order, one page at a time.
type DocumentIterator struct {
	repo      storage.DocumentRepository
	batchSize int
	statuses  []core.DocumentStatus
}

// NewDocumentIterator creates a new document iterator.
// batchSize: number of documents per batch (defaults when <= 0)
// statuses: only documents in one of these statuses are yielded; empty means all
func NewDocumentIterator(repo storage.DocumentRepository, batchSize int, statuses ...core.DocumentStatus) *DocumentIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &DocumentIterator{
		repo:      repo,
		batchSize: batchSize,
		statuses:  statuses,
	}
}

// ForEach calls fn for each non-empty batch of documents with ID > afterID.
// Iteration stops on the first error from fn or when documents run out.
// Context cancellation is checked between batches.
func (it *DocumentIterator) ForEach(ctx context.Context, afterID core.ID, fn func([]*core.Document) error) error {
	cursor := afterID
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := it.repo.ListDocuments(ctx, cursor, it.batchSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		cursor = page[len(page)-1].ID

		batch := page
		if len(it.statuses) > 0 {
			batch = slices.DeleteFunc(slices.Clone(page), func(doc *core.Document) bool {
				return !slices.Contains(it.statuses, doc.Status)
			})
		}
		if len(batch) > 0 {
			if err := fn(batch); err != nil {
				return err
			}
		}

		if len(page) < it.batchSize {
			return nil
		}
	}
}

// Count returns how many documents ForEach would yield.
func (it *DocumentIterator) Count(ctx context.Context, afterID core.ID) (int, error) {
	total := 0
	err := it.ForEach(ctx, afterID, func(batch []*core.Document) error {
		total += len(batch)
		return nil
	})
	return total, err
}
