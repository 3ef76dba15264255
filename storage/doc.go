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


// Package storage provides the storage abstraction layer for docpipe.
//
// This package defines repository interfaces that decouple persistence from
// pipeline logic. The BadgerDB implementation lives in storage/badger.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - DocumentRepository: document records, the content hash index and the extracted text cache
//   - JobRepository: per-attempt processing jobs with a stage index
//   - RequestRepository: work queue requests keyed by handle
//   - CheckpointRepository: resume markers for bulk reprocessing
//   - IndexRepository: chunk vectors for the local index backend
//
// # Atomic updates
//
// Records that several writers touch are never overwritten from a stale copy.
// Writers pass a patch function that runs against the current stored value
// inside a single transaction:
//
//	doc, err := repo.PatchDocument(ctx, id, func(d *core.Document) error {
//	    d.Status = core.DocumentProcessing
//	    return nil
//	})
//
// Implementations retry the patch when a concurrent writer commits first.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	repos, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repos.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
