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


package badger

import (
	"errors"

	"github.com/poiesic/docpipe/storage"
)

// Repositories bundles every repository sharing one backend.
type Repositories struct {
	Backend     *Backend
	Documents   *DocumentRepository
	Jobs        *JobRepository
	Requests    *RequestRepository
	Checkpoints *CheckpointRepository
	Index       *IndexRepository
}

var _ storage.Repository = (*Repositories)(nil)

// OpenRepositories opens a backend at path and creates every repository on it.
// An empty path with inMemory set yields a throwaway store.
func OpenRepositories(path string, inMemory bool) (*Repositories, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	docs, err := NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	jobs, err := NewJobRepository(backend)
	if err != nil {
		docs.Close()
		backend.Close()
		return nil, err
	}

	return &Repositories{
		Backend:     backend,
		Documents:   docs,
		Jobs:        jobs,
		Requests:    NewRequestRepository(backend),
		Checkpoints: NewCheckpointRepository(backend),
		Index:       NewIndexRepository(backend),
	}, nil
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must Close the result when done.
func NewMemoryRepositories() (*Repositories, error) {
	return OpenRepositories("", true)
}

// Close releases the ID sequences and then the backend.
func (r *Repositories) Close() error {
	return errors.Join(
		r.Jobs.Close(),
		r.Documents.Close(),
		r.Requests.Close(),
		r.Index.Close(),
		r.Backend.Close(),
	)
}
