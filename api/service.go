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

package api

import (
	"context"

	"github.com/poiesic/docpipe"
	"github.com/poiesic/docpipe/blob"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/fingerprint"
	"github.com/poiesic/docpipe/ingestion"
	"github.com/poiesic/docpipe/queue"
)

// Service is the subset of *docpipe.Engine the HTTP API drives.
type Service interface {
	Ingest(ctx context.Context, req docpipe.IngestRequest) (*docpipe.IngestResult, error)
	Document(ctx context.Context, id core.ID) (*core.Document, error)
	DeleteDocument(ctx context.Context, id core.ID) error
	JobsForDocument(ctx context.Context, id core.ID) ([]*core.ProcessingJob, error)
	CheckDuplicate(ctx context.Context, hash string) (*fingerprint.Result, error)
	Enqueue(ctx context.Context, documentID core.ID, force bool) (string, error)
	Status(ctx context.Context, handle string) (*core.ReprocessingRequest, error)
	Cancel(ctx context.Context, handle string) error
	ActiveJobs(ctx context.Context) ([]*core.ProcessingJob, error)
	FailedJobs(ctx context.Context) ([]*core.ProcessingJob, error)
	UploadURL(ctx context.Context) (*blob.UploadTarget, error)
	Reconcile(ctx context.Context) (*ingestion.SweepReport, error)
	Query(ctx context.Context, text string, minSimilarity float32, limit int) ([]*core.ChunkMatch, error)
	QueueStats() queue.Stats
}

var _ Service = (*docpipe.Engine)(nil)
