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

// Package docpipe ingests documents and drives them through extraction,
// metadata, embedding and indexing.
//
// Engine is the entry point. It owns the badger store, the work queue and
// the pipeline, and exposes ingestion, reprocessing and job inspection:
//
//	engine, err := docpipe.NewEngine("/var/lib/docpipe")
//	res, err := engine.Ingest(ctx, docpipe.IngestRequest{Filename: "q3.pdf", Data: data})
//	req, err := engine.Wait(ctx, res.Handle)
package docpipe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/ai/localindex"
	"github.com/poiesic/docpipe/ai/openai"
	"github.com/poiesic/docpipe/ai/pdf"
	"github.com/poiesic/docpipe/blob"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/fingerprint"
	"github.com/poiesic/docpipe/ingestion"
	"github.com/poiesic/docpipe/jobs"
	"github.com/poiesic/docpipe/metrics"
	"github.com/poiesic/docpipe/poller"
	"github.com/poiesic/docpipe/queue"
	"github.com/poiesic/docpipe/reprocess"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/storage/badger"
)

type similarityFinder interface {
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.ChunkMatch, error)
}

// Engine wires storage, the work queue and the pipeline together.
type Engine struct {
	repos        *badger.Repositories
	provider     ai.Provider
	embedder     ai.Embedder
	indexer      ai.Indexer
	finder       similarityFinder
	blobs        blob.Store
	fingerprints *fingerprint.Service
	tracker      *jobs.Tracker
	queue        *queue.Queue
	orchestrator *ingestion.Orchestrator
	reconciler   *ingestion.Reconciler
	processing   bool
	logger       *slog.Logger

	mu       sync.Mutex
	inflight map[string]chan struct{}
}

// IngestRequest describes a new document. Exactly one of Data, StorageID or
// SourceURL locates the content; Data and StorageID are fingerprinted.
type IngestRequest struct {
	Filename    string
	Title       string
	Source      core.Source
	Data        []byte
	ContentType string
	StorageID   string
	SourceURL   string
	Approved    bool
}

// IngestResult is a created document and, when it was queued, its request handle.
type IngestResult struct {
	Document *core.Document
	Handle   string
}

// NewEngine opens the store at path and starts the work queue.
func NewEngine(path string, opts ...Option) (*Engine, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	var repos *badger.Repositories
	var err error
	if options.inMemory {
		repos, err = badger.NewMemoryRepositories()
	} else {
		repos, err = badger.OpenRepositories(path, false)
	}
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			repos.Close()
			return nil, err
		}
	}

	e := &Engine{
		repos:      repos,
		provider:   provider,
		blobs:      options.blobs,
		processing: options.processingEnabled,
		logger:     logger.With("component", "engine"),
		inflight:   make(map[string]chan struct{}),
	}
	if err := e.wire(options); err != nil {
		provider.Close()
		repos.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) wire(options *engineOptions) error {
	logger := options.logger

	if e.blobs == nil {
		e.blobs = blob.NewMemoryStore()
	}

	extractor := options.textExtractor
	if extractor == nil {
		extractor = pdf.NewExtractor()
	}

	indexer := options.indexer
	if indexer == nil {
		indexer = localindex.New(e.repos.Index)
	}
	e.finder, _ = indexer.(similarityFinder)

	e.embedder = e.provider.Embedder()
	metadata := e.provider.MetadataExtractor()
	if options.rps > 0 {
		burst := max(options.burst, 1)
		e.embedder = ai.ThrottleEmbedder(e.embedder, rate.NewLimiter(rate.Limit(options.rps), burst))
		metadata = ai.ThrottleMetadataExtractor(metadata, rate.NewLimiter(rate.Limit(options.rps), burst))
		indexer = ai.ThrottleIndexer(indexer, rate.NewLimiter(rate.Limit(options.rps), burst))
	}
	e.indexer = indexer

	var err error
	e.fingerprints, err = fingerprint.NewService(e.repos.Documents, fingerprint.WithLogger(logger))
	if err != nil {
		return err
	}
	e.tracker, err = jobs.NewTracker(e.repos.Jobs, jobs.WithLogger(logger))
	if err != nil {
		return err
	}

	p, err := poller.New(indexer,
		poller.WithInterval(options.pollInterval),
		poller.WithMaxWait(options.pollMaxWait),
		poller.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	e.orchestrator, err = ingestion.NewOrchestrator(ingestion.Services{
		Documents:         e.repos.Documents,
		Tracker:           e.tracker,
		Blobs:             e.blobs,
		TextExtractor:     extractor,
		MetadataExtractor: metadata,
		Embedder:          e.embedder,
		Indexer:           indexer,
		Poller:            p,
	}, ingestion.WithChunking(options.chunkSize, options.chunkOverlap), ingestion.WithLogger(logger))
	if err != nil {
		return err
	}

	e.reconciler, err = ingestion.NewReconciler(e.repos.Documents, indexer,
		ingestion.WithStaleAfter(options.staleAfter),
		ingestion.WithReconcilerLogger(logger),
	)
	if err != nil {
		return err
	}

	e.queue, err = queue.New(
		queue.WithWorkers(options.workers),
		queue.WithMaxPending(options.maxPending),
		queue.WithObserver(metrics.QueueObserver{}),
		queue.WithLogger(logger),
	)
	return err
}

// Close stops the queue, waiting for running pipelines until ctx ends,
// then releases the provider and the store.
func (e *Engine) Close(ctx context.Context) error {
	queueErr := e.queue.Close(ctx)
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}
	if err := e.repos.Close(); err != nil {
		e.logger.Error("error closing storage", "err", err)
		return err
	}
	return queueErr
}

// Ingest fingerprints and stores a new document, then queues it for processing.
// A duplicate yields *core.DuplicateContentError and nothing is stored.
// When the queue is saturated or processing is disabled the document stays
// pending and the result carries no handle.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	doc := &core.Document{
		Filename:  req.Filename,
		Title:     req.Title,
		Source:    req.Source,
		StorageID: req.StorageID,
		SourceURL: req.SourceURL,
		Approved:  req.Approved,
	}
	if doc.Source == "" {
		doc.Source = core.SourceUpload
		if req.SourceURL != "" && req.Data == nil && req.StorageID == "" {
			doc.Source = core.SourceExternalLink
		}
	}

	if doc.Filename == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidDocument, core.ErrEmptyFilename)
	}
	if err := core.ValidateSource(doc.Source); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidDocument, err)
	}

	var hash string
	switch {
	case req.Data != nil:
		hash = core.Fingerprint(req.Data)
	case req.StorageID != "":
		data, err := e.blobs.Fetch(ctx, req.StorageID)
		if err != nil {
			return nil, fmt.Errorf("fetch %s for fingerprinting: %w", req.StorageID, err)
		}
		hash = core.Fingerprint(data)
	case req.SourceURL == "":
		return nil, ErrNoContent
	}

	if hash != "" {
		check, err := e.fingerprints.CheckDuplicate(ctx, hash)
		if err != nil {
			return nil, err
		}
		if check.IsDuplicate {
			return nil, &core.DuplicateContentError{Hash: hash, ExistingID: check.Existing.ID}
		}
	}

	if req.Data != nil {
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		storageID, err := e.blobs.Put(ctx, bytes.NewReader(req.Data), int64(len(req.Data)), contentType)
		if err != nil {
			return nil, fmt.Errorf("store document bytes: %w", err)
		}
		doc.StorageID = storageID
	}

	created, err := e.fingerprints.Create(ctx, doc, hash)
	if err != nil {
		// A concurrent ingest claimed the hash after the check; drop our copy
		if req.Data != nil {
			if delErr := e.blobs.Delete(ctx, doc.StorageID); delErr != nil {
				e.logger.Warn("failed to remove unclaimed blob", "storage_id", doc.StorageID, "err", delErr)
			}
		}
		return nil, err
	}
	e.logger.Info("document ingested", "document_id", created.ID, "filename", created.Filename)

	result := &IngestResult{Document: created}
	if !e.processing {
		return result, nil
	}
	handle, err := e.Enqueue(ctx, created.ID, false)
	switch {
	case err == nil:
		result.Handle = handle
	case errors.Is(err, queue.ErrQueueSaturated):
		e.logger.Warn("queue saturated, document left pending", "document_id", created.ID)
	default:
		return result, err
	}
	return result, nil
}

// CheckDuplicate reports whether content with hash is already stored.
func (e *Engine) CheckDuplicate(ctx context.Context, hash string) (*fingerprint.Result, error) {
	return e.fingerprints.CheckDuplicate(ctx, hash)
}

// Document returns a stored document.
func (e *Engine) Document(ctx context.Context, id core.ID) (*core.Document, error) {
	return e.repos.Documents.GetDocument(ctx, id)
}

// Enqueue schedules a pipeline run for documentID and returns its handle.
// The request is recorded before the run can start and patched once when it ends.
func (e *Engine) Enqueue(ctx context.Context, documentID core.ID, force bool) (string, error) {
	if _, err := e.repos.Documents.GetDocument(ctx, documentID); err != nil {
		return "", fmt.Errorf("enqueue document %d: %w", documentID, err)
	}

	var (
		handle  queue.Handle
		failure *core.StageFailure
	)
	ready := make(chan struct{})
	done := make(chan struct{})

	handler := func(qctx context.Context) error {
		select {
		case <-ready:
		case <-qctx.Done():
			return qctx.Err()
		}
		if err := e.markRunning(qctx, string(handle)); err != nil {
			return err
		}
		_, err := e.orchestrator.Process(qctx, documentID, ingestion.RunConfig{
			ProcessingEnabled: e.processing,
			Force:             force,
			Handle:            string(handle),
		})
		// Stage failures are already on the document and the job; only
		// errors that stopped the run itself belong to the queue.
		if errors.As(err, &failure) {
			return nil
		}
		return err
	}
	onComplete := func(r queue.Result) {
		<-ready
		e.finishRequest(r, failure)
		e.mu.Lock()
		delete(e.inflight, string(r.Handle))
		e.mu.Unlock()
		close(done)
	}

	handle, err := e.queue.Enqueue(handler,
		queue.WithOnComplete(onComplete),
		queue.WithLabel(fmt.Sprintf("document-%d", documentID)),
	)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	e.inflight[string(handle)] = done
	e.mu.Unlock()

	err = e.repos.Requests.SaveRequest(ctx, &core.ReprocessingRequest{
		Handle:     string(handle),
		DocumentID: documentID,
		Force:      force,
		Status:     core.RequestPending,
		EnqueuedAt: time.Now().UTC(),
	})
	close(ready)
	if err != nil {
		if cancelErr := e.queue.Cancel(handle); cancelErr != nil {
			e.logger.Warn("could not withdraw unrecorded request", "handle", handle, "err", cancelErr)
		}
		return "", fmt.Errorf("record request: %w", err)
	}

	e.logger.Debug("document enqueued", "document_id", documentID, "handle", handle, "force", force)
	return string(handle), nil
}

func (e *Engine) markRunning(ctx context.Context, handle string) error {
	_, err := e.repos.Requests.PatchRequest(ctx, handle, func(req *core.ReprocessingRequest) error {
		req.Status = core.RequestRunning
		return nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return ErrRequestNotRecorded
	}
	return err
}

// finishRequest records how a queued run ended. A run that finished with a
// stage failure succeeded as far as the queue is concerned but is recorded
// as a failed request carrying the stage message.
func (e *Engine) finishRequest(r queue.Result, failure *core.StageFailure) {
	status := core.RequestFailed
	message := ""
	if r.Err != nil {
		message = r.Err.Error()
	}
	switch {
	case r.Status == queue.StatusSucceeded && failure != nil:
		message = failure.Error()
	case r.Status == queue.StatusSucceeded:
		status = core.RequestCompleted
	case r.Status == queue.StatusCanceled:
		status = core.RequestCanceled
	}

	_, err := e.repos.Requests.PatchRequest(context.Background(), string(r.Handle), func(req *core.ReprocessingRequest) error {
		req.Status = status
		req.CompletedAt = r.FinishedAt
		req.Error = message
		return nil
	})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		e.logger.Error("failed to record request outcome", "handle", r.Handle, "status", status, "err", err)
	}
}

// Wait blocks until the request behind handle is terminal or ctx ends.
// Requests from an earlier process are returned as last recorded.
func (e *Engine) Wait(ctx context.Context, handle string) (*core.ReprocessingRequest, error) {
	e.mu.Lock()
	done, ok := e.inflight[handle]
	e.mu.Unlock()

	if ok {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return e.Status(ctx, handle)
}

// Status returns the recorded state of a request.
func (e *Engine) Status(ctx context.Context, handle string) (*core.ReprocessingRequest, error) {
	req, err := e.repos.Requests.GetRequest(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", handle, err)
	}
	return req, nil
}

// Cancel withdraws a request that has not started.
func (e *Engine) Cancel(ctx context.Context, handle string) error {
	err := e.queue.Cancel(queue.Handle(handle))
	if errors.Is(err, queue.ErrUnknownHandle) {
		if _, lookupErr := e.Status(ctx, handle); lookupErr == nil {
			return queue.ErrNotCancelable
		}
	}
	return err
}

// QueueStats reports current queue occupancy.
func (e *Engine) QueueStats() queue.Stats {
	return e.queue.Stats()
}

// ActiveJobs returns jobs that have not finished.
func (e *Engine) ActiveJobs(ctx context.Context) ([]*core.ProcessingJob, error) {
	return e.tracker.GetActiveJobs(ctx)
}

// FailedJobs returns failed jobs.
func (e *Engine) FailedJobs(ctx context.Context) ([]*core.ProcessingJob, error) {
	return e.tracker.GetFailedJobs(ctx)
}

// JobsForDocument returns every processing attempt for a document, oldest first.
func (e *Engine) JobsForDocument(ctx context.Context, id core.ID) ([]*core.ProcessingJob, error) {
	return e.tracker.JobsForDocument(ctx, id)
}

// DeleteDocument removes a document's index entry, then the document with its
// cached text and jobs.
func (e *Engine) DeleteDocument(ctx context.Context, id core.ID) error {
	doc, err := e.repos.Documents.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.IndexID != "" {
		if err := e.indexer.Delete(ctx, doc.IndexID); err != nil && !errors.Is(err, ai.ErrIndexEntryNotFound) {
			return fmt.Errorf("delete index entry %s: %w", doc.IndexID, err)
		}
	}
	if err := e.repos.Documents.DeleteDocument(ctx, id); err != nil {
		return err
	}
	e.logger.Info("document deleted", "document_id", id)
	return nil
}

// UploadURL returns a presigned target for uploading document bytes directly to the blob store.
func (e *Engine) UploadURL(ctx context.Context) (*blob.UploadTarget, error) {
	return e.blobs.GenerateUploadURL(ctx)
}

// Reconcile re-checks documents whose index entries are still processing.
func (e *Engine) Reconcile(ctx context.Context) (*ingestion.SweepReport, error) {
	return e.reconciler.Sweep(ctx)
}

// Reprocess pushes stored documents back through the pipeline in bulk.
func (e *Engine) Reprocess(ctx context.Context, config *reprocess.Config, progress io.Writer) (*reprocess.Report, error) {
	r, err := reprocess.NewReprocessor(e.repos.Documents, e.repos.Checkpoints, e, config, progress)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// Query embeds text and returns the closest indexed chunks.
func (e *Engine) Query(ctx context.Context, text string, minSimilarity float32, limit int) ([]*core.ChunkMatch, error) {
	if e.finder == nil {
		return nil, ErrQueryUnsupported
	}
	vector, err := e.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return e.finder.FindSimilar(ctx, vector, minSimilarity, limit)
}
