package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/blob"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/jobs"
	"github.com/poiesic/docpipe/metrics"
	"github.com/poiesic/docpipe/poller"
	"github.com/poiesic/docpipe/storage"
	"golang.org/x/sync/errgroup"
)

// RunConfig is read once per run and passed explicitly.
type RunConfig struct {
	// ProcessingEnabled gates every run. A disabled run mutates nothing.
	ProcessingEnabled bool

	// Force ignores cached extracted text.
	Force bool

	// Handle is the queue handle that triggered the run, if any.
	Handle string
}

// Outcome summarizes a finished run.
type Outcome struct {
	DocumentID    core.ID
	JobID         core.ID
	Status        core.DocumentStatus
	IndexID       string
	IndexStatus   core.IndexStatus
	ChunkCount    int
	CacheHit      bool
	MetadataError string
}

// Services are the collaborators an Orchestrator drives.
type Services struct {
	Documents         storage.DocumentRepository
	Tracker           *jobs.Tracker
	Blobs             blob.Store
	TextExtractor     ai.TextExtractor
	MetadataExtractor ai.MetadataExtractor
	Embedder          ai.Embedder
	Indexer           ai.Indexer
	Poller            *poller.Poller
}

func (s Services) validate() error {
	switch {
	case s.Documents == nil:
		return ErrDocumentRepositoryRequired
	case s.Tracker == nil:
		return ErrJobTrackerRequired
	case s.Blobs == nil:
		return ErrBlobStoreRequired
	case s.TextExtractor == nil:
		return ErrTextExtractorRequired
	case s.MetadataExtractor == nil:
		return ErrMetadataExtractorRequired
	case s.Embedder == nil:
		return ErrEmbedderRequired
	case s.Indexer == nil:
		return ErrIndexerRequired
	case s.Poller == nil:
		return ErrPollerRequired
	}
	return nil
}

// Orchestrator runs documents through extraction, metadata, embedding and indexing.
type Orchestrator struct {
	documents    storage.DocumentRepository
	tracker      *jobs.Tracker
	stages       []stage
	chunkSize    int
	chunkOverlap int
	httpClient   *http.Client
	logger       *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithChunking sets the chunk size and overlap used before embedding.
// Defaults are 1000 and 100 characters.
func WithChunking(size, overlap int) Option {
	return func(o *Orchestrator) error {
		if size < 1 || overlap < 0 || overlap >= size {
			return fmt.Errorf("invalid chunking: size %d, overlap %d", size, overlap)
		}
		o.chunkSize = size
		o.chunkOverlap = overlap
		return nil
	}
}

// WithHTTPClient sets the client used to download externally linked documents.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Orchestrator) error {
		if client == nil {
			client = http.DefaultClient
		}
		o.httpClient = client
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates an Orchestrator over services.
func NewOrchestrator(services Services, opts ...Option) (*Orchestrator, error) {
	if err := services.validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		documents:    services.Documents,
		tracker:      services.Tracker,
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "orchestrator")

	// Order matters: each stage consumes what the previous one produced
	o.stages = []stage{
		&extractionStage{
			documents:  services.Documents,
			blobs:      services.Blobs,
			extractor:  services.TextExtractor,
			httpClient: o.httpClient,
			logger:     o.logger.With("stage", core.StageNameExtraction),
		},
		&metadataStage{
			documents: services.Documents,
			extractor: services.MetadataExtractor,
			logger:    o.logger.With("stage", core.StageNameMetadata),
		},
		&embeddingStage{
			embedder: services.Embedder,
			splitter: newSplitter(o.chunkSize, o.chunkOverlap),
			logger:   o.logger.With("stage", core.StageNameEmbedding),
		},
		&indexingStage{
			documents: services.Documents,
			indexer:   services.Indexer,
			poller:    services.Poller,
			logger:    o.logger.With("stage", core.StageNameIndexing),
		},
	}
	return o, nil
}

// Process runs every stage for docID and leaves the document completed or
// failed. A fatal stage failure is recorded on the document and the job and
// returned as *core.StageFailure. Errors loading or marking the document are
// returned without record updates; later storage errors fail the document and
// the open job before being returned.
func (o *Orchestrator) Process(ctx context.Context, docID core.ID, cfg RunConfig) (*Outcome, error) {
	if !cfg.ProcessingEnabled {
		return nil, ErrProcessingDisabled
	}

	state := &runState{config: cfg}

	// The record and its cached text are independent lookups
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := o.documents.GetDocument(gctx, docID)
		if err != nil {
			return fmt.Errorf("load document %d: %w", docID, err)
		}
		state.doc = doc
		return nil
	})
	g.Go(func() error {
		text, found, err := o.documents.GetExtractedText(gctx, docID)
		if err != nil {
			return fmt.Errorf("load cached text for document %d: %w", docID, err)
		}
		state.cachedText, state.cachedFound = text, found
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc, err := o.documents.PatchDocument(ctx, docID, func(doc *core.Document) error {
		doc.Status = core.DocumentProcessing
		doc.ProcessingError = ""
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark document %d processing: %w", docID, err)
	}
	state.doc = doc

	job, err := o.tracker.CreateJob(ctx, docID, core.StageExtracting)
	if err != nil {
		return nil, o.abandon(ctx, state, err)
	}
	state.job = job
	if cfg.Handle != "" {
		state.setMeta(core.MetaHandle, cfg.Handle)
	}

	logger := o.logger.With("document_id", docID, "job_id", job.ID)
	logger.Info("processing document", "force", cfg.Force)

	for _, st := range o.stages {
		if err := o.advance(ctx, state, st.name().JobStage()); err != nil {
			return nil, o.abandon(ctx, state, err)
		}

		started := time.Now()
		stageErr := st.run(ctx, state)
		metrics.ObserveStage(string(st.name()), time.Since(started), stageErr)
		if stageErr == nil {
			continue
		}

		var ie *interruptedError
		if errors.As(stageErr, &ie) {
			logger.Error("run interrupted", "stage", st.name(), "err", ie.err)
			return nil, o.abandon(ctx, state, ie.err)
		}

		failure := core.NewStageFailure(st.name(), stageErr)
		if !st.name().Fatal() {
			logger.Warn("non-fatal stage failure", "stage", st.name(), "err", stageErr)
			continue
		}
		logger.Error("stage failed", "stage", st.name(), "err", stageErr)
		return o.fail(ctx, state, failure)
	}

	return o.complete(ctx, state, logger)
}

// advance moves the job to stage, flushing accumulated metadata.
func (o *Orchestrator) advance(ctx context.Context, state *runState, stage core.JobStage) error {
	if state.job.Stage == stage && len(state.meta.Fields) == 0 {
		return nil
	}
	update := jobs.Update{Metadata: state.takeMeta()}
	if state.job.Stage != stage {
		update.Stage = stage
	}
	job, err := o.tracker.UpdateJob(ctx, state.job.ID, update)
	if err != nil {
		return err
	}
	state.job = job
	return nil
}

// complete moves the job to completed first and then the document.
func (o *Orchestrator) complete(ctx context.Context, state *runState, logger *slog.Logger) (*Outcome, error) {
	job, err := o.tracker.UpdateJob(ctx, state.job.ID, jobs.Update{
		Stage:    core.StageCompleted,
		Metadata: state.takeMeta(),
	})
	if err != nil {
		return nil, o.abandon(ctx, state, err)
	}
	state.job = job

	doc, err := o.documents.PatchDocument(ctx, state.doc.ID, func(doc *core.Document) error {
		doc.Status = core.DocumentCompleted
		doc.ProcessingError = ""
		doc.ProcessedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, o.abandon(ctx, state, fmt.Errorf("mark document %d completed: %w", state.doc.ID, err))
	}
	state.doc = doc

	metrics.DocumentOutcomes.WithLabelValues(string(core.DocumentCompleted)).Inc()
	logger.Info("document completed", "chunks", len(state.chunks), "index_status", state.indexStatus)
	return state.outcome(), nil
}

// fail records failure on the job and the document and returns it.
func (o *Orchestrator) fail(ctx context.Context, state *runState, failure *core.StageFailure) (*Outcome, error) {
	state.setMeta(core.MetaFailedStage, failure.Stage)
	if _, err := o.tracker.UpdateJob(ctx, state.job.ID, jobs.Update{
		Stage:    core.StageFailed,
		Error:    failure.Message,
		Metadata: state.takeMeta(),
	}); err != nil {
		o.logger.Error("failed to record job failure", "job_id", state.job.ID, "err", err)
	}

	if _, err := o.documents.PatchDocument(ctx, state.doc.ID, func(doc *core.Document) error {
		doc.Status = core.DocumentFailed
		doc.ProcessingError = failure.Message
		doc.ProcessedAt = time.Now().UTC()
		return nil
	}); err != nil {
		o.logger.Error("failed to record document failure", "document_id", state.doc.ID, "err", err)
	}

	metrics.DocumentOutcomes.WithLabelValues(string(core.DocumentFailed)).Inc()
	return nil, failure
}

// abandon fails the document and any open job after an infrastructure error
// interrupted a run that had already moved the document to processing.
func (o *Orchestrator) abandon(ctx context.Context, state *runState, cause error) error {
	if state.job != nil && !state.job.Stage.IsTerminal() {
		if _, err := o.tracker.UpdateJob(ctx, state.job.ID, jobs.Update{
			Stage: core.StageFailed,
			Error: cause.Error(),
		}); err != nil {
			o.logger.Error("failed to record interrupted job", "job_id", state.job.ID, "err", err)
		}
	}

	if _, err := o.documents.PatchDocument(ctx, state.doc.ID, func(doc *core.Document) error {
		doc.Status = core.DocumentFailed
		doc.ProcessingError = cause.Error()
		return nil
	}); err != nil && !errors.Is(err, storage.ErrNotFound) {
		o.logger.Error("failed to record interrupted run", "document_id", state.doc.ID, "err", err)
	}
	metrics.DocumentOutcomes.WithLabelValues(string(core.DocumentFailed)).Inc()
	return cause
}

// takeMeta returns the accumulated metadata and resets it.
func (s *runState) takeMeta() core.JobMetadata {
	meta := s.meta
	s.meta = core.JobMetadata{}
	return meta
}

func (s *runState) outcome() *Outcome {
	return &Outcome{
		DocumentID:    s.doc.ID,
		JobID:         s.job.ID,
		Status:        s.doc.Status,
		IndexID:       s.indexID,
		IndexStatus:   s.indexStatus,
		ChunkCount:    len(s.chunks),
		CacheHit:      s.cacheHit,
		MetadataError: s.metadataError,
	}
}
