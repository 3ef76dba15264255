package docpipe

import (
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/blob"
)

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	inMemory          bool
	aiConfig          *ai.Config
	provider          ai.Provider
	textExtractor     ai.TextExtractor
	indexer           ai.Indexer
	blobs             blob.Store
	workers           int
	maxPending        int
	pollInterval      time.Duration
	pollMaxWait       time.Duration
	chunkSize         int
	chunkOverlap      int
	processingEnabled bool
	staleAfter        time.Duration
	rps               float64
	burst             int
	logger            *slog.Logger
}

func defaultOptions() *engineOptions {
	return &engineOptions{
		aiConfig:          ai.DefaultConfig(),
		workers:           3,
		maxPending:        100,
		pollInterval:      2 * time.Second,
		pollMaxWait:       60 * time.Second,
		chunkSize:         1000,
		chunkOverlap:      100,
		processingEnabled: true,
		logger:            slog.Default(),
	}
}

// WithInMemory keeps all state in memory. The path passed to NewEngine is ignored.
func WithInMemory() Option {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithAIConfig sets the model endpoints used when no provider is supplied.
func WithAIConfig(config *ai.Config) Option {
	return func(o *engineOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithProvider supplies the embedding and metadata services directly.
// The Engine takes ownership and closes it.
func WithProvider(provider ai.Provider) Option {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithTextExtractor replaces the default PDF/plain-text extractor.
func WithTextExtractor(extractor ai.TextExtractor) Option {
	return func(o *engineOptions) {
		o.textExtractor = extractor
	}
}

// WithIndexer replaces the default local index.
func WithIndexer(indexer ai.Indexer) Option {
	return func(o *engineOptions) {
		o.indexer = indexer
	}
}

// WithBlobStore sets where document bytes live. Default is an in-memory store.
func WithBlobStore(store blob.Store) Option {
	return func(o *engineOptions) {
		o.blobs = store
	}
}

// WithQueue sets the worker count and the pending backlog limit.
func WithQueue(workers, maxPending int) Option {
	return func(o *engineOptions) {
		o.workers = workers
		o.maxPending = maxPending
	}
}

// WithPolling sets how often and how long index entries are polled.
func WithPolling(interval, maxWait time.Duration) Option {
	return func(o *engineOptions) {
		o.pollInterval = interval
		o.pollMaxWait = maxWait
	}
}

// WithChunking sets the embedding chunk size and overlap in characters.
func WithChunking(size, overlap int) Option {
	return func(o *engineOptions) {
		o.chunkSize = size
		o.chunkOverlap = overlap
	}
}

// WithProcessingEnabled toggles pipeline runs. Documents are still ingested when disabled.
func WithProcessingEnabled(enabled bool) Option {
	return func(o *engineOptions) {
		o.processingEnabled = enabled
	}
}

// WithStaleAfter lets Reconcile fail index entries stuck in processing longer than d.
func WithStaleAfter(d time.Duration) Option {
	return func(o *engineOptions) {
		o.staleAfter = d
	}
}

// WithRateLimit throttles calls to the model and index services. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *engineOptions) {
		o.rps = rps
		o.burst = burst
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
