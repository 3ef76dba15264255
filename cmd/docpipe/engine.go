package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/docpipe"
	"github.com/poiesic/docpipe/blob/minio"
	"github.com/poiesic/docpipe/config"
)

// loadConfig reads the environment and applies command-line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if db := c.String("db"); db != "" {
		cfg.Storage.Path = db
	}
	if c.IsSet("workers") {
		cfg.Queue.Workers = c.Int("workers")
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	return cfg, cfg.Validate()
}

// openEngine builds an Engine from cfg. extra options are applied last.
func openEngine(ctx context.Context, cfg *config.Config, extra ...docpipe.Option) (*docpipe.Engine, error) {
	opts := []docpipe.Option{
		docpipe.WithAIConfig(cfg.AIConfig()),
		docpipe.WithQueue(cfg.Queue.Workers, cfg.Queue.MaxPending),
		docpipe.WithPolling(cfg.Poller.Interval, cfg.Poller.MaxWait),
		docpipe.WithChunking(cfg.Chunking.Size, cfg.Chunking.Overlap),
		docpipe.WithProcessingEnabled(cfg.Pipeline.ProcessingEnabled),
		docpipe.WithStaleAfter(cfg.Pipeline.StaleAfter),
		docpipe.WithRateLimit(cfg.Rate.RPS, cfg.Rate.Burst),
	}

	if cfg.Blob.Endpoint != "" {
		store, err := minio.New(ctx, minio.Config{
			Endpoint:  cfg.Blob.Endpoint,
			AccessKey: cfg.Blob.AccessKey,
			SecretKey: cfg.Blob.SecretKey,
			Bucket:    cfg.Blob.Bucket,
			UseSSL:    cfg.Blob.UseSSL,
			URLExpiry: cfg.Blob.URLExpiry,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect blob store: %w", err)
		}
		opts = append(opts, docpipe.WithBlobStore(store))
	} else {
		slog.Warn("no blob endpoint configured, document bytes live only as long as this process")
	}

	engine, err := docpipe.NewEngine(cfg.Storage.Path, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}
