package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/docpipe"
	"github.com/poiesic/docpipe/api"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/metrics"
	"github.com/poiesic/docpipe/reprocess"
)

const closeTimeout = 30 * time.Second

// withEngine loads configuration, opens an engine, runs fn and closes the
// engine again, letting queued runs drain for up to closeTimeout.
func withEngine(c *cli.Context, fn func(ctx context.Context, engine *docpipe.Engine) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}

	runErr := fn(ctx, engine)

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := engine.Close(closeCtx); err != nil {
		slog.Error("error closing engine", "err", err)
	}
	return runErr
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	logger := slog.Default()
	router := api.NewRouter(engine, logger)
	serveErr := api.Serve(ctx, api.ServerConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, router, logger)

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := engine.Close(closeCtx); err != nil {
		logger.Error("error closing engine", "err", err)
	}
	return serveErr
}

func ingestCommand(c *cli.Context) error {
	link := c.String("url")
	files := c.Args().Slice()
	if link == "" && len(files) == 0 {
		return errors.New("at least one file or --url is required")
	}
	if c.String("title") != "" && len(files) > 1 {
		return errors.New("--title can only be used with a single file")
	}

	return withEngine(c, func(ctx context.Context, engine *docpipe.Engine) error {
		var requests []docpipe.IngestRequest
		if link != "" {
			requests = append(requests, docpipe.IngestRequest{
				Filename:  filepath.Base(link),
				Title:     c.String("title"),
				Source:    core.SourceExternalLink,
				SourceURL: link,
			})
		}
		for _, path := range files {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			requests = append(requests, docpipe.IngestRequest{
				Filename:    filepath.Base(path),
				Title:       c.String("title"),
				Source:      core.SourceUpload,
				Data:        data,
				ContentType: mime.TypeByExtension(filepath.Ext(path)),
			})
		}

		out := c.App.Writer
		failed := 0
		for _, req := range requests {
			result, err := engine.Ingest(ctx, req)
			var dup *core.DuplicateContentError
			switch {
			case errors.As(err, &dup):
				fmt.Fprintf(out, "%s: duplicate of document %d\n", req.Filename, dup.ExistingID)
				continue
			case err != nil:
				failed++
				fmt.Fprintf(out, "%s: %v\n", req.Filename, err)
				continue
			}

			doc := result.Document
			if result.Handle == "" || c.Bool("no-wait") {
				fmt.Fprintf(out, "%s: document %d %s\n", req.Filename, doc.ID, doc.Status)
				continue
			}
			request, err := engine.Wait(ctx, result.Handle)
			if err != nil {
				return err
			}
			if request.Status != core.RequestCompleted {
				failed++
				fmt.Fprintf(out, "%s: document %d %s: %s\n", req.Filename, doc.ID, request.Status, request.Error)
				continue
			}
			fmt.Fprintf(out, "%s: document %d completed\n", req.Filename, doc.ID)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d documents failed", failed, len(requests))
		}
		return nil
	})
}

func reprocessCommand(c *cli.Context) error {
	config := &reprocess.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		Force:          c.Bool("force"),
		Resume:         c.Bool("resume"),
	}
	for _, s := range c.StringSlice("status") {
		status, err := parseDocumentStatus(s)
		if err != nil {
			return err
		}
		config.Statuses = append(config.Statuses, status)
	}

	return withEngine(c, func(ctx context.Context, engine *docpipe.Engine) error {
		report, err := engine.Reprocess(ctx, config, c.App.Writer)
		if err != nil {
			return fmt.Errorf("reprocessing failed: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "Reprocessed %d documents in %s: %d completed, %d failed, %d canceled, %d skipped\n",
			report.Total, report.Elapsed.Round(time.Millisecond), report.Completed, report.Failed, report.Canceled, report.Skipped)
		return nil
	})
}

func parseDocumentStatus(s string) (core.DocumentStatus, error) {
	switch status := core.DocumentStatus(s); status {
	case core.DocumentPending, core.DocumentProcessing, core.DocumentCompleted, core.DocumentFailed:
		return status, nil
	}
	return "", fmt.Errorf("invalid status %q: must be one of pending, processing, completed, failed", s)
}

func jobsCommand(c *cli.Context) error {
	if c.Bool("failed") && c.Bool("active") {
		return errors.New("--failed and --active are mutually exclusive")
	}
	return withEngine(c, func(ctx context.Context, engine *docpipe.Engine) error {
		list := engine.ActiveJobs
		if c.Bool("failed") {
			list = engine.FailedJobs
		}
		found, err := list(ctx)
		if err != nil {
			return err
		}
		printJobs(c, found)
		return nil
	})
}

func printJobs(c *cli.Context, found []*core.ProcessingJob) {
	if len(found) == 0 {
		fmt.Fprintln(c.App.Writer, "No jobs.")
		return
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tDOCUMENT\tSTAGE\tSTARTED\tERROR")
	for _, job := range found {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", job.ID, job.DocumentID, job.Stage,
			job.StartedAt.Format(time.RFC3339), job.Error)
	}
	w.Flush()
}

func reconcileCommand(c *cli.Context) error {
	return withEngine(c, func(ctx context.Context, engine *docpipe.Engine) error {
		report, err := engine.Reconcile(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Checked %d: %d available, %d failed, %d stale, %d pending, %d errors\n",
			report.Checked, report.Available, report.Failed, report.Stale, report.Pending, report.Errors)
		return nil
	})
}

func queryCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one query text is required")
	}
	return withEngine(c, func(ctx context.Context, engine *docpipe.Engine) error {
		matches, err := engine.Query(ctx, c.Args().First(), float32(c.Float64("min-score")), c.Int("limit"))
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Fprintln(c.App.Writer, "No matches.")
			return nil
		}
		for _, m := range matches {
			fmt.Fprintf(c.App.Writer, "[%.3f] document %d chunk %d: %s\n", m.Score, m.DocumentID, m.ChunkIndex, m.Text)
		}
		return nil
	})
}
