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


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docpipe",
		Usage: "Document ingestion and processing pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Load settings from this .env file (repeatable)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the work queue and the admin HTTP API",
				Action: serveCommand,
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:  "addr",
						Usage: "HTTP listen address (overrides DOCPIPE_SERVER_ADDR)",
					},
				),
			},
			{
				Name:      "ingest",
				Usage:     "Ingest files and process them",
				ArgsUsage: "<file>...",
				Action:    ingestCommand,
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:  "title",
						Usage: "Title for the document (single file only)",
					},
					&cli.StringFlag{
						Name:  "url",
						Usage: "Ingest an external link instead of local files",
					},
					&cli.BoolFlag{
						Name:  "no-wait",
						Usage: "Return once documents are queued",
					},
				),
			},
			{
				Name:   "reprocess",
				Usage:  "Run stored documents through the pipeline again",
				Action: reprocessCommand,
				Flags: append(engineFlags(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to submit in each batch",
						Value: 50,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum enqueue attempts while the queue is saturated",
						Value: 5,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 500 * time.Millisecond,
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Ignore cached extracted text",
					},
					&cli.StringSliceFlag{
						Name:  "status",
						Usage: "Only reprocess documents in this status (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Continue after the last checkpoint",
					},
				),
			},
			{
				Name:   "jobs",
				Usage:  "List processing jobs",
				Action: jobsCommand,
				Flags: append(engineFlags(),
					&cli.BoolFlag{
						Name:  "failed",
						Usage: "List failed jobs",
					},
					&cli.BoolFlag{
						Name:  "active",
						Usage: "List jobs still running (default)",
					},
				),
			},
			{
				Name:   "reconcile",
				Usage:  "Re-check documents whose index entries are still processing",
				Action: reconcileCommand,
				Flags:  engineFlags(),
			},
			{
				Name:      "query",
				Usage:     "Find indexed chunks similar to a text",
				ArgsUsage: "<text>",
				Action:    queryCommand,
				Flags: append(engineFlags(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of matches",
						Value: 5,
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Minimum similarity score",
						Value: 0.5,
					},
				),
			},
		},
	}
}

// engineFlags are shared by every command that opens the store.
func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory (overrides DOCPIPE_STORAGE_PATH)",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Concurrent pipeline runs (overrides DOCPIPE_QUEUE_WORKERS)",
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
