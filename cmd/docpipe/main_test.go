package main

import (
	"bytes"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func findFlag[F cli.Flag](t *testing.T, cmd *cli.Command, name string) F {
	t.Helper()
	for _, fl := range cmd.Flags {
		if f, ok := fl.(F); ok && fl.Names()[0] == name {
			return f
		}
	}
	t.Fatalf("flag %q not found on %s", name, cmd.Name)
	var zero F
	return zero
}

func TestReprocessCommandFlags(t *testing.T) {
	cmd := findCommand(t, newApp(), "reprocess")

	t.Run("batch-size has default value of 50", func(t *testing.T) {
		assert.Equal(t, 50, findFlag[*cli.IntFlag](t, cmd, "batch-size").Value)
	})

	t.Run("report-interval has default value of 10", func(t *testing.T) {
		assert.Equal(t, 10, findFlag[*cli.IntFlag](t, cmd, "report-interval").Value)
	})

	t.Run("max-retries has default value of 5", func(t *testing.T) {
		assert.Equal(t, 5, findFlag[*cli.IntFlag](t, cmd, "max-retries").Value)
	})

	t.Run("retry-delay has default value", func(t *testing.T) {
		assert.Equal(t, 500*time.Millisecond, findFlag[*cli.DurationFlag](t, cmd, "retry-delay").Value)
	})

	t.Run("db has no default and no EnvVars", func(t *testing.T) {
		db := findFlag[*cli.StringFlag](t, cmd, "db")
		assert.Empty(t, db.Value)
		assert.Empty(t, db.EnvVars)
		assert.Contains(t, db.Aliases, "d")
	})
}

func TestCommandsShareEngineFlags(t *testing.T) {
	app := newApp()
	for _, name := range []string{"serve", "ingest", "reprocess", "jobs", "reconcile", "query"} {
		cmd := findCommand(t, app, name)
		findFlag[*cli.StringFlag](t, cmd, "db")
		findFlag[*cli.IntFlag](t, cmd, "workers")
	}
}

func TestParseDocumentStatus(t *testing.T) {
	status, err := parseDocumentStatus("failed")
	require.NoError(t, err)
	assert.EqualValues(t, "failed", status)

	_, err = parseDocumentStatus("archived")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archived")
}

func TestCommandValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"ingest without files", []string{"docpipe", "ingest"}, "at least one file"},
		{"title with several files", []string{"docpipe", "ingest", "--title", "x", "a.pdf", "b.pdf"}, "single file"},
		{"reprocess with bad status", []string{"docpipe", "reprocess", "--status", "archived"}, "invalid status"},
		{"jobs with both filters", []string{"docpipe", "jobs", "--failed", "--active"}, "mutually exclusive"},
		{"query without text", []string{"docpipe", "query"}, "query text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp()
			app.Writer = &bytes.Buffer{}
			err := app.Run(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestIngestCommand(t *testing.T) {
	t.Setenv("DOCPIPE_PIPELINE_PROCESSING_ENABLED", "false")
	dir := t.TempDir()
	db := filepath.Join(dir, "db")
	file := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF-1.4 quarterly numbers"), 0o600))

	run := func() string {
		app := newApp()
		out := &bytes.Buffer{}
		app.Writer = out
		require.NoError(t, app.Run([]string{"docpipe", "ingest", "--db", db, file}))
		return out.String()
	}

	assert.Contains(t, run(), "report.pdf: document 1 pending")
	assert.Contains(t, run(), "report.pdf: duplicate of document 1")
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel slog.Level
		wantErr   bool
	}{
		{"debug level", "debug", slog.LevelDebug, false},
		{"info level", "info", slog.LevelInfo, false},
		{"warn level", "warn", slog.LevelWarn, false},
		{"error level", "error", slog.LevelError, false},
		{"uppercase level", "DEBUG", slog.LevelDebug, false},
		{"mixed case level", "WaRn", slog.LevelWarn, false},
		{"invalid level", "invalid", slog.LevelInfo, true},
		{"empty level", "", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := flag.NewFlagSet("test", flag.ContinueOnError)
			set.String("log-level", tt.level, "")
			c := cli.NewContext(newApp(), set, nil)

			err := setupLogger(c)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid log level")
				return
			}
			require.NoError(t, err)
			assert.True(t, slog.Default().Enabled(c.Context, tt.wantLevel))
			if tt.wantLevel > slog.LevelDebug {
				assert.False(t, slog.Default().Enabled(c.Context, tt.wantLevel-4))
			}
		})
	}
}
