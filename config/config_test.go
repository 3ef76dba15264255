package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Queue.Workers)
	assert.Equal(t, 100, cfg.Queue.MaxPending)
	assert.Equal(t, 2*time.Second, cfg.Poller.Interval)
	assert.Equal(t, 60*time.Second, cfg.Poller.MaxWait)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5.0, cfg.Rate.RPS)
	assert.Equal(t, 5, cfg.Rate.Burst)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
	assert.True(t, cfg.Pipeline.ProcessingEnabled)
	assert.Zero(t, cfg.Pipeline.StaleAfter)
	assert.Empty(t, cfg.Blob.Endpoint)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DOCPIPE_QUEUE_WORKERS", "8")
	t.Setenv("DOCPIPE_POLLER_MAX_WAIT", "90s")
	t.Setenv("DOCPIPE_PIPELINE_PROCESSING_ENABLED", "false")
	t.Setenv("DOCPIPE_AI_EMBEDDING_MODEL", "nomic-embed-text")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Queue.Workers)
	assert.Equal(t, 90*time.Second, cfg.Poller.MaxWait)
	assert.False(t, cfg.Pipeline.ProcessingEnabled)
	assert.Equal(t, "nomic-embed-text", cfg.AIConfig().EmbeddingModel)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DOCPIPE_SERVER_ADDR=:9999\nDOCPIPE_BLOB_BUCKET=filings\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("DOCPIPE_SERVER_ADDR")
		os.Unsetenv("DOCPIPE_BLOB_BUCKET")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "filings", cfg.Blob.Bucket)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("DOCPIPE_QUEUE_WORKERS", "0")
	t.Setenv("DOCPIPE_CHUNKING_OVERLAP", "5000")

	_, err := Load(missingEnvFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue workers")
	assert.Contains(t, err.Error(), "chunk overlap")
}
