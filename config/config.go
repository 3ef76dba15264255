// Package config loads daemon and CLI settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/docpipe/ai"
	"github.com/spf13/viper"
)

const envPrefix = "DOCPIPE"

// Config holds application configuration
type Config struct {
	Storage  StorageConfig
	Queue    QueueConfig
	Poller   PollerConfig
	Server   ServerConfig
	Rate     RateConfig
	Chunking ChunkingConfig
	Pipeline PipelineConfig
	AI       AIConfig
	Blob     BlobConfig
}

type StorageConfig struct {
	Path string
}

type QueueConfig struct {
	Workers    int
	MaxPending int
}

type PollerConfig struct {
	Interval time.Duration
	MaxWait  time.Duration
}

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type RateConfig struct {
	RPS   float64
	Burst int
}

type ChunkingConfig struct {
	Size    int
	Overlap int
}

type PipelineConfig struct {
	ProcessingEnabled bool
	StaleAfter        time.Duration
}

type AIConfig struct {
	EmbeddingHost  string
	MetadataHost   string
	EmbeddingModel string
	MetadataModel  string
}

// BlobConfig selects the blob store. An empty Endpoint selects the in-memory store.
type BlobConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLExpiry time.Duration
}

// Load reads configuration from the given .env files (".env" when none are
// named) and from DOCPIPE_* environment variables. Missing .env files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Storage: StorageConfig{
			Path: v.GetString("storage.path"),
		},
		Queue: QueueConfig{
			Workers:    v.GetInt("queue.workers"),
			MaxPending: v.GetInt("queue.max_pending"),
		},
		Poller: PollerConfig{
			Interval: v.GetDuration("poller.interval"),
			MaxWait:  v.GetDuration("poller.max_wait"),
		},
		Server: ServerConfig{
			Addr:         v.GetString("server.addr"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Rate: RateConfig{
			RPS:   v.GetFloat64("rate.rps"),
			Burst: v.GetInt("rate.burst"),
		},
		Chunking: ChunkingConfig{
			Size:    v.GetInt("chunking.size"),
			Overlap: v.GetInt("chunking.overlap"),
		},
		Pipeline: PipelineConfig{
			ProcessingEnabled: v.GetBool("pipeline.processing_enabled"),
			StaleAfter:        v.GetDuration("pipeline.stale_after"),
		},
		AI: AIConfig{
			EmbeddingHost:  v.GetString("ai.embedding_host"),
			MetadataHost:   v.GetString("ai.metadata_host"),
			EmbeddingModel: v.GetString("ai.embedding_model"),
			MetadataModel:  v.GetString("ai.metadata_model"),
		},
		Blob: BlobConfig{
			Endpoint:  v.GetString("blob.endpoint"),
			AccessKey: v.GetString("blob.access_key"),
			SecretKey: v.GetString("blob.secret_key"),
			Bucket:    v.GetString("blob.bucket"),
			UseSSL:    v.GetBool("blob.use_ssl"),
			URLExpiry: v.GetDuration("blob.url_expiry"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := ai.DefaultConfig()

	v.SetDefault("storage.path", "./docpipe-data")
	v.SetDefault("queue.workers", 3)
	v.SetDefault("queue.max_pending", 100)
	v.SetDefault("poller.interval", 2*time.Second)
	v.SetDefault("poller.max_wait", 60*time.Second)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("rate.rps", 5.0)
	v.SetDefault("rate.burst", 5)
	v.SetDefault("chunking.size", 1000)
	v.SetDefault("chunking.overlap", 100)
	v.SetDefault("pipeline.processing_enabled", true)
	v.SetDefault("pipeline.stale_after", time.Duration(0))
	v.SetDefault("ai.embedding_host", defaults.EmbeddingHost)
	v.SetDefault("ai.metadata_host", defaults.MetadataHost)
	v.SetDefault("ai.embedding_model", defaults.EmbeddingModel)
	v.SetDefault("ai.metadata_model", defaults.MetadataModel)
	v.SetDefault("blob.endpoint", "")
	v.SetDefault("blob.access_key", "")
	v.SetDefault("blob.secret_key", "")
	v.SetDefault("blob.bucket", "docpipe")
	v.SetDefault("blob.use_ssl", false)
	v.SetDefault("blob.url_expiry", 15*time.Minute)
}

// Validate checks the loaded values for consistency.
func (c *Config) Validate() error {
	var errs []error
	if c.Queue.Workers < 1 {
		errs = append(errs, fmt.Errorf("queue workers must be at least 1, got %d", c.Queue.Workers))
	}
	if c.Queue.MaxPending < 1 {
		errs = append(errs, fmt.Errorf("queue max pending must be at least 1, got %d", c.Queue.MaxPending))
	}
	if c.Poller.Interval <= 0 || c.Poller.MaxWait <= 0 {
		errs = append(errs, errors.New("poller interval and max wait must be positive"))
	}
	if c.Rate.RPS <= 0 || c.Rate.Burst < 1 {
		errs = append(errs, errors.New("rate rps must be positive and burst at least 1"))
	}
	if c.Chunking.Size < 1 || c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, fmt.Errorf("chunk overlap %d must be within chunk size %d", c.Chunking.Overlap, c.Chunking.Size))
	}
	if c.Pipeline.StaleAfter < 0 {
		errs = append(errs, errors.New("stale after cannot be negative"))
	}
	return errors.Join(errs...)
}

// AIConfig builds the model client configuration.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithMetadataHost(c.AI.MetadataHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithMetadataModel(c.AI.MetadataModel),
	)
}
