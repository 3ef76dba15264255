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


package ai

import (
	"errors"
	"strings"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// MetadataHost is the base URL for the metadata extraction LLM API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	MetadataHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// MetadataModel is the chat model identifier used for metadata extraction.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	MetadataModel string

	// MaxPromptChars caps how much extracted text is sent to the metadata model.
	// Default: 12000
	MaxPromptChars int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithMetadataHost sets the metadata LLM host URL.
func WithMetadataHost(host string) ConfigOption {
	return func(c *Config) {
		c.MetadataHost = host
	}
}

// WithHost sets both embedding and metadata hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.MetadataHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithMetadataModel sets the metadata LLM model identifier.
func WithMetadataModel(model string) ConfigOption {
	return func(c *Config) {
		c.MetadataModel = model
	}
}

// WithMaxPromptChars sets the cap on text sent to the metadata model.
func WithMaxPromptChars(n int) ConfigOption {
	return func(c *Config) {
		c.MaxPromptChars = n
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, both embedding and metadata extraction use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:  defaultHost,
		MetadataHost:   defaultHost,
		EmbeddingModel: "embeddinggemma",
		MetadataModel:  "qwen2.5:3b",
		MaxPromptChars: 12000,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
// This is the recommended way to create a Config with custom settings.
//
// Example:
//   cfg := NewConfig(
//       WithHost("http://localhost:11434/v1"),
//       WithEmbeddingModel("text-embedding-3-small"),
//   )
//
// Example with different hosts:
//   cfg := NewConfig(
//       WithEmbeddingHost("http://localhost:11434/v1"),
//       WithMetadataHost("http://localhost:9100/v1"),
//   )
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It automatically adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.MetadataHost = normalizeHost(c.MetadataHost)
}

func normalizeHost(host string) string {
	host = strings.TrimSuffix(host, "/")
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return host + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	// Normalize first to ensure hosts are in correct format
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.MetadataHost == "" {
		return errors.New("ai config: MetadataHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.MetadataModel == "" {
		return errors.New("ai config: MetadataModel is required")
	}
	if c.MaxPromptChars < 1 {
		return errors.New("ai config: MaxPromptChars must be positive")
	}
	return nil
}
