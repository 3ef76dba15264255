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


package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	metadataSchemaURL   = "metadata.json"
	maxMetadataAttempts = 3
)

// chatModel is the part of llms.Model the extractor needs.
type chatModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// MetadataExtractor implements ai.MetadataExtractor using OpenAI-compatible chat APIs.
type MetadataExtractor struct {
	client       chatModel
	schema       *jsonschema.Schema
	systemPrompt string
	maxChars     int
	logger       *slog.Logger
}

// metadataResponse matches the structure expected from the LLM.
type metadataResponse struct {
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	Year         *int     `json:"year"`
	Summary      string   `json:"summary"`
	Keywords     []string `json:"keywords"`
	DocumentType string   `json:"document_type"`
}

var knownResponseFields = []string{"title", "company", "year", "summary", "keywords", "document_type"}

// newMetadataExtractor is an internal constructor that returns the concrete type.
func newMetadataExtractor(config *ai.Config) (*MetadataExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.MetadataHost),
		openai.WithToken("none"),
		openai.WithModel(config.MetadataModel),
	)
	if err != nil {
		return nil, err
	}
	return newMetadataExtractorWithModel(client, config.MaxPromptChars)
}

func newMetadataExtractorWithModel(client chatModel, maxChars int) (*MetadataExtractor, error) {
	schemaText := buildMetadataSchema()
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(metadataSchemaURL, strings.NewReader(schemaText)); err != nil {
		return nil, fmt.Errorf("add metadata schema: %w", err)
	}
	schema, err := compiler.Compile(metadataSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile metadata schema: %w", err)
	}

	return &MetadataExtractor{
		client:       client,
		schema:       schema,
		systemPrompt: buildSystemPrompt(schemaText),
		maxChars:     maxChars,
		logger:       slog.Default().With("component", "openai-metadata"),
	}, nil
}

// NewMetadataExtractor creates a metadata extractor using the provided configuration.
func NewMetadataExtractor(config *ai.Config) (ai.MetadataExtractor, error) {
	return newMetadataExtractor(config)
}

// ExtractMetadata asks the model to describe text. Malformed or
// schema-violating responses are retried before giving up.
func (e *MetadataExtractor) ExtractMetadata(ctx context.Context, text string, hints ai.MetadataHints) (*core.DocumentMetadata, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ai.ErrEmptyDocument
	}
	text = truncateText(text, e.maxChars)

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, e.systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, buildUserPrompt(text, hints)),
	}

	var lastErr error
	for attempt := 1; attempt <= maxMetadataAttempts; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt, "err", err)
			return nil, err
		}
		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return &core.DocumentMetadata{}, nil
		}

		responseText := repairJSON(stripCodeFence(response.Choices[0].Content))
		metadata, err := e.decode([]byte(responseText))
		if err != nil {
			lastErr = err
			e.logger.Warn("error parsing metadata response",
				"attempt", attempt,
				"response", responseText,
				"err", err)
			continue
		}

		e.logger.Debug("extracted metadata", "title", metadata.Title, "type", metadata.DocumentType)
		return metadata, nil
	}

	e.logger.Error("failed to parse metadata response after retries", "err", lastErr)
	return nil, fmt.Errorf("%w: %w", ai.ErrInvalidMetadata, lastErr)
}

// decode validates raw against the schema and converts it to core metadata.
func (e *MetadataExtractor) decode(raw []byte) (*core.DocumentMetadata, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	if err := e.schema.Validate(generic); err != nil {
		return nil, err
	}

	var resp metadataResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}

	metadata := &core.DocumentMetadata{
		Title:        strings.TrimSpace(resp.Title),
		Company:      strings.TrimSpace(resp.Company),
		Summary:      strings.TrimSpace(resp.Summary),
		DocumentType: resp.DocumentType,
		Keywords:     normalizeKeywords(resp.Keywords),
	}
	if resp.Year != nil {
		metadata.Year = *resp.Year
	}

	// Scalar fields outside the schema are kept rather than dropped
	if fields, ok := generic.(map[string]any); ok {
		for key, value := range fields {
			if slices.Contains(knownResponseFields, key) {
				continue
			}
			switch v := value.(type) {
			case string, float64, bool:
				if metadata.Extra == nil {
					metadata.Extra = make(map[string]string)
				}
				metadata.Extra[key] = fmt.Sprint(v)
			}
		}
	}
	return metadata, nil
}

// normalizeKeywords lowercases, trims and de-duplicates keywords, keeping order.
func normalizeKeywords(keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}
	result := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || slices.Contains(result, k) {
			continue
		}
		result = append(result, k)
	}
	return result
}
