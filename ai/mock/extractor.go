package mock

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
)

// MockTextExtractor is a test double for ai.TextExtractor.
type MockTextExtractor struct {
	// ExtractTextFunc is called by ExtractText if set.
	// If nil, the bytes are returned as text on a single page.
	ExtractTextFunc func(ctx context.Context, data []byte) (*ai.Extraction, error)

	callCount atomic.Int64
}

// NewMockTextExtractor creates a mock text extractor with default behavior.
func NewMockTextExtractor() *MockTextExtractor {
	return &MockTextExtractor{}
}

// ExtractText treats data as UTF-8 text by default.
func (m *MockTextExtractor) ExtractText(ctx context.Context, data []byte) (*ai.Extraction, error) {
	m.callCount.Add(1)

	if m.ExtractTextFunc != nil {
		return m.ExtractTextFunc(ctx, data)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, ai.ErrEmptyDocument
	}
	return &ai.Extraction{Text: text, PageCount: 1}, nil
}

// CallCount returns the number of times ExtractText was called.
func (m *MockTextExtractor) CallCount() int {
	return int(m.callCount.Load())
}

// MockMetadataExtractor is a test double for ai.MetadataExtractor.
type MockMetadataExtractor struct {
	// ExtractMetadataFunc is called by ExtractMetadata if set.
	ExtractMetadataFunc func(ctx context.Context, text string, hints ai.MetadataHints) (*core.DocumentMetadata, error)

	callCount atomic.Int64
}

// NewMockMetadataExtractor creates a mock metadata extractor with default behavior.
func NewMockMetadataExtractor() *MockMetadataExtractor {
	return &MockMetadataExtractor{}
}

// ExtractMetadata returns the first line as title and the first few words as keywords.
func (m *MockMetadataExtractor) ExtractMetadata(ctx context.Context, text string, hints ai.MetadataHints) (*core.DocumentMetadata, error) {
	m.callCount.Add(1)

	if m.ExtractMetadataFunc != nil {
		return m.ExtractMetadataFunc(ctx, text, hints)
	}

	title, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	words := strings.Fields(strings.ToLower(text))
	var keywords []string
	for _, word := range words {
		if len(keywords) == 3 {
			break
		}
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if word != "" {
			keywords = append(keywords, word)
		}
	}
	return &core.DocumentMetadata{
		Title:        title,
		Keywords:     keywords,
		DocumentType: "other",
	}, nil
}

// CallCount returns the number of times ExtractMetadata was called.
func (m *MockMetadataExtractor) CallCount() int {
	return int(m.callCount.Load())
}
