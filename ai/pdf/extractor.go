// Package pdf implements ai.TextExtractor for PDF and plain text documents
// using github.com/ledongthuc/pdf.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/poiesic/docpipe/ai"
)

var pdfMagic = []byte("%PDF-")

// Extractor reads text out of PDF and UTF-8 text documents.
type Extractor struct {
	logger *slog.Logger
}

var _ ai.TextExtractor = (*Extractor)(nil)

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{
		logger: slog.Default().With("component", "pdf-extractor"),
	}
}

// ExtractText detects the document format and returns its text.
func (e *Extractor) ExtractText(ctx context.Context, data []byte) (*ai.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		result *ai.Extraction
		err    error
	)
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		result, err = e.extractPDF(data)
	case isText(data):
		result = &ai.Extraction{Text: string(data), PageCount: 1}
	default:
		return nil, fmt.Errorf("%w: %s", ai.ErrUnsupportedFormat, http.DetectContentType(data))
	}
	if err != nil {
		return nil, err
	}

	result.Text = strings.TrimSpace(result.Text)
	if result.Text == "" {
		return nil, ai.ErrEmptyDocument
	}
	e.logger.Debug("extracted text", "pages", result.PageCount, "length", len(result.Text))
	return result, nil
}

// extractPDF parses data with ledongthuc/pdf. The parser panics on some
// malformed input, so panics are converted to errors.
func (e *Extractor) extractPDF(data []byte) (result *ai.Extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}
	return &ai.Extraction{Text: buf.String(), PageCount: reader.NumPage()}, nil
}

// isText reports whether data looks like UTF-8 text.
func isText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	if !utf8.Valid(data) {
		return false
	}
	return strings.HasPrefix(http.DetectContentType(data), "text/")
}
