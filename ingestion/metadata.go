package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// metadataStage asks the model for descriptive fields. Its failures are
// recorded on the job but never fail the document.
type metadataStage struct {
	documents storage.DocumentRepository
	extractor ai.MetadataExtractor
	logger    *slog.Logger
}

var _ stage = (*metadataStage)(nil)

func (s *metadataStage) name() core.StageName {
	return core.StageNameMetadata
}

func (s *metadataStage) run(ctx context.Context, state *runState) error {
	hints := ai.MetadataHints{Filename: state.doc.Filename, Title: state.doc.Title}

	metadata, extractErr := s.extractor.ExtractMetadata(ctx, state.text, hints)
	if extractErr != nil {
		s.logger.Warn("metadata extraction failed, continuing", "document_id", state.doc.ID, "err", extractErr)
		state.metadataError = extractErr.Error()
		state.setMeta(core.MetaMetadataError, extractErr.Error())
	}

	doc, err := s.documents.PatchDocument(ctx, state.doc.ID, func(doc *core.Document) error {
		if metadata != nil {
			doc.Metadata = *metadata
			if doc.Title == "" && metadata.Title != "" {
				doc.Title = metadata.Title
			}
		}
		if doc.Title == "" {
			doc.Title = titleFromFilename(doc.Filename)
		}
		return nil
	})
	if err != nil {
		return interrupted(fmt.Errorf("record metadata: %w", err))
	}
	state.doc = doc
	return extractErr
}

// titleFromFilename derives a readable title: "annual_report-2023.pdf" -> "annual report 2023".
func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}
