package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/blob"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// maxLinkedDocumentBytes caps downloads of externally linked documents.
const maxLinkedDocumentBytes = 64 << 20

// extractionStage turns the document's stored bytes into text.
type extractionStage struct {
	documents  storage.DocumentRepository
	blobs      blob.Store
	extractor  ai.TextExtractor
	httpClient *http.Client
	logger     *slog.Logger
}

var _ stage = (*extractionStage)(nil)

func (s *extractionStage) name() core.StageName {
	return core.StageNameExtraction
}

func (s *extractionStage) run(ctx context.Context, state *runState) error {
	if state.cachedFound && !state.config.Force {
		s.logger.Debug("using cached text", "document_id", state.doc.ID, "chars", len(state.cachedText))
		state.text = state.cachedText
		state.pageCount = state.doc.PageCount
		state.cacheHit = true
		state.setMeta(core.MetaCacheHit, true)
		state.setMeta(core.MetaTextLength, len(state.text))
		return nil
	}

	data, err := s.fetch(ctx, state.doc)
	if err != nil {
		return err
	}

	extraction, err := s.extractor.ExtractText(ctx, data)
	if err != nil {
		return err
	}

	state.text = extraction.Text
	state.pageCount = extraction.PageCount
	state.setMeta(core.MetaCacheHit, false)
	state.setMeta(core.MetaPageCount, extraction.PageCount)
	state.setMeta(core.MetaTextLength, len(extraction.Text))

	if err := s.documents.SaveExtractedText(ctx, state.doc.ID, extraction.Text); err != nil {
		return interrupted(fmt.Errorf("cache extracted text: %w", err))
	}
	doc, err := s.documents.PatchDocument(ctx, state.doc.ID, func(doc *core.Document) error {
		doc.PageCount = extraction.PageCount
		return nil
	})
	if err != nil {
		return interrupted(fmt.Errorf("record page count: %w", err))
	}
	state.doc = doc
	return nil
}

// fetch retrieves raw bytes from the blob store or, for external links
// without stored bytes, from the source URL.
func (s *extractionStage) fetch(ctx context.Context, doc *core.Document) ([]byte, error) {
	if doc.StorageID != "" {
		data, err := s.blobs.Fetch(ctx, doc.StorageID)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", doc.StorageID, err)
		}
		return data, nil
	}
	if doc.SourceURL == "" {
		return nil, ErrNoContent
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.SourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", doc.SourceURL, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", doc.SourceURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: unexpected status %s", doc.SourceURL, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLinkedDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", doc.SourceURL, err)
	}
	if len(data) > maxLinkedDocumentBytes {
		return nil, fmt.Errorf("download %s: document exceeds %d bytes", doc.SourceURL, maxLinkedDocumentBytes)
	}
	return data, nil
}
