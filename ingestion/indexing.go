package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/poller"
	"github.com/poiesic/docpipe/storage"
)

// indexingStage replaces the document's index entry and waits for it to settle.
type indexingStage struct {
	documents storage.DocumentRepository
	indexer   ai.Indexer
	poller    *poller.Poller
	logger    *slog.Logger
}

var _ stage = (*indexingStage)(nil)

func (s *indexingStage) name() core.StageName {
	return core.StageNameIndexing
}

func (s *indexingStage) run(ctx context.Context, state *runState) error {
	// Drop the previous entry first so a document is never indexed twice
	if previous := state.doc.IndexID; previous != "" {
		if err := s.indexer.Delete(ctx, previous); err != nil && !errors.Is(err, ai.ErrIndexEntryNotFound) {
			return fmt.Errorf("delete previous index entry %s: %w", previous, err)
		}
		doc, err := s.documents.PatchDocument(ctx, state.doc.ID, func(doc *core.Document) error {
			doc.IndexID = ""
			doc.IndexStatus = core.IndexNone
			return nil
		})
		if err != nil {
			return interrupted(fmt.Errorf("clear previous index entry: %w", err))
		}
		state.doc = doc
		s.logger.Debug("removed previous index entry", "document_id", state.doc.ID, "index_id", previous)
	}

	content := ai.IndexContent{DocumentID: state.doc.ID, Chunks: state.chunks}
	status, err := s.indexer.Upload(ctx, content, indexMetadata(state.doc))
	if err != nil {
		return err
	}

	doc, err := s.documents.PatchDocument(ctx, state.doc.ID, func(doc *core.Document) error {
		doc.IndexID = status.ID
		doc.IndexStatus = core.IndexProcessing
		doc.IndexRequestedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return interrupted(fmt.Errorf("record index entry %s: %w", status.ID, err))
	}
	state.doc = doc
	state.indexID = status.ID
	state.setMeta(core.MetaIndexID, status.ID)

	result := poller.Result{Outcome: poller.OutcomeProcessing}
	switch status.Status {
	case core.IndexAvailable:
		result.Outcome = poller.OutcomeAvailable
	case core.IndexFailed:
		result.Outcome = poller.OutcomeFailed
		result.ErrorMessage = status.ErrorMessage
	default:
		result, err = s.poller.Wait(ctx, status.ID)
		if err != nil {
			return interrupted(fmt.Errorf("wait for index entry %s: %w", status.ID, err))
		}
	}
	state.pollAttempts = result.Attempts
	state.setMeta(core.MetaPollAttempts, result.Attempts)

	switch result.Outcome {
	case poller.OutcomeAvailable:
		state.indexStatus = core.IndexAvailable
	case poller.OutcomeFailed:
		state.indexStatus = core.IndexFailed
	default:
		state.indexStatus = core.IndexProcessing
	}
	state.setMeta(core.MetaIndexStatus, state.indexStatus)

	doc, err = s.documents.PatchDocument(ctx, state.doc.ID, func(doc *core.Document) error {
		doc.IndexStatus = state.indexStatus
		return nil
	})
	if err != nil {
		return interrupted(fmt.Errorf("record index status: %w", err))
	}
	state.doc = doc

	if result.Outcome == poller.OutcomeFailed {
		message := result.ErrorMessage
		if message == "" {
			message = "index backend reported failure"
		}
		return errors.New(message)
	}
	return nil
}

// indexMetadata is the flat attribute set stored alongside the index entry.
func indexMetadata(doc *core.Document) map[string]string {
	m := map[string]string{
		"document_id": strconv.FormatUint(uint64(doc.ID), 10),
		"filename":    doc.Filename,
		"title":       doc.Title,
		"source":      string(doc.Source),
	}
	if doc.Metadata.Company != "" {
		m["company"] = doc.Metadata.Company
	}
	if doc.Metadata.Year != 0 {
		m["year"] = strconv.Itoa(doc.Metadata.Year)
	}
	if doc.Metadata.DocumentType != "" {
		m["document_type"] = doc.Metadata.DocumentType
	}
	if len(doc.Metadata.Keywords) > 0 {
		m["keywords"] = strings.Join(doc.Metadata.Keywords, ",")
	}
	return m
}
