package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100
)

// embeddingStage splits the document text into chunks and embeds them.
type embeddingStage struct {
	embedder ai.Embedder
	splitter textsplitter.TextSplitter
	logger   *slog.Logger
}

var _ stage = (*embeddingStage)(nil)

func newSplitter(size, overlap int) textsplitter.TextSplitter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)
}

func (s *embeddingStage) name() core.StageName {
	return core.StageNameEmbedding
}

func (s *embeddingStage) run(ctx context.Context, state *runState) error {
	chunks, err := s.split(state.text)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return ai.ErrEmptyDocument
	}

	s.logger.Debug("generating embeddings", "document_id", state.doc.ID, "chunks", len(chunks))
	vectors, err := s.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: expected %d, received %d", ai.ErrEmbeddingMismatch, len(chunks), len(vectors))
	}

	state.chunks = make([]core.IndexedChunk, len(chunks))
	for i := range chunks {
		state.chunks[i] = core.IndexedChunk{Text: chunks[i], Vector: vectors[i]}
	}
	state.setMeta(core.MetaChunkCount, len(chunks))
	return nil
}

// split chunks text and drops chunks that are only whitespace.
func (s *embeddingStage) split(text string) ([]string, error) {
	parts, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	chunks := parts[:0]
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			chunks = append(chunks, part)
		}
	}
	return chunks, nil
}
