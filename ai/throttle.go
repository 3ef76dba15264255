package ai

import (
	"context"

	"github.com/poiesic/docpipe/core"
	"golang.org/x/time/rate"
)

// ThrottledEmbedder waits on a shared limiter before each call.
type ThrottledEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// ThrottleEmbedder wraps e so calls are admitted at limiter's rate.
func ThrottleEmbedder(e Embedder, limiter *rate.Limiter) *ThrottledEmbedder {
	return &ThrottledEmbedder{next: e, limiter: limiter}
}

func (t *ThrottledEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.EmbedText(ctx, text)
}

func (t *ThrottledEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.EmbedTexts(ctx, texts)
}

// ThrottledMetadataExtractor waits on a shared limiter before each call.
type ThrottledMetadataExtractor struct {
	next    MetadataExtractor
	limiter *rate.Limiter
}

// ThrottleMetadataExtractor wraps m so calls are admitted at limiter's rate.
func ThrottleMetadataExtractor(m MetadataExtractor, limiter *rate.Limiter) *ThrottledMetadataExtractor {
	return &ThrottledMetadataExtractor{next: m, limiter: limiter}
}

func (t *ThrottledMetadataExtractor) ExtractMetadata(ctx context.Context, text string, hints MetadataHints) (*core.DocumentMetadata, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.ExtractMetadata(ctx, text, hints)
}

// ThrottledIndexer waits on a shared limiter before each call.
type ThrottledIndexer struct {
	next    Indexer
	limiter *rate.Limiter
}

// ThrottleIndexer wraps i so calls are admitted at limiter's rate.
func ThrottleIndexer(i Indexer, limiter *rate.Limiter) *ThrottledIndexer {
	return &ThrottledIndexer{next: i, limiter: limiter}
}

func (t *ThrottledIndexer) Upload(ctx context.Context, content IndexContent, metadata map[string]string) (*IndexStatus, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.Upload(ctx, content, metadata)
}

func (t *ThrottledIndexer) Describe(ctx context.Context, id string) (*IndexStatus, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.Describe(ctx, id)
}

func (t *ThrottledIndexer) Delete(ctx context.Context, id string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.next.Delete(ctx, id)
}

var (
	_ Embedder          = (*ThrottledEmbedder)(nil)
	_ MetadataExtractor = (*ThrottledMetadataExtractor)(nil)
	_ Indexer           = (*ThrottledIndexer)(nil)
)
