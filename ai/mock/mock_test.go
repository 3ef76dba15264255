package mock

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicVector(t *testing.T) {
	a := DeterministicVector("hello", 16)
	b := DeterministicVector("hello", 16)
	c := DeterministicVector("world", 16)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4)
}

func TestMockEmbedder_ConcurrentCalls(t *testing.T) {
	m := NewMockEmbedder()
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.EmbedTexts(context.Background(), []string{"a", "b"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, m.CallCount())
}

func TestMockIndexer_DescribeSequence(t *testing.T) {
	m := NewMockIndexer()
	m.InitialStatus = core.IndexProcessing
	m.DescribeSequence = []ai.IndexStatus{
		{Status: core.IndexProcessing},
		{Status: core.IndexAvailable},
	}
	ctx := context.Background()

	st, err := m.Upload(ctx, ai.IndexContent{DocumentID: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, core.IndexProcessing, st.Status)

	first, err := m.Describe(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, core.IndexProcessing, first.Status)

	second, err := m.Describe(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, core.IndexAvailable, second.Status)

	third, err := m.Describe(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, core.IndexAvailable, third.Status)
}

func TestMockIndexer_NotFound(t *testing.T) {
	m := NewMockIndexer()

	_, err := m.Describe(context.Background(), "nope")
	assert.ErrorIs(t, err, ai.ErrIndexEntryNotFound)
	assert.ErrorIs(t, m.Delete(context.Background(), "nope"), ai.ErrIndexEntryNotFound)
}

func TestMockMetadataExtractor_Default(t *testing.T) {
	m := NewMockMetadataExtractor()

	meta, err := m.ExtractMetadata(context.Background(), "Annual Report\nAcme grew, strongly.", ai.MetadataHints{})
	require.NoError(t, err)
	assert.Equal(t, "Annual Report", meta.Title)
	assert.Equal(t, []string{"annual", "report", "acme"}, meta.Keywords)
}
