// Package mock provides test doubles for the ai interfaces.
//
// Every mock records call counts with atomics, so it can be shared with
// the pipeline's worker goroutines. Behavior is injected through Func
// fields, which must be set before the mock is shared:
//
//	extractor := mock.NewMockTextExtractor()
//	extractor.ExtractTextFunc = func(ctx context.Context, data []byte) (*ai.Extraction, error) {
//	    return nil, errors.New("corrupt file")
//	}
//
// # Default Behavior
//
//   - MockEmbedder: deterministic unit vectors derived from the text hash
//   - MockTextExtractor: the bytes as UTF-8 text on one page
//   - MockMetadataExtractor: first line as title, first words as keywords
//   - MockIndexer: in-memory entries; DescribeSequence scripts polling
//   - MockProvider: aggregates the embedder and metadata extractor
package mock
