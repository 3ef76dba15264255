// Package ingestion runs documents through the processing pipeline.
//
// The Orchestrator drives one document through its stages in a fixed order:
//   - Extraction: fetch bytes from the blob store and pull out text
//   - Metadata: ask the language model for descriptive fields (non-fatal)
//   - Embedding: split text into chunks and embed each chunk
//   - Indexing: replace the document's index entry and wait for it to settle
//
// Every run is recorded as a ProcessingJob. Fatal stage failures mark both the
// job and the document failed with the stage's error text; infrastructure
// errors are returned without touching either.
//
// The Reconciler re-checks documents whose index entry was still processing
// when their run finished.
package ingestion
