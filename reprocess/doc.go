// Package reprocess re-runs the pipeline over stored documents in bulk.
//
// Documents are walked in ID order in batches, optionally filtered by status.
// Each document is submitted to the work queue, with backoff while the queue
// reports saturation, and every batch is awaited before the next one starts.
// Progress is checkpointed after each batch so an interrupted run can resume.
package reprocess
