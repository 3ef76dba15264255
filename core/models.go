package core

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// ID is a unique identifier for domain entities.
// It is generated from database sequences.
type ID uint64

// DocumentStatus is the processing state of a document.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentFailed     DocumentStatus = "failed"
)

// IsTerminal reports whether no further automatic transition occurs from s.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentCompleted || s == DocumentFailed
}

// Source identifies how a document entered the system.
type Source string

const (
	SourceUpload       Source = "upload"
	SourceExternalLink Source = "external-link"
	SourceImported     Source = "imported"
)

// IndexStatus tracks availability of a document in the downstream index.
type IndexStatus string

const (
	IndexNone       IndexStatus = ""
	IndexProcessing IndexStatus = "processing"
	IndexAvailable  IndexStatus = "available"
	IndexFailed     IndexStatus = "failed"
)

// DocumentMetadata holds fields extracted from document text.
// Every field is optional.
type DocumentMetadata struct {
	Title        string            `json:"title,omitempty"`
	Company      string            `json:"company,omitempty"`
	Year         int               `json:"year,omitempty"`
	Summary      string            `json:"summary,omitempty"`
	Keywords     []string          `json:"keywords,omitempty"`
	DocumentType string            `json:"document_type,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Document is the durable record of an ingested document and the single
// source of truth for its pipeline state.
type Document struct {
	ID               ID               `json:"id"`
	Title            string           `json:"title"`
	Filename         string           `json:"filename"`
	StorageID        string           `json:"storage_id,omitempty"`
	SourceURL        string           `json:"source_url,omitempty"`
	ContentHash      string           `json:"content_hash,omitempty"` // empty when no local bytes exist
	Source           Source           `json:"source"`
	Status           DocumentStatus   `json:"status"`
	ProcessingError  string           `json:"processing_error,omitempty"`
	Metadata         DocumentMetadata `json:"metadata"`
	Approved         bool             `json:"approved"`
	PageCount        int              `json:"page_count,omitempty"`
	IndexID          string           `json:"index_id,omitempty"`
	IndexStatus      IndexStatus      `json:"index_status,omitempty"`
	IndexRequestedAt time.Time        `json:"index_requested_at,omitzero"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	ProcessedAt      time.Time        `json:"processed_at,omitzero"`
}

// JobStage is the pipeline stage a processing job has reached.
type JobStage string

const (
	StageExtracting JobStage = "extracting"
	StageEmbedding  JobStage = "embedding"
	StageStoring    JobStage = "storing"
	StageCompleted  JobStage = "completed"
	StageFailed     JobStage = "failed"
)

// IsTerminal reports whether the stage ends a job.
func (s JobStage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// order returns the position of a non-failed stage in the pipeline.
func (s JobStage) order() int {
	switch s {
	case StageExtracting:
		return 1
	case StageEmbedding:
		return 2
	case StageStoring:
		return 3
	case StageCompleted:
		return 4
	}
	return 0
}

// MetadataKey names a known entry in a job's metadata bag.
type MetadataKey string

const (
	MetaPageCount     MetadataKey = "page_count"
	MetaTextLength    MetadataKey = "text_length"
	MetaCacheHit      MetadataKey = "cache_hit"
	MetaChunkCount    MetadataKey = "chunk_count"
	MetaIndexID       MetadataKey = "index_id"
	MetaIndexStatus   MetadataKey = "index_status"
	MetaMetadataError MetadataKey = "metadata_error"
	MetaFailedStage   MetadataKey = "failed_stage"
	MetaPollAttempts  MetadataKey = "poll_attempts"
	MetaHandle        MetadataKey = "handle"
)

var knownMetadataKeys = map[MetadataKey]struct{}{
	MetaPageCount:     {},
	MetaTextLength:    {},
	MetaCacheHit:      {},
	MetaChunkCount:    {},
	MetaIndexID:       {},
	MetaIndexStatus:   {},
	MetaMetadataError: {},
	MetaFailedStage:   {},
	MetaPollAttempts:  {},
	MetaHandle:        {},
}

// IsKnown reports whether k belongs to the closed set of metadata keys.
func (k MetadataKey) IsKnown() bool {
	_, ok := knownMetadataKeys[k]
	return ok
}

// JobMetadata is the stage diagnostics bag attached to a processing job.
// Fields only accepts known keys; Diagnostics carries opaque payloads.
type JobMetadata struct {
	Fields      map[MetadataKey]string `json:"fields,omitempty"`
	Diagnostics json.RawMessage        `json:"diagnostics,omitempty"`
}

// Set stores value under key. Unknown keys are rejected.
func (m *JobMetadata) Set(key MetadataKey, value any) error {
	if !key.IsKnown() {
		return fmt.Errorf("%w: %q", ErrUnknownMetadataKey, key)
	}
	if m.Fields == nil {
		m.Fields = make(map[MetadataKey]string)
	}
	m.Fields[key] = fmt.Sprint(value)
	return nil
}

// Get returns the value stored under key.
func (m JobMetadata) Get(key MetadataKey) (string, bool) {
	v, ok := m.Fields[key]
	return v, ok
}

// Merge copies fields from other into m. Diagnostics are replaced when other carries any.
func (m *JobMetadata) Merge(other JobMetadata) {
	if len(other.Fields) > 0 {
		if m.Fields == nil {
			m.Fields = make(map[MetadataKey]string, len(other.Fields))
		}
		maps.Copy(m.Fields, other.Fields)
	}
	if len(other.Diagnostics) > 0 {
		m.Diagnostics = other.Diagnostics
	}
}

// ProcessingJob records one processing attempt for a document.
type ProcessingJob struct {
	ID          ID          `json:"id"`
	DocumentID  ID          `json:"document_id"`
	Stage       JobStage    `json:"stage"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at,omitzero"` // zero until terminal
	Error       string      `json:"error,omitempty"`
	Metadata    JobMetadata `json:"metadata"`
}

// RequestStatus is the state of a reprocessing request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestRunning   RequestStatus = "running"
	RequestCompleted RequestStatus = "completed"
	RequestFailed    RequestStatus = "failed"
	RequestCanceled  RequestStatus = "canceled"
)

// IsTerminal reports whether the request has finished.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestCompleted || s == RequestFailed || s == RequestCanceled
}

// ReprocessingRequest tracks an asynchronous processing request issued through the work queue.
type ReprocessingRequest struct {
	Handle      string        `json:"handle"`
	DocumentID  ID            `json:"document_id"`
	Force       bool          `json:"force"`
	Status      RequestStatus `json:"status"`
	EnqueuedAt  time.Time     `json:"enqueued_at"`
	CompletedAt time.Time     `json:"completed_at,omitzero"`
	Error       string        `json:"error,omitempty"`
}

// Checkpoint records how far a bulk operation has progressed so it can resume.
type Checkpoint struct {
	ProcessorType string    `json:"processor_type"`
	LastID        ID        `json:"last_id"`
	UpdatedAt     time.Time `json:"updated_at"`
}
