package core

import "time"

// IndexedChunk is one embedded slice of document text.
type IndexedChunk struct {
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

// IndexEntry is a document's presence in the local index.
type IndexEntry struct {
	ID         string            `json:"id"`
	DocumentID ID                `json:"document_id"`
	Chunks     []IndexedChunk    `json:"chunks"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Status     IndexStatus       `json:"status"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ChunkMatch is a chunk returned from a similarity scan.
type ChunkMatch struct {
	EntryID    string  `json:"entry_id"`
	DocumentID ID      `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
}
