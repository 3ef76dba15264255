// Package blob defines the opaque store holding raw document bytes.
//
// The pipeline only ever refers to content by storage ID; callers upload
// through a presigned URL or Put and the pipeline later Fetches the bytes for
// extraction.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound indicates no object exists under the storage ID.
	ErrNotFound = errors.New("blob not found")

	// ErrEmptyStorageID indicates a blank storage ID.
	ErrEmptyStorageID = errors.New("storage id cannot be empty")
)

// UploadTarget is a location a client can upload to directly.
type UploadTarget struct {
	StorageID string    `json:"storage_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store holds document bytes by storage ID.
// Implementations must be thread-safe for concurrent use.
type Store interface {
	// GetURL returns a time-limited download URL for storageID.
	GetURL(ctx context.Context, storageID string) (string, error)

	// GenerateUploadURL reserves a new storage ID and returns where to upload it.
	GenerateUploadURL(ctx context.Context) (*UploadTarget, error)

	// Fetch returns the stored bytes. Returns ErrNotFound for unknown IDs.
	Fetch(ctx context.Context, storageID string) ([]byte, error)

	// Put stores the reader's content under a new storage ID.
	Put(ctx context.Context, r io.Reader, size int64, contentType string) (string, error)

	// Delete removes the object under storageID. Deleting a missing object is not an error.
	Delete(ctx context.Context, storageID string) error
}
