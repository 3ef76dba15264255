// Package fingerprint guards document creation with content fingerprints so
// that the same bytes are never stored twice.
package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// ErrDocumentRepositoryRequired is returned when no repository is supplied.
var ErrDocumentRepositoryRequired = errors.New("document repository required")

// Result is the outcome of a duplicate check.
type Result struct {
	IsDuplicate bool
	Existing    *core.Document
}

// Service checks and claims content hashes.
type Service struct {
	documents storage.DocumentRepository
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates a fingerprint service over documents.
func NewService(documents storage.DocumentRepository, opts ...Option) (*Service, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	s := &Service{
		documents: documents,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "fingerprint")
	return s, nil
}

// CheckDuplicate looks up hash without modifying anything.
func (s *Service) CheckDuplicate(ctx context.Context, hash string) (*Result, error) {
	if err := core.ValidateContentHash(hash); err != nil {
		return nil, err
	}

	existing, err := s.documents.FindByContentHash(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &Result{}, nil
		}
		return nil, fmt.Errorf("lookup content hash: %w", err)
	}
	return &Result{IsDuplicate: true, Existing: existing}, nil
}

// Create stores doc with hash as its content fingerprint. The check and the
// insert happen atomically, so of two concurrent creates with the same hash
// exactly one succeeds and the other receives *core.DuplicateContentError.
// An empty hash skips deduplication.
func (s *Service) Create(ctx context.Context, doc *core.Document, hash string) (*core.Document, error) {
	doc.ContentHash = hash
	created, err := s.documents.CreateDocument(ctx, doc)
	if err != nil {
		var dup *core.DuplicateContentError
		if errors.As(err, &dup) {
			s.logger.Info("duplicate content rejected", "hash", hash, "existing_id", dup.ExistingID)
		}
		return nil, err
	}

	s.logger.Debug("document created", "id", created.ID, "hash", hash)
	return created, nil
}

// CreateFromBytes fingerprints data and creates doc with the result.
func (s *Service) CreateFromBytes(ctx context.Context, doc *core.Document, data []byte) (*core.Document, error) {
	return s.Create(ctx, doc, core.Fingerprint(data))
}
