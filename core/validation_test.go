package core

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDocument(t *testing.T) {
	validHash := Fingerprint([]byte("annual report"))

	tests := []struct {
		name    string
		doc     *Document
		wantErr error
	}{
		{
			name: "valid upload",
			doc: &Document{
				Filename:    "report.pdf",
				StorageID:   "blob-1",
				ContentHash: validHash,
				Source:      SourceUpload,
			},
			wantErr: nil,
		},
		{
			name: "valid external link without hash",
			doc: &Document{
				Filename:  "remote.pdf",
				SourceURL: "https://example.com/remote.pdf",
				Source:    SourceExternalLink,
			},
			wantErr: nil,
		},
		{
			name: "valid imported",
			doc: &Document{
				Filename:  "legacy.pdf",
				StorageID: "blob-2",
				Source:    SourceImported,
			},
			wantErr: nil,
		},
		{
			name:    "nil document",
			doc:     nil,
			wantErr: ErrInvalidDocument,
		},
		{
			name: "empty filename",
			doc: &Document{
				StorageID: "blob-1",
				Source:    SourceUpload,
			},
			wantErr: ErrEmptyFilename,
		},
		{
			name: "unknown source",
			doc: &Document{
				Filename:  "report.pdf",
				StorageID: "blob-1",
				Source:    Source("fax"),
			},
			wantErr: ErrInvalidSource,
		},
		{
			name: "malformed hash",
			doc: &Document{
				Filename:    "report.pdf",
				StorageID:   "blob-1",
				ContentHash: "not-a-hash",
				Source:      SourceUpload,
			},
			wantErr: ErrInvalidContentHash,
		},
		{
			name: "upload without storage id",
			doc: &Document{
				Filename: "report.pdf",
				Source:   SourceUpload,
			},
			wantErr: ErrMissingContentLocation,
		},
		{
			name: "external link without location",
			doc: &Document{
				Filename: "remote.pdf",
				Source:   SourceExternalLink,
			},
			wantErr: ErrMissingContentLocation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDocument() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDocument() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("ValidateDocument() error = %v should wrap ErrInvalidDocument", err)
			}
		})
	}
}

func TestValidateContentHash(t *testing.T) {
	tests := []struct {
		name    string
		hash    string
		wantErr bool
	}{
		{"valid", Fingerprint([]byte("x")), false},
		{"too short", "abcd", true},
		{"not hex", strings.Repeat("z", FingerprintSize*2), true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContentHash(tt.hash)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateContentHash(%q) error = %v, wantErr %v", tt.hash, err, tt.wantErr)
			}
		})
	}
}

func TestValidateStageTransition(t *testing.T) {
	tests := []struct {
		from    JobStage
		to      JobStage
		wantErr error
	}{
		{StageExtracting, StageEmbedding, nil},
		{StageEmbedding, StageStoring, nil},
		{StageStoring, StageCompleted, nil},
		{StageExtracting, StageCompleted, nil},
		{StageExtracting, StageExtracting, nil},
		{StageExtracting, StageFailed, nil},
		{StageStoring, StageFailed, nil},
		{StageStoring, StageEmbedding, ErrInvalidStageTransition},
		{StageEmbedding, StageExtracting, ErrInvalidStageTransition},
		{StageExtracting, JobStage("paused"), ErrInvalidStageTransition},
		{StageCompleted, StageFailed, ErrJobTerminal},
		{StageFailed, StageExtracting, ErrJobTerminal},
		{StageCompleted, StageCompleted, ErrJobTerminal},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := ValidateStageTransition(tt.from, tt.to)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateStageTransition() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateStageTransition() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
