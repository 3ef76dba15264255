// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package minio implements blob.Store on MinIO or any S3-compatible service.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/poiesic/docpipe/blob"
)

const defaultURLExpiry = 15 * time.Minute

// Config holds connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLExpiry time.Duration
}

// Store is a blob.Store over a single bucket.
type Store struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

var _ blob.Store = (*Store)(nil)

// New connects to the endpoint and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("minio endpoint and bucket are required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = defaultURLExpiry
	}
	s := &Store{client: mc, bucket: cfg.Bucket, expiry: expiry}

	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, existsErr := mc.BucketExists(ctx, s.bucket)
		if existsErr != nil || !exists {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

func (s *Store) GetURL(ctx context.Context, storageID string) (string, error) {
	if storageID == "" {
		return "", blob.ErrEmptyStorageID
	}
	if _, err := s.client.StatObject(ctx, s.bucket, storageID, minio.StatObjectOptions{}); err != nil {
		return "", translate(err)
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, storageID, s.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", storageID, err)
	}
	return u.String(), nil
}

func (s *Store) GenerateUploadURL(ctx context.Context) (*blob.UploadTarget, error) {
	id := uuid.NewString()
	u, err := s.client.PresignedPutObject(ctx, s.bucket, id, s.expiry)
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}
	return &blob.UploadTarget{
		StorageID: id,
		URL:       u.String(),
		ExpiresAt: time.Now().UTC().Add(s.expiry),
	}, nil
}

func (s *Store) Fetch(ctx context.Context, storageID string) ([]byte, error) {
	if storageID == "" {
		return nil, blob.ErrEmptyStorageID
	}
	obj, err := s.client.GetObject(ctx, s.bucket, storageID, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translate(err)
	}
	return data, nil
}

func (s *Store) Put(ctx context.Context, r io.Reader, size int64, contentType string) (string, error) {
	id := uuid.NewString()
	_, err := s.client.PutObject(ctx, s.bucket, id, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return id, nil
}

func (s *Store) Delete(ctx context.Context, storageID string) error {
	if storageID == "" {
		return blob.ErrEmptyStorageID
	}
	if err := s.client.RemoveObject(ctx, s.bucket, storageID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// translate maps missing-object responses onto blob.ErrNotFound.
func translate(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %v", blob.ErrNotFound, err)
	}
	return err
}
