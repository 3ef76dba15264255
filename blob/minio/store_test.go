package minio

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/poiesic/docpipe/blob"
	"github.com/stretchr/testify/assert"
)

func TestNew_RequiresEndpointAndBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Bucket: "docs"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}

func TestTranslate(t *testing.T) {
	missing := minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound, Message: "gone"}
	assert.ErrorIs(t, translate(missing), blob.ErrNotFound)

	other := errors.New("connection refused")
	assert.Equal(t, other, translate(other))
}
