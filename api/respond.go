package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/poiesic/docpipe"
	"github.com/poiesic/docpipe/blob"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/queue"
	"github.com/poiesic/docpipe/storage"
)

// ErrorBody is the error object returned to clients.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{Code: code, Message: message, Details: details},
	})
}

// respondErr maps domain errors onto HTTP statuses.
func respondErr(c *gin.Context, err error) {
	_ = c.Error(err)

	var dup *core.DuplicateContentError
	switch {
	case errors.As(err, &dup):
		respondError(c, http.StatusConflict, "duplicate", err.Error(), gin.H{"existing_id": dup.ExistingID, "hash": dup.Hash})
	case errors.Is(err, queue.ErrQueueSaturated):
		c.Header("Retry-After", "5")
		respondError(c, http.StatusTooManyRequests, "saturated", err.Error(), nil)
	case errors.Is(err, queue.ErrNotCancelable):
		respondError(c, http.StatusConflict, "not_cancelable", err.Error(), nil)
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, queue.ErrUnknownHandle):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, core.ErrInvalidDocument),
		errors.Is(err, core.ErrInvalidContentHash),
		errors.Is(err, docpipe.ErrNoContent),
		errors.Is(err, blob.ErrNotFound),
		errors.Is(err, blob.ErrEmptyStorageID):
		respondError(c, http.StatusBadRequest, "invalid", err.Error(), nil)
	case errors.Is(err, docpipe.ErrQueryUnsupported):
		respondError(c, http.StatusNotImplemented, "unsupported", err.Error(), nil)
	case errors.Is(err, queue.ErrQueueClosed):
		respondError(c, http.StatusServiceUnavailable, "shutting_down", err.Error(), nil)
	default:
		respondError(c, http.StatusInternalServerError, "internal", "unexpected server error", nil)
	}
}
