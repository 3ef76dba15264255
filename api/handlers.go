package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/poiesic/docpipe"
	"github.com/poiesic/docpipe/core"
)

// MaxUploadBytes caps documents posted directly to the API.
const MaxUploadBytes = 64 << 20

type handlers struct {
	svc Service
}

type ingestBody struct {
	Filename  string      `json:"filename"`
	Title     string      `json:"title"`
	Source    core.Source `json:"source"`
	StorageID string      `json:"storage_id"`
	SourceURL string      `json:"source_url"`
	Approved  bool        `json:"approved"`
}

type ingestResponse struct {
	Document *core.Document `json:"document"`
	Handle   string         `json:"handle,omitempty"`
}

// ingest accepts either a multipart upload in the "file" field or a JSON
// body pointing at a blob storage ID or an external URL.
func (h *handlers) ingest(c *gin.Context) {
	var req docpipe.IngestRequest

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid", "multipart upload needs a file field", nil)
			return
		}
		if header.Size > MaxUploadBytes {
			respondError(c, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("uploads are limited to %d bytes", MaxUploadBytes), nil)
			return
		}
		f, err := header.Open()
		if err != nil {
			respondErr(c, err)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes))
		if err != nil {
			respondErr(c, err)
			return
		}
		req = docpipe.IngestRequest{
			Filename:    header.Filename,
			Title:       c.PostForm("title"),
			Data:        data,
			ContentType: header.Header.Get("Content-Type"),
			Approved:    c.PostForm("approved") == "true",
		}
	} else {
		var body ingestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, http.StatusBadRequest, "invalid", err.Error(), nil)
			return
		}
		req = docpipe.IngestRequest{
			Filename:  body.Filename,
			Title:     body.Title,
			Source:    body.Source,
			StorageID: body.StorageID,
			SourceURL: body.SourceURL,
			Approved:  body.Approved,
		}
	}

	res, err := h.svc.Ingest(c.Request.Context(), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, ingestResponse{Document: res.Document, Handle: res.Handle})
}

func (h *handlers) getDocument(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	doc, err := h.svc.Document(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *handlers) deleteDocument(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteDocument(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) documentJobs(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	if _, err := h.svc.Document(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	jobs, err := h.svc.JobsForDocument(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(jobs))
}

func (h *handlers) reprocess(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(c.Query("force"))

	handle, err := h.svc.Enqueue(c.Request.Context(), id, force)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"handle": handle, "document_id": id, "force": force})
}

func (h *handlers) duplicate(c *gin.Context) {
	result, err := h.svc.CheckDuplicate(c.Request.Context(), c.Param("hash"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"duplicate": result.IsDuplicate, "existing": result.Existing})
}

func (h *handlers) getRequest(c *gin.Context) {
	req, err := h.svc.Status(c.Request.Context(), c.Param("handle"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *handlers) cancelRequest(c *gin.Context) {
	if err := h.svc.Cancel(c.Request.Context(), c.Param("handle")); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) activeJobs(c *gin.Context) {
	jobs, err := h.svc.ActiveJobs(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(jobs))
}

func (h *handlers) failedJobs(c *gin.Context) {
	jobs, err := h.svc.FailedJobs(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(jobs))
}

func (h *handlers) uploadURL(c *gin.Context) {
	target, err := h.svc.UploadURL(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"storage_id": target.StorageID, "url": target.URL, "expires_at": target.ExpiresAt})
}

func (h *handlers) reconcile(c *gin.Context) {
	report, err := h.svc.Reconcile(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handlers) query(c *gin.Context) {
	text := c.Query("q")
	if text == "" {
		respondError(c, http.StatusBadRequest, "invalid", "query parameter q is required", nil)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		respondError(c, http.StatusBadRequest, "invalid", "limit must be a positive integer", nil)
		return
	}
	minScore, err := strconv.ParseFloat(c.DefaultQuery("min_score", "0.5"), 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid", "min_score must be a number", nil)
		return
	}

	matches, err := h.svc.Query(c.Request.Context(), text, float32(minScore), limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(matches))
}

func (h *handlers) queueStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.QueueStats())
}

func documentID(c *gin.Context) (core.ID, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "invalid", "document id must be a positive integer", nil)
		return 0, false
	}
	return core.ID(id), true
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
