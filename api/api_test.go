package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docpipe"
	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/ai/mock"
	"github.com/poiesic/docpipe/core"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	engine *docpipe.Engine
	router *gin.Engine
}

func newTestServer(t *testing.T, opts ...docpipe.Option) *testServer {
	t.Helper()
	base := []docpipe.Option{
		docpipe.WithInMemory(),
		docpipe.WithProvider(mock.NewMockProvider()),
		docpipe.WithTextExtractor(mock.NewMockTextExtractor()),
		docpipe.WithPolling(5*time.Millisecond, 50*time.Millisecond),
	}
	engine, err := docpipe.NewEngine("", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close(context.Background()) })

	return &testServer{engine: engine, router: NewRouter(engine, slog.Default())}
}

func (s *testServer) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, body)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return s.do(t, http.MethodPost, "/api/documents", &buf, mw.FormDataContentType())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func (s *testServer) waitFor(t *testing.T, handle string) *core.ReprocessingRequest {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := s.engine.Wait(ctx, handle)
	require.NoError(t, err)
	return req
}

func TestIngestUploadAndFetch(t *testing.T) {
	s := newTestServer(t)

	w := s.upload(t, "report.txt", "Quarterly Report\nnumbers went up")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	created := decode[ingestResponse](t, w)
	require.NotNil(t, created.Document)
	require.NotEmpty(t, created.Handle)
	assert.Equal(t, "report.txt", created.Document.Filename)

	s.waitFor(t, created.Handle)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/documents/%d", created.Document.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	doc := decode[core.Document](t, w)
	assert.Equal(t, core.DocumentCompleted, doc.Status)

	w = s.do(t, http.MethodGet, "/api/requests/"+created.Handle, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	req := decode[core.ReprocessingRequest](t, w)
	assert.Equal(t, core.RequestCompleted, req.Status)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/documents/%d/jobs", doc.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	jobs := decode[[]core.ProcessingJob](t, w)
	require.Len(t, jobs, 1)
	assert.Equal(t, core.StageCompleted, jobs[0].Stage)
}

func TestIngestDuplicateConflict(t *testing.T) {
	s := newTestServer(t)

	w := s.upload(t, "a.txt", "identical")
	require.Equal(t, http.StatusCreated, w.Code)
	first := decode[ingestResponse](t, w)

	w = s.upload(t, "b.txt", "identical")
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode[ErrorResponse](t, w)
	assert.Equal(t, "duplicate", body.Error.Code)
	details, ok := body.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, first.Document.ID, details["existing_id"])

	w = s.do(t, http.MethodGet, "/api/duplicates/"+first.Document.ContentHash, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"duplicate":true`)

	w = s.do(t, http.MethodGet, "/api/duplicates/not-a-hash", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestJSONValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/documents", bytes.NewBufferString(`{"filename":"x.pdf"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/documents", bytes.NewBufferString(`{"filename":"x.pdf","storage_id":"missing"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/documents", bytes.NewBufferString(`{not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReprocessAndCancel(t *testing.T) {
	s := newTestServer(t, docpipe.WithProcessingEnabled(false))

	w := s.upload(t, "later.txt", "waiting for reprocessing")
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[ingestResponse](t, w)
	assert.Empty(t, created.Handle)

	path := fmt.Sprintf("/api/documents/%d/reprocess?force=true", created.Document.ID)
	w = s.do(t, http.MethodPost, path, nil, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	accepted := decode[map[string]any](t, w)
	handle, _ := accepted["handle"].(string)
	require.NotEmpty(t, handle)
	assert.Equal(t, true, accepted["force"])

	s.waitFor(t, handle)
	w = s.do(t, http.MethodDelete, "/api/requests/"+handle, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodDelete, "/api/requests/unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/documents/424242/reprocess", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReprocessSaturated(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	extractor := mock.NewMockTextExtractor()
	extractor.ExtractTextFunc = func(ctx context.Context, data []byte) (*ai.Extraction, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return &ai.Extraction{Text: string(data), PageCount: 1}, nil
	}
	s := newTestServer(t, docpipe.WithTextExtractor(extractor), docpipe.WithQueue(1, 1))
	t.Cleanup(func() { close(release) })

	w := s.upload(t, "running.txt", "occupies the only worker")
	require.Equal(t, http.StatusCreated, w.Code)
	running := decode[ingestResponse](t, w)
	<-started

	w = s.upload(t, "waiting.txt", "fills the backlog")
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotEmpty(t, decode[ingestResponse](t, w).Handle)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/documents/%d/reprocess", running.Document.ID), nil, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "saturated", decode[ErrorResponse](t, w).Error.Code)
}

func TestDeleteDocument(t *testing.T) {
	s := newTestServer(t)

	w := s.upload(t, "gone.txt", "to be deleted")
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[ingestResponse](t, w)
	s.waitFor(t, created.Handle)

	path := fmt.Sprintf("/api/documents/%d", created.Document.ID)
	w = s.do(t, http.MethodDelete, path, nil, "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/documents/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobsLists(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/jobs/active", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/jobs/failed", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestUploadURLAndOperatorRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/uploads", nil, "")
	require.Equal(t, http.StatusCreated, w.Code)
	target := decode[map[string]any](t, w)
	assert.NotEmpty(t, target["storage_id"])
	assert.True(t, strings.HasPrefix(target["url"].(string), "memory://"))

	w = s.do(t, http.MethodPost, "/api/reconcile", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/queue", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Workers":3`)

	w = s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSearch(t *testing.T) {
	s := newTestServer(t)

	w := s.upload(t, "inventory.txt", "The warehouse inventory was counted in March.")
	require.Equal(t, http.StatusCreated, w.Code)
	s.waitFor(t, decode[ingestResponse](t, w).Handle)

	w = s.do(t, http.MethodGet, "/api/search?min_score=0&q="+strings.ReplaceAll("The warehouse inventory was counted in March.", " ", "+"), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	matches := decode[[]core.ChunkMatch](t, w)
	assert.NotEmpty(t, matches)

	w = s.do(t, http.MethodGet, "/api/search", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(slog.Default()))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal", decode[ErrorResponse](t, w).Error.Code)
}

func TestRequestIDPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-Id"))
}
