package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers every route on a new gin engine.
func NewRouter(svc Service, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")

	r := gin.New()
	r.MaxMultipartMemory = MaxUploadBytes
	r.Use(RequestID(), RequestLogger(logger), Recovery(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := &handlers{svc: svc}
	api := r.Group("/api")
	api.POST("/documents", h.ingest)
	api.GET("/documents/:id", h.getDocument)
	api.DELETE("/documents/:id", h.deleteDocument)
	api.GET("/documents/:id/jobs", h.documentJobs)
	api.POST("/documents/:id/reprocess", h.reprocess)
	api.GET("/duplicates/:hash", h.duplicate)
	api.GET("/requests/:handle", h.getRequest)
	api.DELETE("/requests/:handle", h.cancelRequest)
	api.GET("/jobs/active", h.activeJobs)
	api.GET("/jobs/failed", h.failedJobs)
	api.POST("/uploads", h.uploadURL)
	api.POST("/reconcile", h.reconcile)
	api.GET("/search", h.query)
	api.GET("/queue", h.queueStats)

	return r
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Serve runs handler on cfg.Addr until ctx ends, then shuts down gracefully.
func Serve(ctx context.Context, cfg ServerConfig, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}
