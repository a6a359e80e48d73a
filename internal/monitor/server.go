package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quietlabs/docbot/internal/events"
	"github.com/quietlabs/docbot/internal/health"
	"github.com/quietlabs/docbot/internal/ingest"
	"github.com/quietlabs/docbot/internal/logger"
	"github.com/quietlabs/docbot/internal/store"
)

// previewChunkLimit caps how many chunks a document preview returns.
const previewChunkLimit = 5

// DocumentStore is the storage surface the dashboard reads and writes.
type DocumentStore interface {
	ListSources(ctx context.Context) ([]store.SourceInfo, error)
	Preview(ctx context.Context, source string, limit int) ([]store.Chunk, error)
	DeleteSource(ctx context.Context, source string) (int64, error)
	CollectionStats(ctx context.Context) (*store.Stats, error)
}

// IngestService turns an uploaded PDF into searchable chunks.
type IngestService interface {
	IngestPDF(ctx context.Context, source string, data []byte) (int, error)
}

// EventReader serves the observability views.
type EventReader interface {
	Recent(ctx context.Context, limit int, status string) ([]events.QueryEvent, error)
	Summarize(ctx context.Context) (*events.Summary, error)
}

// Server is the local operations dashboard. It binds to loopback and carries
// no authentication; exposing it beyond localhost is the operator's problem.
type Server struct {
	engine    *gin.Engine
	server    *http.Server
	documents DocumentStore
	ingester  IngestService
	reader    EventReader
	checker   *health.Checker

	maxUploadBytes int64
}

// NewServer creates the dashboard server.
func NewServer(documents DocumentStore, ingester IngestService, reader EventReader, checker *health.Checker, maxUploadBytes int64, debug bool) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:         gin.New(),
		documents:      documents,
		ingester:       ingester,
		reader:         reader,
		checker:        checker,
		maxUploadBytes: maxUploadBytes,
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(s.loggingMiddleware())
	s.registerRoutes()
	return s
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.MonitorInfo("%s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/stats", s.handleStats)
		api.GET("/logs", s.handleLogs)

		api.GET("/docs/list", s.handleDocsList)
		api.GET("/docs/preview", s.handleDocsPreview)

		api.POST("/upload/pdf", s.handleUploadPDF)
		api.POST("/delete/pdf", s.handleDeletePDF)

		api.GET("/test/azure", s.handleTestAzure)
		api.GET("/test/store", s.handleTestStore)
	}
}

// Start serves until the context is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.MonitorInfo("Dashboard listening on http://%s", addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("dashboard server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleStats(c *gin.Context) {
	summary, err := s.reader.Summarize(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	collection, err := s.documents.CollectionStats(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"last_24h":   summary,
		"collection": collection,
	})
}

func (s *Server) handleLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	status := c.Query("status")

	evs, err := s.reader.Recent(c.Request.Context(), limit, status)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":  len(evs),
		"events": evs,
	})
}

func (s *Server) handleDocsList(c *gin.Context) {
	infos, err := s.documents.ListSources(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":     len(infos),
		"documents": infos,
	})
}

func (s *Server) handleDocsPreview(c *gin.Context) {
	source := c.Query("source")
	if source == "" {
		s.failMsg(c, http.StatusBadRequest, "source is required")
		return
	}

	chunks, err := s.documents.Preview(c.Request.Context(), source, previewChunkLimit)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.failMsg(c, http.StatusNotFound, fmt.Sprintf("document %q not found", source))
			return
		}
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	preview := make([]gin.H, len(chunks))
	for i, ch := range chunks {
		preview[i] = gin.H{
			"id":    ch.ID,
			"page":  ch.Page,
			"index": ch.ChunkIndex,
			"text":  ch.Text,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"source": source,
		"chunks": preview,
	})
}

func (s *Server) handleUploadPDF(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.failMsg(c, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	if s.maxUploadBytes > 0 && fileHeader.Size > s.maxUploadBytes {
		s.failMsg(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the %d MB limit", s.maxUploadBytes/(1024*1024)))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	count, err := s.ingester.IngestPDF(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrTooLarge):
			s.failMsg(c, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, ingest.ErrInvalidPDF), errors.Is(err, ingest.ErrNoText):
			s.failMsg(c, http.StatusUnprocessableEntity, err.Error())
		default:
			s.fail(c, http.StatusInternalServerError, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source": fileHeader.Filename,
		"chunks": count,
	})
}

func (s *Server) handleDeletePDF(c *gin.Context) {
	var req struct {
		Filename string `json:"filename" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.failMsg(c, http.StatusBadRequest, "filename is required")
		return
	}

	count, err := s.documents.DeleteSource(c.Request.Context(), req.Filename)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.failMsg(c, http.StatusNotFound, fmt.Sprintf("document %q not found", req.Filename))
			return
		}
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source":  req.Filename,
		"deleted": count,
	})
}

func (s *Server) handleTestAzure(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	results := []health.Result{}
	embRes := health.Result{Name: "embeddings", OK: true}
	if err := s.checker.CheckEmbeddings(ctx); err != nil {
		embRes.OK = false
		embRes.Error = err.Error()
	}
	chatRes := health.Result{Name: "chat", OK: true}
	if err := s.checker.CheckChat(ctx); err != nil {
		chatRes.OK = false
		chatRes.Error = err.Error()
	}
	results = append(results, embRes, chatRes)

	status := http.StatusOK
	if !health.Healthy(results) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ok": health.Healthy(results), "probes": results})
}

func (s *Server) handleTestStore(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	res := health.Result{Name: "vector_search", OK: true}
	if err := s.checker.CheckSearch(ctx); err != nil {
		res.OK = false
		res.Error = err.Error()
	}

	status := http.StatusOK
	if !res.OK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ok": res.OK, "probes": []health.Result{res}})
}

func (s *Server) fail(c *gin.Context, code int, err error) {
	logger.MonitorError("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(code, gin.H{"error": http.StatusText(code)})
}

func (s *Server) failMsg(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}
