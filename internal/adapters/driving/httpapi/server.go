// Package httpapi exposes the question-answering and ingestion services
// over a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/bookwise/internal/core/ports/driving"
	"github.com/custodia-labs/bookwise/internal/logger"
)

const (
	// maxBodySize caps request bodies. Ingest payloads carry whole
	// documents, so the cap is generous.
	maxBodySize = 8 << 20 // 8MB

	defaultShutdownTimeout = 10 * time.Second
)

// Server serves the HTTP API.
type Server struct {
	addr            string
	version         string
	shutdownTimeout time.Duration

	ask     driving.AskService
	reindex driving.ReindexService
	source  driving.SourceService

	server *http.Server
}

// Config holds server configuration.
type Config struct {
	// Addr is the listen address (default: :8080).
	Addr string

	// Version is reported by the health endpoint.
	Version string

	// ShutdownTimeout bounds graceful shutdown (default: 10s).
	ShutdownTimeout time.Duration

	Ask     driving.AskService
	Reindex driving.ReindexService
	Source  driving.SourceService
}

// NewServer creates a new API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Ask == nil || cfg.Reindex == nil || cfg.Source == nil {
		return nil, errors.New("httpapi: ask, reindex and source services are required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	return &Server{
		addr:            cfg.Addr,
		version:         cfg.Version,
		shutdownTimeout: cfg.ShutdownTimeout,
		ask:             cfg.Ask,
		reindex:         cfg.Reindex,
		source:          cfg.Source,
	}, nil
}

// Handler builds the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /query-selected", s.handleQuerySelected)
	mux.HandleFunc("GET /sources/{chunk_id}", s.handleGetSource)
	mux.HandleFunc("GET /sessions/{session_id}", s.handleGetSession)
	mux.HandleFunc("POST /admin/reindex/{corpus_id}", s.handleReindex)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.limitBody(mux)
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("httpapi: shutdown: %v", err)
		}
	}()

	logger.Info("httpapi: listening on %s", s.addr)
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("httpapi: serve: %w", err)
	}
	return nil
}

// limitBody caps request body size on every route.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		}
		next.ServeHTTP(w, r)
	})
}
