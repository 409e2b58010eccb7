// Package server provides the HTTP API for docvault.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperhold/docvault/internal/docproc"
	"github.com/paperhold/docvault/internal/export"
	"github.com/paperhold/docvault/internal/pipeline"
	"github.com/paperhold/docvault/internal/repository"
	"github.com/paperhold/docvault/internal/storage"
)

// Server is the HTTP server for the document API.
type Server struct {
	processor      *pipeline.Processor
	documents      repository.DocumentRepository
	files          *storage.FileStore
	exporter       *export.Service
	docproc        *docproc.Client
	pool           *pgxpool.Pool
	requestTimeout time.Duration
	logger         *slog.Logger
	server         *http.Server
}

func NewServer(
	processor *pipeline.Processor,
	documents repository.DocumentRepository,
	files *storage.FileStore,
	exporter *export.Service,
	dp *docproc.Client,
	pool *pgxpool.Pool,
	requestTimeout time.Duration,
	logger *slog.Logger,
) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 2 * time.Minute
	}
	return &Server{
		processor:      processor,
		documents:      documents,
		files:          files,
		exporter:       exporter,
		docproc:        dp,
		pool:           pool,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))

	r.Post("/documents/upload", s.handleUpload)
	r.Get("/documents/export", s.handleExport)
	r.Get("/documents/{id}", s.handleGetDocument)
	r.Delete("/documents/{id}", s.handleDeleteDocument)
	r.Get("/documents/{id}/thumbnail", s.handleThumbnail)
	r.Get("/healthz", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting http server", "addr", addr)
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
