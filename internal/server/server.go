// Package server provides the HTTP API for the triage service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hci/triagem/internal/config"
	"github.com/hci/triagem/internal/review"
	"github.com/hci/triagem/internal/storage"
	"github.com/hci/triagem/internal/triage"
)

// Server is the HTTP server for the triage API.
type Server struct {
	service *triage.Service
	review  *review.Workflow
	storage storage.Store
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	service *triage.Service,
	reviewWorkflow *review.Workflow,
	store storage.Store,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		service: service,
		review:  reviewWorkflow,
		storage: store,
		config:  cfg,
		logger:  logger,
	}
}

// Router builds the HTTP routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Generation dominates request latency; leave headroom over its timeout.
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/triage", s.handleTriage)
	r.Get("/api/v1/records", s.handleListRecords)
	r.Get("/api/v1/records/search", s.handleSearchRecords)
	r.Get("/api/v1/records/{id}", s.handleGetRecord)
	r.Delete("/api/v1/records/{id}", s.handleDeleteRecord)
	r.Post("/api/v1/records/{id}/validate", s.handleValidate)
	r.Get("/api/v1/stats", s.handleStats)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := s.Router()
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
