// Package server exposes the question-answering and document search tools
// over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/aibridge/internal/config"
	"github.com/hyperjump/aibridge/internal/genie"
	"github.com/hyperjump/aibridge/internal/vectorsearch"
	"github.com/hyperjump/aibridge/pkg/utils"
	"go.uber.org/zap"
)

// Asker answers natural-language questions. *genie.Genie implements it.
type Asker interface {
	AskQuestion(ctx context.Context, question, conversationID string, resultAsJSON bool) (*genie.Response, error)
}

// Searcher retrieves documents. *vectorsearch.VectorStore implements it.
type Searcher interface {
	SimilaritySearchWithScore(ctx context.Context, query string, opts vectorsearch.SearchOptions) ([]vectorsearch.ScoredDocument, error)
	MaxMarginalRelevanceSearch(ctx context.Context, query string, opts vectorsearch.MMROptions) ([]vectorsearch.Document, error)
}

// requestTimeout bounds a request. Two full polling stages fit inside it.
const requestTimeout = 10 * time.Minute

// Server is the HTTP server for the aibridge API.
type Server struct {
	asker    Asker
	searcher Searcher
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server. searcher may be nil when no index is configured.
func NewServer(asker Asker, searcher Searcher, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		asker:    asker,
		searcher: searcher,
		config:   cfg,
		logger:   utils.OrNop(logger),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Post("/api/v1/genie/ask", s.handleAsk)
	r.Post("/api/v1/vector/search", s.handleSearch)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
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
