package server

import (
	"encoding/json"
	"net/http"

	"github.com/hyperjump/aibridge/internal/apierr"
	"github.com/hyperjump/aibridge/internal/vectorsearch"
	"go.uber.org/zap"
)

type askRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id,omitempty"`
	ResultAsJSON   *bool  `json:"result_as_json,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	asJSON := s.config.Genie.ResultAsJSON
	if req.ResultAsJSON != nil {
		asJSON = *req.ResultAsJSON
	}
	s.logger.Debug("ask request",
		zap.String("conversation_id", req.ConversationID),
		zap.Bool("result_as_json", asJSON),
	)
	resp, err := s.asker.AskQuestion(r.Context(), req.Question, req.ConversationID, asJSON)
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type searchRequest struct {
	Query     string         `json:"query"`
	K         int            `json:"k,omitempty"`
	Filter    map[string]any `json:"filter,omitempty"`
	QueryType string         `json:"query_type,omitempty"`
	MMR       bool           `json:"mmr,omitempty"`
	FetchK    int            `json:"fetch_k,omitempty"`
	Lambda    *float64       `json:"lambda,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		s.respondError(w, http.StatusNotImplemented, "vector search not configured")
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	opts := vectorsearch.SearchOptions{K: req.K, Filter: req.Filter, QueryType: req.QueryType}
	if opts.QueryType == "" {
		opts.QueryType = s.config.VectorSearch.QueryType
	}
	s.logger.Debug("search request", zap.Int("k", req.K), zap.Bool("mmr", req.MMR), zap.String("query_type", opts.QueryType))

	if req.MMR {
		lambda := vectorsearch.DefaultLambda
		if req.Lambda != nil {
			lambda = *req.Lambda
		}
		docs, err := s.searcher.MaxMarginalRelevanceSearch(r.Context(), req.Query,
			vectorsearch.MMROptions{SearchOptions: opts, FetchK: req.FetchK, Lambda: lambda})
		if err != nil {
			s.logger.Error("search failed", zap.Error(err))
			s.respondError(w, statusFor(err), err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
		return
	}

	docs, err := s.searcher.SimilaritySearchWithScore(r.Context(), req.Query, opts)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"vector_search": s.searcher != nil,
	})
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch apierr.KindOf(err) {
	case apierr.Config, apierr.Unsupported:
		return http.StatusBadRequest
	case apierr.Transport, apierr.Decode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
