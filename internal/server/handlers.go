package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hci/triagem/internal/embedding"
	"github.com/hci/triagem/internal/generation"
	"github.com/hci/triagem/internal/models"
	"github.com/hci/triagem/internal/storage"
	"github.com/hci/triagem/internal/triage"
)

func (s *Server) handleTriage(w http.ResponseWriter, r *http.Request) {
	var req models.TriageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	record, err := s.service.Triage(r.Context(), req.Symptoms)
	if err != nil {
		s.respondTriageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, record)
}

// respondTriageError maps pipeline failures to distinct user-facing errors
// so a down embedder and a down generator are diagnosable apart.
func (s *Server) respondTriageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, triage.ErrEmptySymptoms):
		s.respondError(w, http.StatusBadRequest, "symptoms are required")
	case errors.Is(err, embedding.ErrModelUnavailable):
		s.logger.Error("triage failed: embedding backend", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, "embedding model unavailable; triage cannot be grounded")
	case errors.Is(err, generation.ErrUnavailable):
		s.logger.Error("triage failed: generation backend", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, "generation service unavailable; please retry")
	default:
		s.logger.Error("triage failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req models.ValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reviewer == "" {
		s.respondError(w, http.StatusBadRequest, "reviewer is required")
		return
	}
	if err := s.review.Validate(r.Context(), id, req.Reviewer, req.Feedback); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondJSON(w, http.StatusNotFound, models.ValidationResponse{
				Success: false, Message: "record not found",
			})
			return
		}
		s.logger.Error("validation failed", zap.String("id", id), zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, models.ValidationResponse{
			Success: false, Message: err.Error(),
		})
		return
	}
	s.respondJSON(w, http.StatusOK, models.ValidationResponse{
		Success: true, Message: "record validated",
	})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	filter := models.RecordFilter(r.URL.Query().Get("filter"))
	switch filter {
	case "":
		filter = models.FilterAll
	case models.FilterAll, models.FilterPending, models.FilterValidated:
	default:
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown record filter: %q", filter))
		return
	}
	records, err := s.storage.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("record listing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*models.TriageRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, err := s.storage.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "record not found")
		return
	}
	s.respondJSON(w, http.StatusOK, record)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "record not found")
			return
		}
		s.logger.Error("record deletion failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSearchRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	hits, err := s.service.SearchRecords(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("record search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"hits": hits})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.storage.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
