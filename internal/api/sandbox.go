package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/textcast/internal/sandbox"
)

// SandboxClearResponse is the response for DELETE /sandbox
type SandboxClearResponse struct {
	Deleted int `json:"deleted"`
}

// handleListSandbox handles GET /api/v1/sandbox
func (s *Server) handleListSandbox(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := sandbox.ListFilter{DraftID: q.Get("draft_id")}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	captures, err := s.deps.Sandbox.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list sandbox payloads", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list sandbox payloads")
		return
	}
	s.sendJSON(w, http.StatusOK, captures)
}

// handleGetSandbox handles GET /api/v1/sandbox/{id}
func (s *Server) handleGetSandbox(w http.ResponseWriter, r *http.Request) {
	capture, err := s.deps.Sandbox.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get sandbox payload", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get sandbox payload")
		return
	}
	if capture == nil {
		s.sendError(w, http.StatusNotFound, "Sandbox payload not found")
		return
	}
	s.sendJSON(w, http.StatusOK, capture)
}

// handleSandboxStats handles GET /api/v1/sandbox/stats
func (s *Server) handleSandboxStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Sandbox.Stats(r.Context())
	if err != nil {
		s.logger.Error("failed to get sandbox stats", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get sandbox stats")
		return
	}
	s.sendJSON(w, http.StatusOK, stats)
}

// handleClearSandbox handles DELETE /api/v1/sandbox?older_than=24h
func (s *Server) handleClearSandbox(w http.ResponseWriter, r *http.Request) {
	var olderThan time.Duration
	if v := r.URL.Query().Get("older_than"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			s.sendError(w, http.StatusBadRequest, "Invalid older_than duration")
			return
		}
		olderThan = d
	}

	n, err := s.deps.Sandbox.Clear(r.Context(), olderThan)
	if err != nil {
		s.logger.Error("failed to clear sandbox", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to clear sandbox")
		return
	}
	s.logger.Info("sandbox cleared", "deleted", n, "actor", actorFrom(r.Context()))
	s.sendJSON(w, http.StatusOK, SandboxClearResponse{Deleted: n})
}
