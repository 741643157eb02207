package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/textcast/internal/segment"
	"github.com/foxzi/textcast/internal/template"
)

// TemplateRequest is the request body for creating or updating a template
type TemplateRequest struct {
	Name     string            `json:"name"`
	Category template.Category `json:"category"`
	Body     string            `json:"body"`
	IsPublic bool              `json:"is_public"`
}

// TemplatePreviewResponse is the response for POST /templates/{id}/preview
type TemplatePreviewResponse struct {
	Preview       string           `json:"preview"`
	UnknownTokens []string         `json:"unknown_tokens"`
	Estimate      segment.Estimate `json:"estimate"`
}

// handleListTemplates handles GET /api/v1/templates
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := template.ListFilter{
		Search:     q.Get("search"),
		Category:   template.Category(q.Get("category")),
		PublicOnly: queryBool(r, "public"),
	}
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

	templates, err := s.deps.Templates.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list templates", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}
	s.sendJSON(w, http.StatusOK, templates)
}

// handleTemplateStats handles GET /api/v1/templates/stats
func (s *Server) handleTemplateStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Templates.Stats(r.Context())
	if err != nil {
		s.logger.Error("failed to get template stats", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get template stats")
		return
	}
	s.sendJSON(w, http.StatusOK, stats)
}

// handleCreateTemplate handles POST /api/v1/templates
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	tmpl := &template.Template{
		Name:      req.Name,
		Category:  req.Category,
		Body:      req.Body,
		IsPublic:  req.IsPublic,
		CreatedBy: actorFrom(r.Context()),
	}
	if err := s.deps.Templates.Create(r.Context(), tmpl); err != nil {
		s.sendTemplateError(w, err)
		return
	}

	s.sendJSON(w, http.StatusCreated, tmpl)
}

// handleGetTemplate handles GET /api/v1/templates/{id}
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := s.loadTemplate(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	s.sendJSON(w, http.StatusOK, tmpl)
}

// handleUpdateTemplate handles PUT /api/v1/templates/{id}
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	tmpl := &template.Template{
		ID:       chi.URLParam(r, "id"),
		Name:     req.Name,
		Category: req.Category,
		Body:     req.Body,
		IsPublic: req.IsPublic,
	}
	if err := s.deps.Templates.Update(r.Context(), tmpl); err != nil {
		s.sendTemplateError(w, err)
		return
	}

	s.sendJSON(w, http.StatusOK, tmpl)
}

// handleDeleteTemplate handles DELETE /api/v1/templates/{id}
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Templates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.logger.Error("failed to delete template", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete template")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePreviewTemplate handles POST /api/v1/templates/{id}/preview
func (s *Server) handlePreviewTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := s.loadTemplate(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	preview := s.deps.Engine.Preview(tmpl.Body)
	_, unknown := s.deps.Engine.Tokens(tmpl.Body)

	s.sendJSON(w, http.StatusOK, TemplatePreviewResponse{
		Preview:       preview,
		UnknownTokens: unknown,
		Estimate:      s.deps.Estimator.Estimate(preview),
	})
}

// loadTemplate finds a template by ID, falling back to its name
func (s *Server) loadTemplate(w http.ResponseWriter, r *http.Request, ref string) (*template.Template, bool) {
	tmpl, err := s.deps.Templates.Get(r.Context(), ref)
	if err == nil && tmpl == nil {
		tmpl, err = s.deps.Templates.GetByName(r.Context(), ref)
	}
	if err != nil {
		s.logger.Error("failed to get template", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get template")
		return nil, false
	}
	if tmpl == nil {
		s.sendError(w, http.StatusNotFound, "Template not found")
		return nil, false
	}
	return tmpl, true
}

func (s *Server) sendTemplateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, template.ErrInvalid):
		s.sendError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, template.ErrDuplicateName):
		s.sendError(w, http.StatusConflict, err.Error())
	case errors.Is(err, template.ErrNotFound):
		s.sendError(w, http.StatusNotFound, "Template not found")
	default:
		s.logger.Error("template storage error", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to save template")
	}
}
