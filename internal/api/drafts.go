package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/textcast/internal/audience"
	"github.com/foxzi/textcast/internal/campaign"
	"github.com/foxzi/textcast/internal/segment"
)

// DraftRequest is the request body for POST /drafts
type DraftRequest struct {
	Name       string            `json:"name"`
	Body       string            `json:"body"`
	Targeting  audience.Rule     `json:"targeting"`
	Schedule   campaign.Schedule `json:"schedule"`
	TemplateID string            `json:"template_id,omitempty"`
}

// DraftResponse pairs a draft with its freshly computed derived fields
type DraftResponse struct {
	Draft       *campaign.Draft       `json:"draft"`
	Composition *campaign.Composition `json:"composition,omitempty"`
}

// DraftValidationResponse is returned with 422 for an invalid draft
type DraftValidationResponse struct {
	Error       string                `json:"error"`
	Problems    []campaign.Problem    `json:"problems"`
	Draft       *campaign.Draft       `json:"draft"`
	Composition *campaign.Composition `json:"composition,omitempty"`
}

// SubmitResponse is the response for POST /drafts/{id}/submit
type SubmitResponse struct {
	Draft         *campaign.Draft   `json:"draft"`
	Messages      int               `json:"messages"`
	TotalSegments int               `json:"total_segments"`
	TotalCost     segment.Money     `json:"total_cost"`
	Receipt       *campaign.Receipt `json:"receipt,omitempty"`
}

// handleListDrafts handles GET /api/v1/drafts
func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.deps.Drafts.List(r.Context(), campaign.State(r.URL.Query().Get("state")))
	if err != nil {
		s.logger.Error("failed to list drafts", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list drafts")
		return
	}
	s.sendJSON(w, http.StatusOK, drafts)
}

// handleCreateDraft handles POST /api/v1/drafts
func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req DraftRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Targeting.Kind == "" {
		req.Targeting = audience.AllContacts()
	}

	d := campaign.NewDraft(req.Name, req.Body, req.Targeting, req.Schedule)
	if req.TemplateID != "" {
		tmpl, ok := s.loadTemplate(w, r, req.TemplateID)
		if !ok {
			return
		}
		if err := d.ApplyTemplate(tmpl); err != nil {
			s.sendError(w, http.StatusConflict, err.Error())
			return
		}
	}

	if err := s.deps.Drafts.Create(ctx, actorFrom(ctx), d); err != nil {
		s.logger.Error("failed to create draft", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to create draft")
		return
	}

	s.sendDraft(w, r, http.StatusCreated, d)
}

// handleGetDraft handles GET /api/v1/drafts/{id}
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := s.loadDraft(w, r)
	if !ok {
		return
	}
	s.sendDraft(w, r, http.StatusOK, d)
}

// handleUpdateDraft handles PUT /api/v1/drafts/{id}
func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var changes campaign.Changes
	if !s.decodeJSON(w, r, &changes) {
		return
	}

	d, ok := s.loadDraft(w, r)
	if !ok {
		return
	}
	if err := d.Edit(changes); err != nil {
		s.sendError(w, http.StatusConflict, err.Error())
		return
	}
	if !s.saveDraft(w, r, d) {
		return
	}

	s.sendDraft(w, r, http.StatusOK, d)
}

// handleDeleteDraft handles DELETE /api/v1/drafts/{id}
func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Drafts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.logger.Error("failed to delete draft", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete draft")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleApplyTemplate handles POST /api/v1/drafts/{id}/template/{templateID}
func (s *Server) handleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	d, ok := s.loadDraft(w, r)
	if !ok {
		return
	}
	tmpl, ok := s.loadTemplate(w, r, chi.URLParam(r, "templateID"))
	if !ok {
		return
	}

	if err := d.ApplyTemplate(tmpl); err != nil {
		s.sendError(w, http.StatusConflict, err.Error())
		return
	}
	if !s.saveDraft(w, r, d) {
		return
	}

	s.sendDraft(w, r, http.StatusOK, d)
}

// handleValidateDraft handles POST /api/v1/drafts/{id}/validate
func (s *Server) handleValidateDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := s.loadDraft(w, r)
	if !ok {
		return
	}

	comp, ok := s.validateDraft(w, r, d)
	if !ok {
		return
	}
	s.sendJSON(w, http.StatusOK, DraftResponse{Draft: d, Composition: comp})
}

// handleSubmitDraft handles POST /api/v1/drafts/{id}/submit. The draft is
// re-validated against the current contact set before the payload is built,
// and marked submitted before the hand-off so a second caller cannot send it
// again. A failed hand-off reopens the draft and refunds the quota.
func (s *Server) handleSubmitDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	d, ok := s.loadDraft(w, r)
	if !ok {
		return
	}
	if d.State == campaign.StateSubmitted {
		s.sendError(w, http.StatusConflict, "Draft already submitted")
		return
	}

	if _, ok := s.validateDraft(w, r, d); !ok {
		return
	}

	payload, err := s.deps.Composer.Prepare(ctx, d)
	if err != nil {
		s.logger.Error("failed to prepare payload", "draft_id", d.ID, "error", err)
		s.sendError(w, http.StatusServiceUnavailable, "Failed to prepare payload")
		return
	}
	n := len(payload.Messages)

	if !s.reserveQuota(w, r, n) {
		return
	}

	submitted, err := s.deps.Drafts.Submit(ctx, d, s.now())
	if err != nil {
		s.releaseQuota(ctx, n)
		if errors.Is(err, campaign.ErrInvalidTransition) {
			s.sendError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("failed to mark draft submitted", "draft_id", d.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to save draft")
		return
	}

	resp := SubmitResponse{
		Draft:         submitted,
		Messages:      n,
		TotalSegments: payload.TotalSegments,
		TotalCost:     payload.TotalCost,
	}

	if s.deps.Sender != nil {
		receipt, err := s.deps.Sender.Send(ctx, payload)
		if err != nil {
			s.logger.Error("failed to hand off payload", "draft_id", d.ID, "error", err)
			s.rollbackSubmit(ctx, d.ID, n)
			s.sendError(w, http.StatusBadGateway, "Failed to hand off payload")
			return
		}
		resp.Receipt = receipt
	}

	s.logger.Info("draft submitted",
		"draft_id", d.ID,
		"actor", actorFrom(ctx),
		"messages", resp.Messages,
		"total_cost", resp.TotalCost.String(),
	)
	s.sendJSON(w, http.StatusOK, resp)
}

// rollbackSubmit undoes the submit bookkeeping after a failed hand-off
func (s *Server) rollbackSubmit(ctx context.Context, id string, n int) {
	ctx = context.WithoutCancel(ctx)

	s.releaseQuota(ctx, n)
	if _, err := s.deps.Drafts.Reopen(ctx, id); err != nil {
		s.logger.Error("failed to reopen draft", "draft_id", id, "error", err)
	}
}

// validateDraft runs validation and persists the resulting state. It writes
// the response itself unless the draft is valid.
func (s *Server) validateDraft(w http.ResponseWriter, r *http.Request, d *campaign.Draft) (*campaign.Composition, bool) {
	comp, err := s.deps.Composer.Validate(r.Context(), d, s.now())

	var verr *campaign.ValidationError
	switch {
	case errors.As(err, &verr):
		if !s.saveDraft(w, r, d) {
			return nil, false
		}
		s.sendJSON(w, http.StatusUnprocessableEntity, DraftValidationResponse{
			Error:       verr.Error(),
			Problems:    verr.Problems,
			Draft:       d,
			Composition: comp,
		})
		return nil, false
	case errors.Is(err, campaign.ErrInvalidTransition):
		s.sendError(w, http.StatusConflict, err.Error())
		return nil, false
	case err != nil:
		s.logger.Error("failed to validate draft", "draft_id", d.ID, "error", err)
		s.sendError(w, http.StatusServiceUnavailable, "Failed to validate draft")
		return nil, false
	}

	if !s.saveDraft(w, r, d) {
		return nil, false
	}
	return comp, true
}

func (s *Server) loadDraft(w http.ResponseWriter, r *http.Request) (*campaign.Draft, bool) {
	d, err := s.deps.Drafts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get draft", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get draft")
		return nil, false
	}
	if d == nil {
		s.sendError(w, http.StatusNotFound, "Draft not found")
		return nil, false
	}
	return d, true
}

func (s *Server) saveDraft(w http.ResponseWriter, r *http.Request, d *campaign.Draft) bool {
	err := s.deps.Drafts.Update(r.Context(), d)
	if errors.Is(err, campaign.ErrInvalidTransition) {
		s.sendError(w, http.StatusConflict, err.Error())
		return false
	}
	if err != nil {
		s.logger.Error("failed to save draft", "draft_id", d.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to save draft")
		return false
	}
	return true
}

// sendDraft answers with the draft and a composition computed now
func (s *Server) sendDraft(w http.ResponseWriter, r *http.Request, status int, d *campaign.Draft) {
	comp, err := s.deps.Composer.Compose(r.Context(), d)
	if err != nil {
		s.logger.Error("failed to compose draft", "draft_id", d.ID, "error", err)
		s.sendError(w, http.StatusServiceUnavailable, "Failed to compose draft")
		return
	}
	s.sendJSON(w, status, DraftResponse{Draft: d, Composition: comp})
}
