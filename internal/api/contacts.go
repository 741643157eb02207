package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/textcast/internal/models"
	"github.com/foxzi/textcast/internal/phone"
	"github.com/foxzi/textcast/internal/store"
)

// ContactRequest is the request body for creating or replacing a contact
type ContactRequest struct {
	Phone     string               `json:"phone"`
	FirstName string               `json:"first_name"`
	LastName  string               `json:"last_name"`
	Email     string               `json:"email"`
	Company   string               `json:"company"`
	Status    models.ContactStatus `json:"status"`
	Tags      []string             `json:"tags"`
}

// ContactListResponse is the response for GET /contacts
type ContactListResponse struct {
	Contacts []models.Contact `json:"contacts"`
	Total    int              `json:"total"`
}

// handleListContacts handles GET /api/v1/contacts
func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ContactFilter{
		Status: models.ContactStatus(q.Get("status")),
		Region: phone.NormalizeRegion(q.Get("region")),
		Tag:    q.Get("tag"),
		Search: q.Get("search"),
		Limit:  100,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		s.sendError(w, http.StatusBadRequest, "status must be active or inactive")
		return
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	contacts, total, err := s.deps.Contacts.ListContacts(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list contacts", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list contacts")
		return
	}

	s.sendJSON(w, http.StatusOK, ContactListResponse{Contacts: contacts, Total: total})
}

// handleGetContact handles GET /api/v1/contacts/{id}
func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Contacts.GetContact(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get contact", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get contact")
		return
	}
	if c == nil {
		s.sendError(w, http.StatusNotFound, "Contact not found")
		return
	}
	s.sendJSON(w, http.StatusOK, c)
}

// handleCreateContact handles POST /api/v1/contacts
func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	c := &models.Contact{}
	if msg := applyContactRequest(c, req); msg != "" {
		s.sendError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	err := s.deps.Contacts.CreateContact(r.Context(), actorFrom(r.Context()), c)
	if errors.Is(err, store.ErrDuplicatePhone) {
		s.sendError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("failed to create contact", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to create contact")
		return
	}

	s.sendJSON(w, http.StatusCreated, c)
}

// handleUpdateContact handles PUT /api/v1/contacts/{id}
func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ContactRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	c, err := s.deps.Contacts.GetContact(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get contact", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get contact")
		return
	}
	if c == nil {
		s.sendError(w, http.StatusNotFound, "Contact not found")
		return
	}

	if msg := applyContactRequest(c, req); msg != "" {
		s.sendError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	err = s.deps.Contacts.UpdateContact(ctx, actorFrom(ctx), c)
	switch {
	case errors.Is(err, store.ErrDuplicatePhone):
		s.sendError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, store.ErrNotFound):
		s.sendError(w, http.StatusNotFound, "Contact not found")
		return
	case err != nil:
		s.logger.Error("failed to update contact", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update contact")
		return
	}

	s.sendJSON(w, http.StatusOK, c)
}

// handleDeleteContact handles DELETE /api/v1/contacts/{id}
func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := s.deps.Contacts.DeleteContact(ctx, actorFrom(ctx), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "Contact not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete contact", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete contact")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRegions handles GET /api/v1/contacts/regions
func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.deps.Contacts.Regions(r.Context())
	if err != nil {
		s.logger.Error("failed to count regions", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to count regions")
		return
	}
	s.sendJSON(w, http.StatusOK, regions)
}

// applyContactRequest copies req into c, normalizing the phone. It returns
// a user-facing message when req is invalid.
func applyContactRequest(c *models.Contact, req ContactRequest) string {
	n, err := phone.Parse(req.Phone)
	if err != nil {
		return err.Error()
	}

	status := req.Status
	if status == "" {
		status = models.StatusActive
	}
	if !status.Valid() {
		return "status must be active or inactive"
	}

	c.Phone = n.Formatted
	c.Region = n.Region
	c.FirstName = strings.TrimSpace(req.FirstName)
	c.LastName = strings.TrimSpace(req.LastName)
	c.Email = strings.TrimSpace(req.Email)
	c.Company = strings.TrimSpace(req.Company)
	c.Status = status
	c.Tags = req.Tags
	return ""
}
