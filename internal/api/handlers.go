package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/foxzi/textcast/internal/audience"
	"github.com/foxzi/textcast/internal/metrics"
	"github.com/foxzi/textcast/internal/phone"
	"github.com/foxzi/textcast/internal/segment"
	"github.com/foxzi/textcast/internal/template"
)

// maxJSONBody bounds JSON request bodies; imports have their own limit
const maxJSONBody = 1 << 20

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// NormalizeRequest is the request for POST /phone/normalize. Either Phone
// or Phones is set.
type NormalizeRequest struct {
	Phone  string   `json:"phone,omitempty"`
	Phones []string `json:"phones,omitempty"`
}

// NormalizeResponse carries one result per input
type NormalizeResponse struct {
	Results []phone.Result `json:"results"`
}

// EstimateRequest is the request for POST /estimate
type EstimateRequest struct {
	Text       string `json:"text"`
	Recipients int    `json:"recipients"`
	// Personalize estimates the sample-personalized text instead of the raw body
	Personalize bool `json:"personalize,omitempty"`
}

// EstimateResponse is the response for POST /estimate
type EstimateResponse struct {
	segment.Estimate
	Recipients int           `json:"recipients"`
	TotalCost  segment.Money `json:"total_cost"`
}

// PersonalizeRequest is the request for POST /personalize. Nil values use
// the sample record.
type PersonalizeRequest struct {
	Body   string           `json:"body"`
	Values *template.Values `json:"values,omitempty"`
}

// PersonalizeResponse is the response for POST /personalize
type PersonalizeResponse struct {
	Text          string           `json:"text"`
	Tokens        []string         `json:"tokens"`
	UnknownTokens []string         `json:"unknown_tokens"`
	Estimate      segment.Estimate `json:"estimate"`
}

// AudienceResponse is the response for POST /audience
type AudienceResponse struct {
	Rule       audience.Rule        `json:"rule"`
	Count      int                  `json:"count"`
	Recipients []audience.Recipient `json:"recipients"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.deps.Version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleNormalize handles POST /api/v1/phone/normalize
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	inputs := req.Phones
	if req.Phone != "" {
		inputs = append([]string{req.Phone}, inputs...)
	}
	if len(inputs) == 0 {
		s.sendError(w, http.StatusBadRequest, "phone or phones is required")
		return
	}

	results := make([]phone.Result, len(inputs))
	for i, raw := range inputs {
		results[i] = phone.Normalize(raw)
		metrics.IncPhoneNormalization(results[i].OK)
	}

	s.sendJSON(w, http.StatusOK, NormalizeResponse{Results: results})
}

// handleEstimate handles POST /api/v1/estimate
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Recipients < 0 {
		s.sendError(w, http.StatusBadRequest, "recipients must not be negative")
		return
	}

	text := req.Text
	if req.Personalize {
		text = s.deps.Engine.Preview(text)
	}
	est := s.deps.Estimator.Estimate(text)

	s.sendJSON(w, http.StatusOK, EstimateResponse{
		Estimate:   est,
		Recipients: req.Recipients,
		TotalCost:  est.Total(req.Recipients),
	})
}

// handlePersonalize handles POST /api/v1/personalize
func (s *Server) handlePersonalize(w http.ResponseWriter, r *http.Request) {
	var req PersonalizeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	values := template.SampleValues()
	if req.Values != nil {
		values = *req.Values
	}

	text := s.deps.Engine.Personalize(req.Body, values)
	all, unknown := s.deps.Engine.Tokens(req.Body)

	s.sendJSON(w, http.StatusOK, PersonalizeResponse{
		Text:          text,
		Tokens:        all,
		UnknownTokens: unknown,
		Estimate:      s.deps.Estimator.Estimate(text),
	})
}

// handleAudience handles POST /api/v1/audience
func (s *Server) handleAudience(w http.ResponseWriter, r *http.Request) {
	var rule audience.Rule
	if !s.decodeJSON(w, r, &rule) {
		return
	}

	aud, err := s.deps.Resolver.Resolve(r.Context(), rule)
	if err != nil {
		var ruleErr *audience.RuleError
		if errors.As(err, &ruleErr) {
			s.sendError(w, http.StatusUnprocessableEntity, ruleErr.Error())
			return
		}
		s.logger.Error("failed to resolve audience", "error", err)
		s.sendError(w, http.StatusServiceUnavailable, "Failed to resolve audience")
		return
	}

	s.sendJSON(w, http.StatusOK, AudienceResponse{
		Rule:       rule,
		Count:      aud.Count,
		Recipients: aud.Recipients,
	})
}

// decodeJSON decodes the request body into v, answering 400 on failure
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.sendError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}

func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
