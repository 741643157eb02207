package api

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/foxzi/textcast/internal/metrics"
	"github.com/foxzi/textcast/internal/ratelimit"
)

// releaseQuota refunds messages charged by reserveQuota for the caller in ctx
func (s *Server) releaseQuota(ctx context.Context, n int) {
	if s.deps.Quota == nil {
		return
	}
	err := s.deps.Quota.Release(ctx, &ratelimit.Request{Actor: actorFrom(ctx), Messages: n})
	if err != nil {
		s.logger.Error("failed to release quota", "messages", n, "error", err)
	}
}

// QuotaExceededResponse is returned with 429 when a submission would exceed a quota
type QuotaExceededResponse struct {
	Error      string          `json:"error"`
	DeniedBy   ratelimit.Level `json:"denied_by"`
	Remaining  int             `json:"remaining"`
	RetryAfter int             `json:"retry_after_seconds"`
}

// QuotaResponse is the response for GET /quota
type QuotaResponse struct {
	Enabled bool             `json:"enabled"`
	Global  *ratelimit.Stats `json:"global,omitempty"`
	Actor   *ratelimit.Stats `json:"actor,omitempty"`
}

// reserveQuota charges n messages to the caller's quota. It writes the
// response itself when the quota is exhausted.
func (s *Server) reserveQuota(w http.ResponseWriter, r *http.Request, n int) bool {
	if s.deps.Quota == nil {
		return true
	}

	res, err := s.deps.Quota.Allow(r.Context(), &ratelimit.Request{
		Actor:    actorFrom(r.Context()),
		Messages: n,
	})
	if err != nil {
		s.logger.Error("failed to check quota", "error", err)
		s.sendError(w, http.StatusServiceUnavailable, "Failed to check quota")
		return false
	}
	if res.Allowed {
		return true
	}

	retry := int(math.Ceil(res.RetryAfter.Seconds()))
	metrics.IncAPIErrors("quota_exceeded")
	s.logger.Warn("submission quota exceeded",
		"actor", actorFrom(r.Context()),
		"denied_by", res.DeniedBy,
		"messages", n,
		"remaining", res.Remaining,
	)
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	s.sendJSON(w, http.StatusTooManyRequests, QuotaExceededResponse{
		Error:      "Message quota exceeded",
		DeniedBy:   res.DeniedBy,
		Remaining:  res.Remaining,
		RetryAfter: retry,
	})
	return false
}

// handleQuota handles GET /api/v1/quota
func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	if s.deps.Quota == nil {
		s.sendJSON(w, http.StatusOK, QuotaResponse{Enabled: false})
		return
	}

	ctx := r.Context()
	global, err := s.deps.Quota.GetStats(ctx, ratelimit.LevelGlobal, "global")
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to get quota")
		return
	}
	actor, err := s.deps.Quota.GetStats(ctx, ratelimit.LevelActor, actorFrom(ctx))
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to get quota")
		return
	}
	s.sendJSON(w, http.StatusOK, QuotaResponse{Enabled: true, Global: global, Actor: actor})
}
