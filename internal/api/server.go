package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/foxzi/textcast/internal/audience"
	"github.com/foxzi/textcast/internal/campaign"
	"github.com/foxzi/textcast/internal/config"
	"github.com/foxzi/textcast/internal/importer"
	"github.com/foxzi/textcast/internal/metrics"
	"github.com/foxzi/textcast/internal/ratelimit"
	"github.com/foxzi/textcast/internal/sandbox"
	"github.com/foxzi/textcast/internal/segment"
	"github.com/foxzi/textcast/internal/store"
	"github.com/foxzi/textcast/internal/template"
)

// DraftStore persists drafts. Submit and Reopen are compare-and-set state
// changes on the stored copy.
type DraftStore interface {
	Create(ctx context.Context, actor string, d *campaign.Draft) error
	Get(ctx context.Context, id string) (*campaign.Draft, error)
	Update(ctx context.Context, d *campaign.Draft) error
	List(ctx context.Context, state campaign.State) ([]*campaign.Draft, error)
	Delete(ctx context.Context, id string) error
	Submit(ctx context.Context, d *campaign.Draft, now time.Time) (*campaign.Draft, error)
	Reopen(ctx context.Context, id string) (*campaign.Draft, error)
}

// Deps are the components served by the API
type Deps struct {
	Contacts  *store.ContactRepository
	Imports   *store.ImportRepository
	Pipeline  *importer.Pipeline
	Resolver  *audience.Resolver
	Composer  *campaign.Composer
	Estimator *segment.Estimator
	Engine    *template.Engine
	Templates *template.Storage
	Drafts    DraftStore
	// Sender is optional; without it submitted payloads are only returned
	Sender campaign.Sender
	// Quota, when set, caps messages handed off per hour and day
	Quota *ratelimit.Limiter
	// Sandbox, when set, exposes payloads captured by the sandbox sender
	Sandbox *sandbox.Storage
	Version string
}

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	config     config.ServerConfig
	deps       Deps
	logger     *slog.Logger
	startTime  time.Time
	now        func() time.Time
	// verifiedKeys caches API keys that matched the bcrypt hash
	verifiedKeys sync.Map
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		deps:      deps,
		logger:    logger,
		startTime: time.Now(),
		now:       time.Now,
	}

	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(metrics.HTTPMiddleware)
	s.router.Use(middleware.Recoverer)

	// Health check (no auth required)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(actorMiddleware)

		r.Post("/phone/normalize", s.handleNormalize)
		r.Post("/estimate", s.handleEstimate)
		r.Post("/personalize", s.handlePersonalize)
		r.Post("/audience", s.handleAudience)
		r.Get("/quota", s.handleQuota)

		r.Route("/imports", func(r chi.Router) {
			r.Get("/", s.handleListImports)
			r.Post("/", s.handleImport)
		})

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", s.handleListContacts)
			r.Post("/", s.handleCreateContact)
			r.Get("/regions", s.handleRegions)
			r.Get("/{id}", s.handleGetContact)
			r.Put("/{id}", s.handleUpdateContact)
			r.Delete("/{id}", s.handleDeleteContact)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)
			r.Get("/stats", s.handleTemplateStats)
			r.Get("/{id}", s.handleGetTemplate)
			r.Put("/{id}", s.handleUpdateTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
			r.Post("/{id}/preview", s.handlePreviewTemplate)
		})

		r.Route("/drafts", func(r chi.Router) {
			r.Get("/", s.handleListDrafts)
			r.Post("/", s.handleCreateDraft)
			r.Get("/{id}", s.handleGetDraft)
			r.Put("/{id}", s.handleUpdateDraft)
			r.Delete("/{id}", s.handleDeleteDraft)
			r.Post("/{id}/validate", s.handleValidateDraft)
			r.Post("/{id}/submit", s.handleSubmitDraft)
			r.Post("/{id}/template/{templateID}", s.handleApplyTemplate)
		})

		if s.deps.Sandbox != nil {
			r.Route("/sandbox", func(r chi.Router) {
				r.Get("/", s.handleListSandbox)
				r.Get("/stats", s.handleSandboxStats)
				r.Get("/{id}", s.handleGetSandbox)
				r.Delete("/", s.handleClearSandbox)
			})
		}
	})
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
