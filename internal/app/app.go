package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/textcast/internal/api"
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

// App is the main application
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *store.DB
	bolt          *bolt.DB
	contacts      *store.ContactRepository
	imports       *store.ImportRepository
	pipeline      *importer.Pipeline
	estimator     *segment.Estimator
	engine        *template.Engine
	resolver      *audience.Resolver
	composer      *campaign.Composer
	templates     *template.Storage
	drafts        *campaign.Storage
	sandbox       *sandbox.Storage
	sender        campaign.Sender
	rateLimiter   *ratelimit.Limiter
	apiServer     *api.Server
	metricsServer *metrics.Server
}

// New wires every component from configuration
func New(cfg *config.Config, version string) (*App, error) {
	logger := SetupLogger(cfg.Logging)

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open contact database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate contact database: %w", err)
	}

	bdb, err := bolt.Open(cfg.Storage.BoltPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	a := &App{
		config: cfg,
		logger: logger,
		db:     db,
		bolt:   bdb,
	}
	if err := a.build(version); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(version string) error {
	cfg := a.config
	logger := a.logger

	a.contacts = store.NewContactRepository(a.db.DB)
	a.imports = store.NewImportRepository(a.db.DB)

	a.pipeline = importer.NewPipeline(a.contacts, importer.Limits{
		MaxRows:     cfg.Import.MaxRows,
		MaxBytes:    cfg.Import.MaxBytes,
		ErrorSample: cfg.Import.ErrorSample,
	}, logger.With("component", "importer"))
	a.pipeline.SetRecorder(a.imports)

	a.estimator = segment.NewEstimator(cfg.Pricing.SegmentSize, segment.MoneyFromFloat(cfg.Pricing.SegmentPrice))
	a.engine = template.NewEngine(cfg.Campaign.OptOutText)
	a.resolver = audience.NewResolver(a.contacts, logger.With("component", "audience"))
	a.composer = campaign.NewComposer(a.estimator, a.engine, a.resolver, campaign.Options{
		BlockOverLimit: cfg.Campaign.BlockOverLimit,
		LinkBase:       cfg.Campaign.LinkBase,
	}, logger.With("component", "composer"))

	var err error
	if a.templates, err = template.NewStorage(a.bolt); err != nil {
		return fmt.Errorf("failed to create template storage: %w", err)
	}
	if a.drafts, err = campaign.NewStorage(a.bolt); err != nil {
		return fmt.Errorf("failed to create draft storage: %w", err)
	}

	if cfg.Sandbox.Enabled {
		if a.sandbox, err = sandbox.NewStorage(a.bolt); err != nil {
			return fmt.Errorf("failed to create sandbox storage: %w", err)
		}
		sender := sandbox.NewSender(a.sandbox, logger.With("component", "sandbox"))
		if cfg.Sandbox.SimulateErrors {
			sender.SetErrorSimulation(true, cfg.Sandbox.ErrorProbability)
		}
		a.sender = sender
		logger.Info("sandbox enabled, submitted payloads are captured")
	}

	if cfg.RateLimit.Enabled {
		rlConfig := &ratelimit.Config{
			Global: limitConfig(cfg.RateLimit.Global),
			Actor:  limitConfig(cfg.RateLimit.Actor),
		}
		if a.rateLimiter, err = ratelimit.NewLimiter(a.bolt, rlConfig); err != nil {
			return fmt.Errorf("failed to create rate limiter: %w", err)
		}
		logger.Info("submission rate limiting enabled")
	}

	if cfg.Metrics.Enabled {
		m := metrics.New()
		metrics.SetGlobal(m)
		a.metricsServer = metrics.NewServer(m, cfg.Metrics.ListenAddr, cfg.Metrics.Path,
			cfg.Metrics.AllowedIPs, logger.With("component", "metrics"))
	}

	deps := api.Deps{
		Contacts:  a.contacts,
		Imports:   a.imports,
		Pipeline:  a.pipeline,
		Resolver:  a.resolver,
		Composer:  a.composer,
		Estimator: a.estimator,
		Engine:    a.engine,
		Templates: a.templates,
		Drafts:    a.drafts,
		Sender:    a.sender,
		Quota:     a.rateLimiter,
		Sandbox:   a.sandbox,
		Version:   version,
	}
	a.apiServer = api.NewServer(cfg.Server, deps, logger.With("component", "api"))

	return nil
}

// Logger returns the application logger
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Pipeline returns the contact import pipeline
func (a *App) Pipeline() *importer.Pipeline {
	return a.pipeline
}

// Contacts returns the contact repository
func (a *App) Contacts() *store.ContactRepository {
	return a.contacts
}

// Run starts the servers and waits for shutdown
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting textcast",
		"api_addr", a.config.Server.ListenAddr,
		"metrics_enabled", a.config.Metrics.Enabled,
		"sandbox_enabled", a.config.Sandbox.Enabled,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("server error", "error", runErr)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		return err
	}
	return runErr
}

// Shutdown gracefully shuts down all components
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown error", "error", err)
		}
	}

	a.close()
	a.logger.Info("shutdown complete")
	return nil
}

// Close releases the databases without starting any server
func (a *App) Close() {
	a.close()
}

func (a *App) close() {
	// Quota counters are flushed into bolt, so stop the limiter first
	if a.rateLimiter != nil {
		if err := a.rateLimiter.Stop(); err != nil {
			a.logger.Error("rate limiter stop error", "error", err)
		}
		a.rateLimiter = nil
	}
	if a.bolt != nil {
		if err := a.bolt.Close(); err != nil {
			a.logger.Error("bolt close error", "error", err)
		}
		a.bolt = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("database close error", "error", err)
		}
		a.db = nil
	}
}

func limitConfig(l *config.LimitConfig) *ratelimit.LimitConfig {
	if l == nil {
		return nil
	}
	return &ratelimit.LimitConfig{
		MessagesPerHour: l.MessagesPerHour,
		MessagesPerDay:  l.MessagesPerDay,
	}
}

// SetupLogger creates a logger based on configuration
func SetupLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLogLevel(cfg.Level),
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// ParseLogLevel maps a config level name to a slog level, defaulting to info
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
