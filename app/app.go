package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gitshopapp/sessionstore/internal/backend"
	"github.com/gitshopapp/sessionstore/internal/config"
	"github.com/gitshopapp/sessionstore/internal/handlers"
	"github.com/gitshopapp/sessionstore/internal/logging"
	"github.com/gitshopapp/sessionstore/internal/observability"
	"github.com/gitshopapp/sessionstore/internal/session"
)

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Backend  backend.Backend
	Store    *session.Store
	Handlers *handlers.Handlers

	logCloser       io.Closer
	shutdownTracing func(context.Context) error
}

// New loads configuration and wires the session store and its HTTP surface.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg *config.Config) (*App, error) {
	logger, logCloser, err := logging.New(os.Stdout, cfg.Logging())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &App{Config: cfg, Logger: logger, logCloser: logCloser}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()
	startupCtx = logging.WithLogger(startupCtx, logger)

	a.shutdownTracing, err = observability.SetupTracing(startupCtx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = observability.NewMetrics(a.Registry)

	raw, err := backend.Open(startupCtx, cfg.Backend(), logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open session backend: %w", err)
	}
	a.Backend = backend.Instrument(raw, a.Metrics)

	a.Store, err = session.New(a.Backend, cfg.Session(),
		session.WithLogger(logger),
		session.WithMetrics(a.Metrics),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	if err := a.Store.Migrate(startupCtx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to migrate session table: %w", err)
	}
	logger.Info("session store ready",
		"dialect", a.Backend.Dialect(),
		"table", cfg.SessionTableName,
		"lifespan", cfg.SessionLifespan,
		"memory_lifespan", cfg.SessionMemoryLifespan,
		"concurrent_loads", cfg.SessionConcurrentLoads,
	)

	a.Handlers, err = handlers.New(handlers.Dependencies{
		Config:  cfg,
		Store:   a.Store,
		Metrics: a.Metrics,
		Logger:  logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return a, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Backend != nil {
		if err := a.Backend.Close(); err != nil {
			a.Logger.Warn("failed to close session backend", "error", err)
		}
	}
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdownTracing(ctx); err != nil {
			a.Logger.Warn("failed to flush traces", "error", err)
		}
		cancel()
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}
