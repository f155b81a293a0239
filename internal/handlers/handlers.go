package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gitshopapp/sessionstore/internal/config"
	"github.com/gitshopapp/sessionstore/internal/logging"
	"github.com/gitshopapp/sessionstore/internal/observability"
	"github.com/gitshopapp/sessionstore/internal/session"
)

// Handlers provides the HTTP handlers of the session demo service.
type Handlers struct {
	config  *config.Config
	store   *session.Store
	metrics *observability.Metrics
	logger  *slog.Logger
}

type Dependencies struct {
	Config  *config.Config
	Store   *session.Store
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("handlers dependencies: store is required")
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}

	return &Handlers{
		config:  deps.Config,
		store:   deps.Store,
		metrics: metrics,
		logger:  logging.Ensure(deps.Logger).With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.store.Backend().Ping(ctx); err != nil {
		logger.Error("session backend health check failed", "error", err)
		http.Error(w, "Session backend unhealthy", http.StatusServiceUnavailable)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "healthy",
		"dialect": h.store.Backend().Dialect(),
		"cached":  h.store.Len(),
	})
}

// SessionMiddleware resolves the request session and persists it afterwards
// when auto-save is enabled.
func (h *Handlers) SessionMiddleware(next http.Handler) http.Handler {
	var opts []session.MiddlewareOption
	if h.config.SessionAutoSave {
		opts = append(opts, session.WithAutoSave())
	}
	return session.Middleware(h.store, opts...)(next)
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.loggerFromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}
