package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/gitshopapp/sessionstore/internal/logging"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const ctxKey contextKey = "session"

// WithHandle returns a context carrying h.
func WithHandle(ctx context.Context, h *Handle) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, h)
}

// FromContext returns the handle stored by Middleware, or nil.
func FromContext(ctx context.Context) *Handle {
	if ctx == nil {
		return nil
	}
	h, ok := ctx.Value(ctxKey).(*Handle)
	if !ok {
		return nil
	}
	return h
}

type middlewareOptions struct {
	autoSave bool
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareOptions)

// WithAutoSave persists the session after the wrapped handler returns.
func WithAutoSave() MiddlewareOption {
	return func(o *middlewareOptions) {
		o.autoSave = true
	}
}

// Middleware resolves the session named by the request cookie, writes the
// cookie when the identifier is new or was re-materialized, and exposes the
// handle through FromContext.
func Middleware(store *Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	var options middlewareOptions
	for _, opt := range opts {
		opt(&options)
	}
	cfg := store.Config()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var raw string
			if cookie, err := r.Cookie(cfg.CookieName); err == nil {
				raw = cookie.Value
			}

			handle, needsCookie, err := store.Resolve(ctx, raw)
			if err != nil {
				logger := logging.FromContext(ctx, store.logger)
				if errors.Is(err, ErrInvalidID) {
					logger.Warn("rejected malformed session cookie", "error", err)
					http.Error(w, "Invalid session", http.StatusBadRequest)
					return
				}
				logger.Error("failed to resolve session", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			// A client that sent an identifier keeps it, even when it was re-materialized.
			if needsCookie && raw == "" {
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    handle.ID().String(),
					Path:     cfg.CookiePath,
					HttpOnly: true,
					Secure:   cfg.SecureCookies,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx = WithHandle(ctx, handle)
			ctx = logging.With(ctx, store.logger, "session_id", handle.ID().String())
			logger := logging.FromContext(ctx, store.logger)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				err, ok := rec.(error)
				if !ok || !errors.Is(err, ErrInvariantViolation) {
					panic(rec)
				}
				logger.Error("session invariant violated", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r.WithContext(ctx))

			if options.autoSave {
				if err := store.Save(ctx, handle.ID()); err != nil {
					logger.Error("failed to persist session", "error", err)
				}
			}
		})
	}
}
