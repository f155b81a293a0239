package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gitshopapp/sessionstore/internal/backend"
	"github.com/gitshopapp/sessionstore/internal/config"
	"github.com/gitshopapp/sessionstore/internal/handlers"
	"github.com/gitshopapp/sessionstore/internal/observability"
	"github.com/gitshopapp/sessionstore/internal/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{Port: "0", SessionAutoSave: true}

	store, err := session.New(backend.Instrument(backend.NewMemory(), metrics), session.DefaultConfig(), session.WithMetrics(metrics))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	h, err := handlers.New(handlers.Dependencies{Config: cfg, Store: store, Metrics: metrics, Logger: logger})
	if err != nil {
		t.Fatalf("failed to create handlers: %v", err)
	}
	srv, err := New(cfg, logger, h, registry)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func TestRouter_SessionRoutes(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers on session routes")
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != session.DefaultCookieName {
		t.Fatalf("expected session cookie, got %v", cookies)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/sessions/count", nil))
	if strings.TrimSpace(rec.Body.String()) != `{"count":1}` {
		t.Fatalf("unexpected count body: %s", rec.Body.String())
	}
}

func TestRouter_ClearRequiresSameOrigin(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "http://example.com/sessions", nil)
	req.Header.Set("Origin", "https://attacker.example")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "http://example.com/sessions", nil)
	req.Header.Set("Origin", "http://example.com")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "http://example.com/", nil))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	for _, name := range []string{"sessionstore_sessions_created_total", "sessionstore_http_requests_total"} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Fatalf("expected %s in metrics output", name)
		}
	}
}

func TestRouter_NotFound(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}
