package handlers

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gitshopapp/sessionstore/internal/config"
)

// SecurityHeaders sets baseline security headers for all responses.
func (h *Handlers) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		headers.Set("Cross-Origin-Opener-Policy", "same-origin")
		headers.Set("Cross-Origin-Resource-Policy", "same-origin")

		next.ServeHTTP(w, r)
	})
}

// Reasons recorded by RequireSameOrigin.
const (
	originMatched           = "matched"
	originMissing           = "missing_origin_and_referer"
	originInvalidOrigin     = "invalid_origin"
	originInvalidReferer    = "invalid_referer"
	sameOriginResultAllowed = "allowed"
	sameOriginResultBlocked = "blocked"
)

// RequireSameOrigin rejects state-changing requests whose Origin or Referer
// names a host other than the request host or BASE_URL.
func (h *Handlers) RequireSameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requestMutatesState(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		reason, header, err := h.checkSameOrigin(r)
		if reason != originMatched {
			h.recordSameOrigin(sameOriginResultBlocked, reason)
			h.loggerFromContext(r.Context()).Warn("blocked cross-origin session request",
				"method", r.Method,
				"path", r.URL.Path,
				"reason", reason,
				"header", header,
				"error", err,
			)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		h.recordSameOrigin(sameOriginResultAllowed, reason)
		next.ServeHTTP(w, r)
	})
}

// checkSameOrigin returns the outcome reason and, when blocked, the offending
// header value.
func (h *Handlers) checkSameOrigin(r *http.Request) (string, string, error) {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	referer := strings.TrimSpace(r.Header.Get("Referer"))
	if origin == "" && referer == "" {
		return originMissing, "", nil
	}

	allowed := allowedRequestHosts(h.config, r)
	if origin != "" {
		if ok, err := headerMatchesAllowedHost(origin, allowed); err != nil || !ok {
			return originInvalidOrigin, origin, err
		}
	}
	if referer != "" {
		if ok, err := headerMatchesAllowedHost(referer, allowed); err != nil || !ok {
			return originInvalidReferer, referer, err
		}
	}
	return originMatched, "", nil
}

func (h *Handlers) recordSameOrigin(result, reason string) {
	if h.metrics == nil {
		return
	}
	h.metrics.SameOriginChecks.WithLabelValues(result, reason).Inc()
}

func requestMutatesState(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func headerMatchesAllowedHost(value string, allowed map[string]struct{}) (bool, error) {
	parsed, err := url.Parse(value)
	if err != nil {
		return false, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsed.Host == "" {
		return false, fmt.Errorf("missing host")
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false, fmt.Errorf("missing hostname")
	}

	_, ok := allowed[host]
	return ok, nil
}

func allowedRequestHosts(cfg *config.Config, r *http.Request) map[string]struct{} {
	hosts := map[string]struct{}{}

	if r != nil {
		if host := normalizeHost(r.Host); host != "" {
			hosts[host] = struct{}{}
		}
	}

	if cfg != nil {
		if host := hostFromBaseURL(cfg.BaseURL); host != "" {
			hosts[host] = struct{}{}
		}
	}

	return hosts
}

func normalizeHost(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}

	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.ToLower(strings.TrimSpace(host))
	}
	return strings.ToLower(hostport)
}

func hostFromBaseURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
