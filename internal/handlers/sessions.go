package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gitshopapp/sessionstore/internal/session"
)

const visitsKey = "visits"

type sessionResponse struct {
	ID   string                     `json:"id"`
	Data map[string]json.RawMessage `json:"data"`
}

// Visits counts requests made with the current session.
func (h *Handlers) Visits(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFromRequest(w, r)
	if sess == nil {
		return
	}

	visits := session.Update(sess, visitsKey, func(n int, _ bool) int {
		return n + 1
	})

	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"session_id": sess.ID().String(),
		"visits":     visits,
	})
}

// Session returns every value stored in the current session.
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFromRequest(w, r)
	if sess == nil {
		return
	}

	resp := sessionResponse{
		ID:   sess.ID().String(),
		Data: make(map[string]json.RawMessage),
	}
	for _, key := range sess.Keys() {
		var raw json.RawMessage
		if sess.Get(key, &raw) {
			resp.Data[key] = raw
		}
	}

	h.writeJSON(w, r, http.StatusOK, resp)
}

// DestroySession marks the current session for reset on its next use.
func (h *Handlers) DestroySession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFromRequest(w, r)
	if sess == nil {
		return
	}

	sess.Destroy()
	h.loggerFromContext(r.Context()).Info("session destroyed")
	w.WriteHeader(http.StatusNoContent)
}

// CountSessions reports the number of persisted sessions.
func (h *Handlers) CountSessions(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.Count(r.Context())
	if err != nil {
		h.loggerFromContext(r.Context()).Error("failed to count sessions", "error", err)
		http.Error(w, "Failed to count sessions", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]int64{"count": count})
}

// ClearSessions empties the current session and deletes every persisted one.
func (h *Handlers) ClearSessions(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFromRequest(w, r)
	if sess == nil {
		return
	}

	logger := h.loggerFromContext(r.Context())
	if err := sess.ClearAll(r.Context()); err != nil {
		logger.Error("failed to clear sessions", "error", err)
		http.Error(w, "Failed to clear sessions", http.StatusInternalServerError)
		return
	}

	logger.Warn("all persisted sessions cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) sessionFromRequest(w http.ResponseWriter, r *http.Request) *session.Handle {
	sess := session.FromContext(r.Context())
	if sess == nil {
		h.loggerFromContext(r.Context()).Error("session middleware not installed", "path", r.URL.Path)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return sess
}
