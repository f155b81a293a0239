package session

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
)

// Handle is the per-request view of one cached session. It holds only the
// identifier; every operation looks the record up under the store's shared
// lock and the record's own mutex.
//
// Operations panic with *InvariantError when the record is no longer in
// memory. Middleware turns that into a 500 response.
type Handle struct {
	store *Store
	id    ID
}

// ID returns the session identifier.
func (h *Handle) ID() ID {
	return h.id
}

func (h *Handle) with(fn func(r *Record)) {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	e, ok := h.store.sessions[h.id.String()]
	if !ok {
		panic(&InvariantError{ID: h.id.String()})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.record)
}

// Get decodes the value stored under key into out. It reports false when the
// key is absent or its value does not decode into out.
func (h *Handle) Get(key string, out any) bool {
	var (
		raw string
		ok  bool
	)
	h.with(func(r *Record) {
		raw, ok = r.Data[key]
	})
	if !ok {
		return false
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		h.store.logger.Debug("session value did not decode", "session_id", h.id.String(), "key", key, "error", err)
		return false
	}
	return true
}

// Get returns the value under key decoded as T.
func Get[T any](h *Handle, key string) (T, bool) {
	var v T
	if !h.Get(key, &v) {
		var zero T
		return zero, false
	}
	return v, true
}

// Set stores value under key as JSON. A value that cannot be encoded is stored
// as an empty string, which Get reports as absent. Writing the same encoding
// again leaves the record untouched.
func (h *Handle) Set(key string, value any) {
	var encoded string
	if b, err := json.Marshal(value); err != nil {
		h.store.logger.Warn("session value could not be encoded", "session_id", h.id.String(), "key", key, "error", err)
	} else {
		encoded = string(b)
	}

	h.with(func(r *Record) {
		if current, ok := r.Data[key]; ok && current == encoded {
			return
		}
		r.Data[key] = encoded
	})
}

// Tap runs fn with exclusive access to the session's raw values, so a read
// followed by a write cannot interleave with another request on the same
// session. fn runs under the store's shared lock and must not call back into
// the handle or block.
func (h *Handle) Tap(fn func(data map[string]string)) {
	h.with(func(r *Record) {
		fn(r.Data)
	})
}

// Update replaces the value under key with the result of fn and returns it.
// fn receives the current value and whether it was present and decoded; the
// read and the write happen under one hold of the session's lock.
func Update[T any](h *Handle, key string, fn func(current T, ok bool) T) T {
	var next T
	h.Tap(func(data map[string]string) {
		var current T
		ok := false
		if raw, found := data[key]; found {
			if err := json.Unmarshal([]byte(raw), &current); err == nil {
				ok = true
			} else {
				var zero T
				current = zero
			}
		}

		next = fn(current, ok)
		b, err := json.Marshal(next)
		if err != nil {
			h.store.logger.Warn("session value could not be encoded", "session_id", h.id.String(), "key", key, "error", err)
			data[key] = ""
			return
		}
		data[key] = string(b)
	})
	return next
}

// Remove deletes key.
func (h *Handle) Remove(key string) {
	h.with(func(r *Record) {
		delete(r.Data, key)
	})
}

// Keys returns the stored keys in sorted order.
func (h *Handle) Keys() []string {
	var keys []string
	h.with(func(r *Record) {
		keys = slices.Sorted(maps.Keys(r.Data))
	})
	return keys
}

// Destroy marks the session for reset. The data stays visible until the
// session is next materialized, which starts it over empty.
func (h *Handle) Destroy() {
	h.with(func(r *Record) {
		r.Destroy = true
	})
}

// ClearAll empties this session's data and then deletes every persisted
// session in the table, not only this one. Use ClearSession to drop a single
// session.
func (h *Handle) ClearAll(ctx context.Context) error {
	h.with(func(r *Record) {
		clear(r.Data)
	})
	return h.store.ClearAll(ctx)
}

// ClearSession empties this session's data and deletes its persisted row.
func (h *Handle) ClearSession(ctx context.Context) error {
	h.with(func(r *Record) {
		clear(r.Data)
	})
	return h.store.backend.Delete(ctx, h.id.String())
}

// Count returns the number of persisted sessions.
func (h *Handle) Count(ctx context.Context) (int64, error) {
	return h.store.Count(ctx)
}

// Save persists the current record.
func (h *Handle) Save(ctx context.Context) error {
	return h.store.Save(ctx, h.id)
}
