// Package session keeps a hot, in-memory copy of every active session and
// persists it to a backend on demand.
//
// A Store maps identifiers to records, each guarded by its own mutex, under a
// map-wide lock that supports upgradable reads: cache hits only share the map,
// while inserts and sweeps upgrade to exclusive access without releasing it.
// Idle records are evicted from memory after Config.MemoryLifespan; durable
// rows expire after Config.Lifespan. Both sweeps are throttled and piggyback on
// the creation of new sessions rather than running on a timer.
//
// Request code talks to a Handle. Nothing reaches the backend until Save (or
// ClearAll, ClearSession) is called; Middleware can do that at the end of every
// request.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gitshopapp/sessionstore/internal/backend"
	"github.com/gitshopapp/sessionstore/internal/logging"
	"github.com/gitshopapp/sessionstore/internal/observability"
)

// Store owns the backend, the in-memory session map and the sweep timers.
type Store struct {
	backend backend.Backend
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
	newID   func() (ID, error)

	mu       upgradableRWMutex
	sessions map[string]*entry

	timersMu upgradableRWMutex
	timers   Timers

	loads singleflight.Group
}

type entry struct {
	mu     sync.Mutex
	record Record
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMetrics sets the collectors the store reports to.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Store) {
		s.metrics = metrics
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a store over b. Sweep timers start one lifespan from now.
func New(b backend.Backend, cfg Config, opts ...Option) (*Store, error) {
	if b == nil {
		return nil, fmt.Errorf("session backend is required")
	}

	s := &Store{
		backend:  b,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		newID:    NewID,
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Ensure(s.logger).With("component", "session_store")
	if s.metrics == nil {
		s.metrics = observability.NewMetrics(nil)
	}

	start := s.now()
	s.timers = Timers{
		NextMemorySweep:  start.Add(s.cfg.MemoryLifespan),
		NextDurableSweep: start.Add(s.cfg.Lifespan),
	}

	return s, nil
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// Backend returns the persistence backend.
func (s *Store) Backend() backend.Backend {
	return s.backend
}

// Resolve returns a handle for the client-supplied identifier. An empty raw
// value creates a new session; a malformed one fails with ErrInvalidID. The
// boolean reports whether the identifier cookie must be (re)written.
func (s *Store) Resolve(ctx context.Context, raw string) (*Handle, bool, error) {
	if strings.TrimSpace(raw) == "" {
		return s.create(ctx)
	}

	id, err := ParseID(raw)
	if err != nil {
		return nil, false, err
	}
	return s.materialize(ctx, id)
}

// create mints an identifier unused in memory and inserts an empty record,
// running the throttled sweeps on the way.
func (s *Store) create(ctx context.Context) (*Handle, bool, error) {
	guard := acquireUpgradable(&s.mu)
	defer guard.release()

	id, err := s.unusedIDLocked()
	if err != nil {
		return nil, false, err
	}

	guard.upgrade()
	now := s.now()
	s.sweepLocked(ctx, now)

	s.sessions[id.String()] = &entry{record: newRecord(id, now, s.cfg)}
	s.metrics.Created.Inc()
	s.metrics.Cached.Set(float64(len(s.sessions)))

	return &Handle{store: s, id: id}, true, nil
}

func (s *Store) unusedIDLocked() (ID, error) {
	for {
		id, err := s.newID()
		if err != nil {
			return ID{}, err
		}
		if _, taken := s.sessions[id.String()]; !taken {
			return id, nil
		}
	}
}

// materialize resolves a known identifier from memory, the backend, or a
// fresh record, in that order.
func (s *Store) materialize(ctx context.Context, id ID) (*Handle, bool, error) {
	key := id.String()
	handle := &Handle{store: s, id: id}

	guard := acquireUpgradable(&s.mu)
	defer guard.release()

	if s.touchLocked(key) {
		return handle, false, nil
	}

	if s.cfg.ConcurrentLoads {
		guard.release()
		return s.materializeConcurrent(ctx, id)
	}

	// The backend is awaited while the map is held exclusively, so first loads
	// of different identifiers queue behind each other.
	guard.upgrade()
	if s.touchLocked(key) {
		return handle, false, nil
	}

	record, err := s.fetch(ctx, id, s.now())
	if err != nil {
		return nil, false, err
	}
	s.sessions[key] = &entry{record: record}
	s.metrics.Cached.Set(float64(len(s.sessions)))

	return handle, true, nil
}

// materializeConcurrent loads without holding the map lock. Loads for the same
// identifier are collapsed into one backend call; the first caller back inserts.
func (s *Store) materializeConcurrent(ctx context.Context, id ID) (*Handle, bool, error) {
	key := id.String()
	handle := &Handle{store: s, id: id}

	v, err, _ := s.loads.Do(key, func() (any, error) {
		return s.fetch(ctx, id, s.now())
	})
	if err != nil {
		return nil, false, err
	}
	loaded := v.(Record)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.touchLocked(key) {
		return handle, false, nil
	}
	s.sessions[key] = &entry{record: loaded.clone()}
	s.metrics.Cached.Set(float64(len(s.sessions)))

	return handle, true, nil
}

// touchLocked refreshes the cached record for key. The caller holds s.mu in any mode.
func (s *Store) touchLocked(key string) bool {
	e, ok := s.sessions[key]
	if !ok {
		return false
	}

	e.mu.Lock()
	e.record.refresh(s.now(), s.cfg)
	e.mu.Unlock()

	s.metrics.CacheHits.Inc()
	return true
}

// fetch reads id from the backend, falling back to an empty record when the
// row is absent, expired or undecodable. Backend failures are returned.
func (s *Store) fetch(ctx context.Context, id ID, now time.Time) (Record, error) {
	payload, found, err := s.backend.Load(ctx, id.String(), now)
	if err != nil {
		return Record{}, err
	}

	record := newRecord(id, now, s.cfg)
	outcome := "synthesized"
	if found {
		decoded, err := decodeRecord(payload)
		if err != nil {
			logging.FromContext(ctx, s.logger).Warn("discarding undecodable session payload",
				"session_id", id.String(),
				"error", err,
			)
		} else {
			decoded.ID = id
			record = decoded
			outcome = "loaded"
		}
	}
	record.refresh(now, s.cfg)
	s.metrics.CacheMisses.WithLabelValues(outcome).Inc()

	return record, nil
}

// Save persists the cached record for id.
func (s *Store) Save(ctx context.Context, id ID) error {
	snapshot, ok := s.Snapshot(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotCached, id)
	}

	payload, err := encodeRecord(&snapshot)
	if err != nil {
		return err
	}
	return s.backend.Store(ctx, id.String(), payload, snapshot.Expires)
}

// Snapshot returns a copy of the cached record for id.
func (s *Store) Snapshot(id ID) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id.String()]
	if !ok {
		return Record{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record.clone(), true
}

// Load reads a persisted session without caching it.
func (s *Store) Load(ctx context.Context, id ID) (Record, bool, error) {
	payload, found, err := s.backend.Load(ctx, id.String(), s.now())
	if err != nil || !found {
		return Record{}, false, err
	}
	record, err := decodeRecord(payload)
	if err != nil {
		return Record{}, false, err
	}
	return record, true, nil
}

// Delete drops id from memory and removes its persisted row.
func (s *Store) Delete(ctx context.Context, id ID) error {
	s.mu.Lock()
	delete(s.sessions, id.String())
	s.metrics.Cached.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	return s.backend.Delete(ctx, id.String())
}

// ClearAll deletes every persisted session. In-memory records are kept, so
// sessions saved afterwards reappear in the table.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.backend.DeleteAll(ctx)
}

// Count returns the number of persisted sessions.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.backend.Count(ctx)
}

// Len returns the number of sessions held in memory.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// Migrate creates the backend table when absent.
func (s *Store) Migrate(ctx context.Context) error {
	return s.backend.Migrate(ctx)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
