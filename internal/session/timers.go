package session

import (
	"context"
	"time"

	"github.com/gitshopapp/sessionstore/internal/logging"
)

// Timers holds the earliest instants at which the next sweeps may run.
type Timers struct {
	NextMemorySweep  time.Time
	NextDurableSweep time.Time
}

// Timers returns a snapshot of the sweep deadlines.
func (s *Store) Timers() Timers {
	s.timersMu.RLock()
	defer s.timersMu.RUnlock()

	return s.timers
}

// sweepLocked runs whichever sweeps are due. The caller holds s.mu exclusively.
// A failing durable sweep is logged and does not fail the caller.
func (s *Store) sweepLocked(ctx context.Context, now time.Time) {
	s.timersMu.UpgradableRLock()
	if now.Before(s.timers.NextMemorySweep) {
		s.timersMu.UpgradableRUnlock()
	} else {
		s.timersMu.Upgrade()
		s.pruneLocked(now)
		s.timers.NextMemorySweep = now.Add(s.cfg.MemoryLifespan)
		s.metrics.MemorySweeps.Inc()
		s.timersMu.Unlock()
	}

	s.timersMu.UpgradableRLock()
	if now.Before(s.timers.NextDurableSweep) {
		s.timersMu.UpgradableRUnlock()
		return
	}
	s.timersMu.Upgrade()
	defer s.timersMu.Unlock()

	s.pruneLocked(now)
	if err := s.backend.DeleteExpired(ctx, now); err != nil {
		s.metrics.SweepFailures.Inc()
		logging.FromContext(ctx, s.logger).Warn("durable session sweep failed", "error", err)
	}
	s.timers.NextDurableSweep = now.Add(s.cfg.Lifespan)
	s.metrics.DurableSweeps.Inc()
}

// pruneLocked drops every record whose eviction deadline is not in the future.
// The caller holds s.mu exclusively.
func (s *Store) pruneLocked(now time.Time) int {
	removed := 0
	for key, e := range s.sessions {
		e.mu.Lock()
		stale := !e.record.Autoremove.After(now)
		e.mu.Unlock()
		if stale {
			delete(s.sessions, key)
			removed++
		}
	}

	if removed > 0 {
		s.metrics.Evicted.Add(float64(removed))
	}
	s.metrics.Cached.Set(float64(len(s.sessions)))
	return removed
}

// Cleanup evicts idle records from memory and deletes expired rows from the
// backend immediately, ignoring the throttle.
func (s *Store) Cleanup(ctx context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	evicted := s.pruneLocked(now)
	s.mu.Unlock()

	if err := s.backend.DeleteExpired(ctx, now); err != nil {
		s.metrics.SweepFailures.Inc()
		return evicted, err
	}
	return evicted, nil
}
