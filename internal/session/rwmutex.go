package session

import "sync"

// upgradableRWMutex is a reader/writer lock with a third, upgradable read mode.
//
// At most one goroutine holds upgradable access at a time. It shares the lock
// with plain readers and may later be promoted to exclusive access without
// letting another writer in between. Writers also serialize on the upgrade
// gate, so the only goroutines that can run between the release of the read
// side and the acquisition of the write side inside Upgrade are plain readers,
// which cannot change the guarded state.
type upgradableRWMutex struct {
	gate sync.Mutex
	rw   sync.RWMutex
}

func (m *upgradableRWMutex) RLock()   { m.rw.RLock() }
func (m *upgradableRWMutex) RUnlock() { m.rw.RUnlock() }

// Lock acquires exclusive access.
func (m *upgradableRWMutex) Lock() {
	m.gate.Lock()
	m.rw.Lock()
}

func (m *upgradableRWMutex) Unlock() {
	m.rw.Unlock()
	m.gate.Unlock()
}

// UpgradableRLock acquires shared access that can later be upgraded.
func (m *upgradableRWMutex) UpgradableRLock() {
	m.gate.Lock()
	m.rw.RLock()
}

// UpgradableRUnlock releases upgradable access that was never upgraded.
func (m *upgradableRWMutex) UpgradableRUnlock() {
	m.rw.RUnlock()
	m.gate.Unlock()
}

// Upgrade converts upgradable access into exclusive access. Release with Unlock.
func (m *upgradableRWMutex) Upgrade() {
	m.rw.RUnlock()
	m.rw.Lock()
}

// upgradableGuard tracks which mode a caller ends up holding so a single
// deferred release is always correct.
type upgradableGuard struct {
	mu       *upgradableRWMutex
	upgraded bool
	released bool
}

func acquireUpgradable(mu *upgradableRWMutex) *upgradableGuard {
	mu.UpgradableRLock()
	return &upgradableGuard{mu: mu}
}

func (g *upgradableGuard) upgrade() {
	if g.upgraded || g.released {
		return
	}
	g.mu.Upgrade()
	g.upgraded = true
}

func (g *upgradableGuard) release() {
	if g.released {
		return
	}
	g.released = true
	if g.upgraded {
		g.mu.Unlock()
		return
	}
	g.mu.UpgradableRUnlock()
}
