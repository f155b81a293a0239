package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gitshopapp/sessionstore/internal/backend"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, b backend.Backend, cfg Config, clock *fakeClock) *Store {
	t.Helper()

	if b == nil {
		b = backend.NewMemory()
	}
	opts := []Option{}
	if clock != nil {
		opts = append(opts, WithClock(clock.Now))
	}
	store, err := New(b, cfg, opts...)
	require.NoError(t, err)
	return store
}

func openSQLiteBackend(t *testing.T) backend.Backend {
	t.Helper()

	b, err := backend.Open(context.Background(), backend.Config{
		Dialect:  backend.SQLite,
		Database: filepath.Join(t.TempDir(), "sessions.db"),
		Table:    backend.DefaultTable,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.Migrate(context.Background()))
	return b
}

// countingBackend counts loads and can be told to fail or block them.
type countingBackend struct {
	*backend.MemoryStore

	mu        sync.Mutex
	loads     int
	sweeps    int
	loadErr   error
	sweepErr  error
	loadGate  chan struct{}
	loadEnter chan struct{}
}

func newCountingBackend() *countingBackend {
	return &countingBackend{MemoryStore: backend.NewMemory()}
}

func (b *countingBackend) Load(ctx context.Context, id string, asOf time.Time) (string, bool, error) {
	b.mu.Lock()
	b.loads++
	err := b.loadErr
	gate, enter := b.loadGate, b.loadEnter
	b.mu.Unlock()

	if enter != nil {
		select {
		case enter <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", false, err
	}
	return b.MemoryStore.Load(ctx, id, asOf)
}

func (b *countingBackend) DeleteExpired(ctx context.Context, before time.Time) error {
	b.mu.Lock()
	b.sweeps++
	err := b.sweepErr
	b.mu.Unlock()

	if err != nil {
		return err
	}
	return b.MemoryStore.DeleteExpired(ctx, before)
}

func (b *countingBackend) Loads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loads
}

func (b *countingBackend) Sweeps() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sweeps
}

var errBackendDown = &backend.StorageError{Op: "load", Dialect: backend.Memory, Err: errors.New("connection refused")}
