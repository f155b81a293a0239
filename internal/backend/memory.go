package backend

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Backend for development and tests.
// Rows are lost on restart and are not shared across instances.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]memoryRow
}

type memoryRow struct {
	payload string
	expires time.Time
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		rows: make(map[string]memoryRow),
	}
}

func (m *MemoryStore) Dialect() Dialect {
	return Memory
}

func (m *MemoryStore) Migrate(context.Context) error {
	return nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, row := range m.rows {
		if !row.expires.IsZero() && row.expires.Before(before) {
			delete(m.rows, id)
		}
	}
	return nil
}

func (m *MemoryStore) Count(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.rows)), nil
}

func (m *MemoryStore) Load(_ context.Context, id string, asOf time.Time) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.rows[id]
	if !ok {
		return "", false, nil
	}
	if !row.expires.IsZero() && !row.expires.After(asOf) {
		return "", false, nil
	}
	return row.payload, true, nil
}

func (m *MemoryStore) Store(_ context.Context, id, payload string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rows[id] = memoryRow{payload: payload, expires: expires}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rows, id)
	return nil
}

func (m *MemoryStore) DeleteAll(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rows = make(map[string]memoryRow)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
