package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitshopapp/sessionstore/internal/backend"
	"github.com/gitshopapp/sessionstore/internal/session"
)

func newTestStore(t *testing.T) (*session.Store, storeOpener) {
	t.Helper()

	b, err := backend.Open(context.Background(), backend.Config{
		Dialect:  backend.SQLite,
		Database: filepath.Join(t.TempDir(), "sessions.db"),
		Table:    backend.DefaultTable,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	store, err := session.New(b, session.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	return store, func(context.Context) (*session.Store, func(), error) {
		return store, func() {}, nil
	}
}

func run(t *testing.T, open storeOpener, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd(open)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seed(t *testing.T, store *session.Store, n int) []session.ID {
	t.Helper()

	ids := make([]session.ID, 0, n)
	for range n {
		h, _, err := store.Resolve(context.Background(), "")
		require.NoError(t, err)
		h.Set("user", "ada")
		require.NoError(t, h.Save(context.Background()))
		ids = append(ids, h.ID())
	}
	return ids
}

func TestMigrateAndCount(t *testing.T) {
	t.Parallel()

	store, open := newTestStore(t)

	out, err := run(t, open, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "session table ready")

	seed(t, store, 2)
	out, err = run(t, open, "count")
	require.NoError(t, err)
	assert.Equal(t, "2", strings.TrimSpace(out))
}

func TestShowAndDelete(t *testing.T) {
	t.Parallel()

	store, open := newTestStore(t)
	ids := seed(t, store, 2)

	out, err := run(t, open, "show", ids[0].String())
	require.NoError(t, err)
	assert.Contains(t, out, ids[0].String())
	assert.Contains(t, out, `"user"`)

	_, err = run(t, open, "show", "not-an-id")
	require.ErrorIs(t, err, session.ErrInvalidID)

	out, err = run(t, open, "delete", ids[0].String())
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+ids[0].String())

	_, err = run(t, open, "show", ids[0].String())
	require.Error(t, err)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestClearRequiresConfirmation(t *testing.T) {
	t.Parallel()

	store, open := newTestStore(t)
	seed(t, store, 3)

	_, err := run(t, open, "clear")
	require.Error(t, err)

	_, err = run(t, open, "clear", "--yes")
	require.NoError(t, err)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCleanupRemovesExpiredRows(t *testing.T) {
	t.Parallel()

	store, open := newTestStore(t)
	seed(t, store, 1)

	ctx := context.Background()
	require.NoError(t, store.Backend().Store(ctx, "stale", "{}", time.Now().Add(-time.Hour)))

	out, err := run(t, open, "cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 expired sessions")
}
