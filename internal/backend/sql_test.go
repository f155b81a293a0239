package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) Backend {
	t.Helper()

	b, err := Open(context.Background(), Config{
		Dialect:  SQLite,
		Database: filepath.Join(t.TempDir(), "sessions.db"),
		Table:    "test_sessions",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.Migrate(context.Background()))
	return b
}

func TestSQLite_Contract(t *testing.T) {
	t.Parallel()

	runContract(t, openSQLite(t))
}

func TestSQLite_LoadFiltersExpiredRowsInQuery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := openSQLite(t)
	now := time.Now()

	// The row is physically present; only the query predicate hides it.
	require.NoError(t, b.Store(ctx, "stale", `{"data":{}}`, now.Add(-time.Hour)))

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, found, err := b.Load(ctx, "stale", now)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLite_DeleteExpiredKeepsLiveRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := openSQLite(t)
	now := time.Now()

	require.NoError(t, b.Store(ctx, "stale", `{}`, now.Add(-time.Hour)))
	require.NoError(t, b.Store(ctx, "live", `{}`, now.Add(time.Hour)))
	require.NoError(t, b.DeleteExpired(ctx, now))

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, found, err := b.Load(ctx, "live", now)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSQLite_FailuresAreStorageErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := openSQLite(t)
	require.NoError(t, b.Close())

	_, err := b.Count(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "count", storageErr.Op)
	assert.Equal(t, SQLite, storageErr.Dialect)
}

func TestStatementsFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dialect  Dialect
		contains []string
	}{
		{dialect: Postgres, contains: []string{"$1", "ON CONFLICT (id)", "TIMESTAMP WITH TIME ZONE", "TRUNCATE"}},
		{dialect: MySQL, contains: []string{"?", "ON DUPLICATE KEY UPDATE", "ENGINE=InnoDB", "TRUNCATE TABLE"}},
		{dialect: SQLite, contains: []string{"?", "ON CONFLICT(id)", "INTEGER NULL"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			t.Parallel()

			stmts, err := statementsFor(tt.dialect, "web_sessions")
			require.NoError(t, err)

			all := strings.Join([]string{
				stmts.migrate, stmts.deleteExpired, stmts.count, stmts.load,
				stmts.store, stmts.delete, stmts.deleteAll,
			}, "\n")
			assert.NotContains(t, all, tablePlaceholder)
			assert.Contains(t, stmts.load, "web_sessions")
			for _, want := range tt.contains {
				assert.Contains(t, all, want)
			}
		})
	}
}

func TestStatementsFor_RejectsUnsafeTableNames(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "1sessions", "sessions; DROP TABLE users", `a"b`, strings.Repeat("a", 64)} {
		_, err := statementsFor(Postgres, name)
		assert.Error(t, err, name)
	}

	_, err := statementsFor(Redis, "sessions")
	assert.Error(t, err)
}

func TestStatementsFor_EncodesExpiryPerDialect(t *testing.T) {
	t.Parallel()

	at := time.Date(2030, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))

	pg, err := statementsFor(Postgres, "s")
	require.NoError(t, err)
	assert.Equal(t, at.UTC(), pg.encodeTime(at))

	lite, err := statementsFor(SQLite, "s")
	require.NoError(t, err)
	assert.Equal(t, at.Unix(), lite.encodeTime(at))
}
