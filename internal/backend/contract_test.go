package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract exercises the behaviour every variant must share.
func runContract(t *testing.T, b Backend) {
	t.Helper()

	ctx := context.Background()
	now := time.Now()
	later := now.Add(time.Hour)

	require.NoError(t, b.Migrate(ctx))
	require.NoError(t, b.Migrate(ctx), "migrate must be idempotent")
	require.NoError(t, b.Ping(ctx))

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, b.Store(ctx, "a", `{"v":1}`, later))
	require.NoError(t, b.Store(ctx, "b", `{"v":2}`, later))

	n, err = b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	payload, found, err := b.Load(ctx, "a", now)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"v":1}`, payload)

	require.NoError(t, b.Store(ctx, "a", `{"v":3}`, later), "store must upsert")
	payload, found, err = b.Load(ctx, "a", now)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"v":3}`, payload)

	n, err = b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, found, err = b.Load(ctx, "missing", now)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.Delete(ctx, "a"))
	require.NoError(t, b.Delete(ctx, "a"), "deleting an absent id is not an error")
	_, found, err = b.Load(ctx, "a", now)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.Store(ctx, "c", `{}`, later))
	require.NoError(t, b.DeleteAll(ctx))
	n, err = b.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemory_Contract(t *testing.T) {
	t.Parallel()

	runContract(t, NewMemory())
}

func TestMemory_LoadFiltersExpiredRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now()
	b := NewMemory()

	require.NoError(t, b.Store(ctx, "old", `{}`, now.Add(-time.Minute)))
	_, found, err := b.Load(ctx, "old", now)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.DeleteExpired(ctx, now))
	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
