package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSetupTracing_NoopWhenEndpointEmpty(t *testing.T) {
	t.Parallel()

	shutdown, err := SetupTracing(context.Background(), "test-service", "  ")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.CacheHits.Inc()
	m.CacheMisses.WithLabelValues("loaded").Inc()

	require.Equal(t, float64(1), testutil.ToFloat64(m.CacheHits))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}
	require.True(t, names["sessionstore_cache_hits_total"])
	require.True(t, names["sessionstore_cache_misses_total"])
}

func TestNewMetrics_NilRegistererLeavesCollectorsUsable(t *testing.T) {
	t.Parallel()

	m := NewMetrics(nil)
	m.MemorySweeps.Inc()
	require.Equal(t, float64(1), testutil.ToFloat64(m.MemorySweeps))
}
