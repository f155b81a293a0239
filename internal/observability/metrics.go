package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sessionstore"

// Metrics groups the collectors shared by the session store and its backend.
type Metrics struct {
	CacheHits     prometheus.Counter
	CacheMisses   *prometheus.CounterVec
	Created       prometheus.Counter
	Evicted       prometheus.Counter
	MemorySweeps  prometheus.Counter
	DurableSweeps prometheus.Counter
	SweepFailures prometheus.Counter
	Cached        prometheus.Gauge

	BackendDuration *prometheus.HistogramVec
	BackendErrors   *prometheus.CounterVec

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	SameOriginChecks *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them with reg.
// A nil registerer leaves the collectors unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Sessions resolved from the in-memory map.",
		}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Known identifiers absent from memory, by outcome (loaded or synthesized).",
		}, []string{"outcome"}),
		Created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created under a freshly generated identifier.",
		}),
		Evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Sessions removed from memory by a sweep.",
		}),
		MemorySweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_sweeps_total",
			Help:      "Throttled in-memory eviction passes.",
		}),
		DurableSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "durable_sweeps_total",
			Help:      "Throttled durable expiry passes.",
		}),
		SweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "durable_sweep_failures_total",
			Help:      "Durable expiry passes that failed against the backend.",
		}),
		Cached: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_sessions",
			Help:      "Sessions currently held in memory.",
		}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_operation_duration_seconds",
			Help:      "Latency of backend operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"dialect", "operation"}),
		BackendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Failed backend operations.",
		}, []string{"dialect", "operation"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "status_class"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SameOriginChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "same_origin_checks_total",
			Help:      "Origin checks on state-changing requests, by result and reason.",
		}, []string{"result", "reason"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.CacheHits,
			m.CacheMisses,
			m.Created,
			m.Evicted,
			m.MemorySweeps,
			m.DurableSweeps,
			m.SweepFailures,
			m.Cached,
			m.BackendDuration,
			m.BackendErrors,
			m.HTTPRequests,
			m.HTTPDuration,
			m.SameOriginChecks,
		)
	}

	return m
}
