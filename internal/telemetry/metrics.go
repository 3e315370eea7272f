package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge named in the external interface
// (§6): outbox backlog/DLQ/retries and tenant cache hit/miss/coalesce
// counters. A dedicated prometheus.Registry (rather than the global
// DefaultRegisterer) keeps repeated construction in tests side-effect free.
type Metrics struct {
	registry *prometheus.Registry

	OutboxBacklogSize prometheus.Gauge
	OutboxInFlight    prometheus.Gauge
	OutboxDLQTotal    prometheus.Counter
	OutboxRetries     prometheus.Counter

	TenantCacheHits               prometheus.Counter
	TenantCacheMisses             prometheus.Counter
	TenantCacheEvictions          prometheus.Counter
	TenantCacheEntries            prometheus.Gauge
	TenantCacheNegativeHits       prometheus.Counter
	TenantCacheNegativeMisses     prometheus.Counter
	TenantCacheNegativeEvictions  prometheus.Counter
	TenantCacheNegativeInserts    prometheus.Counter
	TenantCacheNegativeEntries    prometheus.Gauge
	TenantCacheCoalescedRequests prometheus.Counter

	HandlerFailuresTotal *prometheus.CounterVec
	ConsistencyOrphans   *prometheus.GaugeVec
}

// NewMetrics builds and registers every gauge/counter in the Metrics
// struct against a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		OutboxBacklogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_backlog_size",
			Help: "Number of outbox rows currently pending dispatch.",
		}),
		OutboxInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_in_flight",
			Help: "Number of outbox rows currently claimed by a relay worker.",
		}),
		OutboxDLQTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbox_dlq_total",
			Help: "Number of outbox rows that reached the terminal Failed/DLQ state.",
		}),
		OutboxRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbox_retries_total",
			Help: "Number of retryable dispatch failures observed by the relay worker.",
		}),

		TenantCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustok_tenant_cache_hits",
			Help: "Positive tenant resolution cache hits.",
		}),
		TenantCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustok_tenant_cache_misses",
			Help: "Positive tenant resolution cache misses.",
		}),
		TenantCacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustok_tenant_cache_evictions",
			Help: "Positive tenant resolution cache entries evicted by TTL or invalidation.",
		}),
		TenantCacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rustok_tenant_cache_entries",
			Help: "Current number of positive tenant resolution cache entries.",
		}),
		TenantCacheNegativeHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustok_tenant_cache_negative_hits",
			Help: "Negative tenant resolution cache hits.",
		}),
		TenantCacheNegativeMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustok_tenant_cache_negative_misses",
			Help: "Negative tenant resolution cache misses.",
		}),
		TenantCacheNegativeEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustok_tenant_cache_negative_evictions",
			Help: "Negative tenant resolution cache entries evicted by TTL or invalidation.",
		}),
		TenantCacheNegativeInserts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustok_tenant_cache_negative_inserts",
			Help: "Negative tenant resolution cache entries inserted.",
		}),
		TenantCacheNegativeEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rustok_tenant_cache_negative_entries",
			Help: "Current number of negative tenant resolution cache entries.",
		}),
		TenantCacheCoalescedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustok_tenant_cache_coalesced_requests",
			Help: "Requests that attached to an in-flight tenant resolution load instead of issuing a new one.",
		}),

		HandlerFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rustok_projection_handler_failures_total",
			Help: "Projection handler errors, by event type.",
		}, []string{"event_type"}),
		ConsistencyOrphans: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rustok_consistency_orphans",
			Help: "Rows flagged by the consistency checker, by audit kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.OutboxBacklogSize, m.OutboxInFlight, m.OutboxDLQTotal, m.OutboxRetries,
		m.TenantCacheHits, m.TenantCacheMisses, m.TenantCacheEvictions, m.TenantCacheEntries,
		m.TenantCacheNegativeHits, m.TenantCacheNegativeMisses, m.TenantCacheNegativeEvictions,
		m.TenantCacheNegativeInserts, m.TenantCacheNegativeEntries, m.TenantCacheCoalescedRequests,
		m.HandlerFailuresTotal, m.ConsistencyOrphans,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
