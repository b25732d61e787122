// Package metrics registers the Prometheus instrumentation for the
// refresh pipeline: provider call outcomes, fallback exhaustion, cache
// hit/miss ratio and end-to-end refresh latency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	ProviderCalls     *prometheus.CounterVec // labels: provider, capability, outcome
	FallbackExhausted *prometheus.CounterVec // labels: capability
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	RefreshCoalesced  prometheus.Counter
	RefreshDuration   prometheus.Histogram
}

// New registers and returns all collectors on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_provider_calls_total",
			Help: "Provider adapter calls by provider, capability and outcome",
		}, []string{"provider", "capability", "outcome"}),
		FallbackExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_fallback_exhausted_total",
			Help: "Fallback chains where every adapter failed, by capability",
		}, []string{"capability"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_cache_hits_total",
			Help: "Refresh requests served from a fresh cache record",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_cache_misses_total",
			Help: "Refresh requests that went to the providers",
		}),
		RefreshCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_refresh_coalesced_total",
			Help: "Refresh requests coalesced into an in-flight pipeline",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketpulse_refresh_duration_seconds",
			Help:    "Per-ticker refresh pipeline duration",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	reg.MustRegister(
		m.ProviderCalls,
		m.FallbackExhausted,
		m.CacheHits,
		m.CacheMisses,
		m.RefreshCoalesced,
		m.RefreshDuration,
	)
	return m
}
