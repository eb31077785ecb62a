// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchesTotal counts outbound page fetches by outcome.
	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_fetches_total",
		Help: "Outbound page fetches by outcome (ok, error, rate_limited, forbidden).",
	}, []string{"outcome"})

	// FetchDurationSeconds observes fetch latency.
	FetchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_fetch_duration_seconds",
		Help:    "Latency of outbound page fetches.",
		Buckets: prometheus.DefBuckets,
	})

	// CacheEventsTotal counts cache lookups by result (hit, miss, expired).
	CacheEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_cache_events_total",
		Help: "Cache lookups by result.",
	}, []string{"result"})

	// BreakerTransitionsTotal counts circuit breaker state transitions.
	BreakerTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_breaker_transitions_total",
		Help: "Circuit breaker state transitions by service and new state.",
	}, []string{"service", "state"})

	// ExtractionsTotal counts dimension extraction outcomes by strategy.
	ExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_extractions_total",
		Help: "Dimension extraction wins by strategy, plus not_found.",
	}, []string{"strategy"})

	// ValidationsTotal counts validation outcomes.
	ValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_validations_total",
		Help: "Validation outcomes (passed, partial, rejected).",
	}, []string{"status"})

	// HeadlessPromotionsTotal counts static fetches re-run through the renderer.
	HeadlessPromotionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_headless_promotions_total",
		Help: "Static fetches promoted to a headless render.",
	})
)

// ObserveFetch records one fetch outcome with its latency.
func ObserveFetch(outcome string, d time.Duration) {
	FetchesTotal.WithLabelValues(outcome).Inc()
	FetchDurationSeconds.Observe(d.Seconds())
}

// RecordBreakerTransition records a state change for a named circuit.
func RecordBreakerTransition(service, state string) {
	BreakerTransitionsTotal.WithLabelValues(service, state).Inc()
}
