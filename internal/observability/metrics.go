package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// address-correction pipeline.
type Metrics struct {
	CorrectionsTotal   *prometheus.CounterVec // labels: outcome={success,failure}
	CorrectionDuration prometheus.Histogram
	BatchSize          prometheus.Histogram

	// Upstream call metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: upstream={postal,geocode}, operation, outcome={success,error,empty}
	UpstreamDuration *prometheus.HistogramVec // labels: upstream, operation
	BreakerState     *prometheus.GaugeVec     // labels: upstream; 0=closed 1=half-open 2=open

	// Cache metrics.
	CacheLookups *prometheus.CounterVec // labels: cache={geocode,county}, result={hit,miss}

	TokenRefreshes *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CorrectionsTotal,
		m.CorrectionDuration,
		m.BatchSize,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.BreakerState,
		m.CacheLookups,
		m.TokenRefreshes,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CorrectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "address_correction",
			Name:      "corrections_total",
			Help:      "Location corrections by final status.",
		}, []string{"outcome"}),
		CorrectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "address_correction",
			Name:      "correction_duration_seconds",
			Help:      "Duration of a complete correctLocation invocation.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "address_correction",
			Name:      "batch_size",
			Help:      "Number of records per bulk correction request.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "address_correction",
			Name:      "upstream_requests_total",
			Help:      "Upstream API requests by upstream, operation, and outcome.",
		}, []string{"upstream", "operation", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "address_correction",
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"upstream", "operation"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "address_correction",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per upstream: 0=closed, 1=half-open, 2=open.",
		}, []string{"upstream"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "address_correction",
			Name:      "cache_lookups_total",
			Help:      "Geocode cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "address_correction",
			Name:      "token_refreshes_total",
			Help:      "Postal token acquisitions by outcome.",
		}, []string{"outcome"}),
	}
}
