// Package metrics defines the Prometheus collectors for search, refresh and
// HTTP traffic and serves them for scraping. Recording methods
// are safe on a nil *Metrics, so components run without metrics in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus")

// Search result types for SearchQueriesTotal.
const (
	ResultHit       = "hit"
	ResultZero      = "zero_result"
	ResultMalformed = "malformed"
	ResultError     = "error"
)

type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	RefreshesTotal       *prometheus.CounterVec
	RefreshDuration      prometheus.Histogram
	DocumentsIndexed     prometheus.Gauge
	SectionsIndexed      prometheus.Gauge
	SnapshotVersion      prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, malformed, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of matching sections per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_refreshes_total",
				Help: "Total corpus refreshes by status.",
			},
			[]string{"status"},
		),
		RefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "corpus_refresh_duration_seconds",
				Help:    "Duration of a full corpus refresh.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		DocumentsIndexed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "documents_indexed",
				Help: "Documents in the served index snapshot.",
			},
		),
		SectionsIndexed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sections_indexed",
				Help: "Sections in the served index snapshot.",
			},
		),
		SnapshotVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_snapshot_version",
				Help: "Version of the served index snapshot.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.RefreshesTotal,
		m.RefreshDuration,
		m.DocumentsIndexed,
		m.SectionsIndexed,
		m.SnapshotVersion,
		m.CircuitBreakerState,
	)

	return m
}

func (m *Metrics) ObserveSearch(resultType, cacheStatus string, hits int, d time.Duration) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(d.Seconds())
	m.SearchResultsCount.Observe(float64(hits))
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
}

func (m *Metrics) ObserveRefresh(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(status).Inc()
	m.RefreshDuration.Observe(d.Seconds())
}

// SetSnapshot records the size and version of the installed snapshot.
func (m *Metrics) SetSnapshot(version uint64, documents, sections int) {
	if m == nil {
		return
	}
	m.SnapshotVersion.Set(float64(version))
	m.DocumentsIndexed.Set(float64(documents))
	m.SectionsIndexed.Set(float64(sections))
}

func (m *Metrics) SetCircuitState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
