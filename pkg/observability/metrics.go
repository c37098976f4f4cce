package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
// Each instance owns its registry, so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Consistency metrics
	DegradedWrites *prometheus.CounterVec
	Conflicts      prometheus.Counter
	BreakerState   *prometheus.GaugeVec
}

// NewMetrics creates the metrics under namespace and registers them
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		StoreOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of backing store operations",
			},
			[]string{"store", "operation", "status"},
		),
		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Backing store operation duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"store", "operation"},
		),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}),
		DegradedWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "degraded_writes_total",
				Help:      "Writes accepted by the primary store that a secondary store missed",
			},
			[]string{"store"},
		),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_conflicts_total",
			Help:      "Total number of rejected stale-version writes",
		}),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_open",
				Help:      "1 when the named circuit breaker is open",
			},
			[]string{"breaker"},
		),
	}

	registry.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.StoreOperations,
		m.StoreDuration,
		m.CacheHits,
		m.CacheMisses,
		m.DegradedWrites,
		m.Conflicts,
		m.BreakerState,
		collectors.NewGoCollector(),
	)

	return m
}

// Registry returns the registry the metrics live in
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordStoreOperation records the outcome and latency of one adapter call
func (m *Metrics) RecordStoreOperation(store, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.StoreOperations.WithLabelValues(store, operation, status).Inc()
	m.StoreDuration.WithLabelValues(store, operation).Observe(duration.Seconds())
}

// RecordCacheHit increments the cache hit counter
func (m *Metrics) RecordCacheHit() { m.CacheHits.Inc() }

// RecordCacheMiss increments the cache miss counter
func (m *Metrics) RecordCacheMiss() { m.CacheMisses.Inc() }

// RecordDegradedWrite counts a secondary store that missed a write
func (m *Metrics) RecordDegradedWrite(store string) {
	m.DegradedWrites.WithLabelValues(store).Inc()
}

// RecordConflict counts a rejected stale-version write
func (m *Metrics) RecordConflict() { m.Conflicts.Inc() }

// SetBreakerState records a circuit breaker transition
func (m *Metrics) SetBreakerState(name, _, to string) {
	open := 0.0
	if to == "open" {
		open = 1
	}
	m.BreakerState.WithLabelValues(name).Set(open)
}

// RecordHTTPRequest records one served request
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
