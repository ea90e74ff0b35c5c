// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration measures request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	// RedirectsTotal counts successful redirects by target kind.
	RedirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirects_total",
			Help: "Total number of successful redirects",
		},
		[]string{"kind"},
	)

	// RedirectsNotFoundTotal counts redirect requests for unknown codes.
	RedirectsNotFoundTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redirects_not_found_total",
			Help: "Total number of redirect requests for unknown codes",
		},
	)

	// LinksCreatedTotal counts created links and variants.
	LinksCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "links_created_total",
			Help: "Total number of links and variants created",
		},
		[]string{"kind"},
	)

	// AllocationCollisionsTotal counts allocation attempts that hit an
	// existing code.
	AllocationCollisionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_collisions_total",
			Help: "Total number of short code allocation collisions",
		},
	)

	// AllocationExhaustedTotal counts allocations that ran out of retries.
	AllocationExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_exhausted_total",
			Help: "Total number of exhausted short code allocations",
		},
	)

	// ClickFlushBatchesTotal counts click counter flush batches.
	ClickFlushBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "click_flush_batches_total",
			Help: "Total number of click count flush batches",
		},
	)

	// ClickFlushClicksTotal counts clicks persisted through flushes.
	ClickFlushClicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "click_flush_clicks_total",
			Help: "Total number of clicks persisted through flushes",
		},
	)

	// CacheHitsTotal counts redirect-path cache hits.
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMissesTotal counts redirect-path cache misses.
	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// ActiveConnections tracks current in-flight HTTP requests.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of in-flight HTTP requests",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records an HTTP request metric.
func RecordRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRedirect records a successful redirect for a namespace kind.
func RecordRedirect(kind string) {
	RedirectsTotal.WithLabelValues(kind).Inc()
}

// RecordClickFlush records a persisted click batch.
func RecordClickFlush(codes int, clicks int64) {
	ClickFlushBatchesTotal.Inc()
	ClickFlushClicksTotal.Add(float64(clicks))
}
