// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds.
	// Buckets cover cached reads (ms) up to forced refreshes (seconds).
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestsInFlight tracks the current number of HTTP requests being processed
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	// HTTPResponseSize measures HTTP response body size in bytes
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// HTTPForceRefreshTotal counts force_update requests by decision
	// (allowed, rejected)
	HTTPForceRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_force_refresh_total",
			Help: "Total number of forced refresh requests by limiter decision",
		},
		[]string{"decision"},
	)
)

// Refresh cycle metrics
var (
	// RefreshCyclesTotal counts refresh attempts by outcome
	// (refreshed, fresh, in_flight, all_sources_failed, persist_failed).
	RefreshCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_cycles_total",
			Help: "Total number of refresh requests by outcome",
		},
		[]string{"outcome"},
	)

	// RefreshCycleDuration measures full cycles (fetch to persist)
	RefreshCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "refresh_cycle_duration_seconds",
			Help:    "Duration of refresh cycles that ran the pipeline",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	// RefreshLastSuccess is the unix time of the last persisted cycle
	RefreshLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refresh_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful refresh cycle",
		},
	)

	// SourceFetchTotal counts per-source fetch results (success, fetch_error, parse_error)
	SourceFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_fetch_total",
			Help: "Total number of feed fetches by source and result",
		},
		[]string{"source", "result"},
	)

	// SourceFetchDuration measures time to fetch one feed
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_fetch_duration_seconds",
			Help:    "Time taken to fetch and parse a feed source",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"source"},
	)

	// FeedItemsTotal counts raw items by parse outcome (accepted, dropped)
	FeedItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_items_total",
			Help: "Total number of feed items by normalization result",
		},
		[]string{"result"},
	)

	// ArticlesMergedTotal counts drafts by merge result (inserted, merged)
	ArticlesMergedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "articles_merged_total",
			Help: "Total number of drafts merged into the store",
		},
		[]string{"result"},
	)

	// ArticlesDroppedTotal counts articles removed by retention
	ArticlesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "articles_dropped_total",
			Help: "Total number of articles dropped by the retention cap",
		},
	)
)

// Store metrics
var (
	// StoreArticles is the number of retained articles
	StoreArticles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_articles",
			Help: "Number of articles currently retained",
		},
	)

	// StoreNewArticles is the number of retained articles flagged new
	StoreNewArticles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_new_articles",
			Help: "Number of retained articles inside the staleness window",
		},
	)

	// DiscoveredCategories is the size of the discovered category overlay
	DiscoveredCategories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_discovered_categories",
			Help: "Number of categories in the discovered overlay",
		},
	)

	// SnapshotOperationDuration measures snapshot load/save by backend
	SnapshotOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_operation_duration_seconds",
			Help:    "Snapshot persistence duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"backend", "operation"},
	)

	// SnapshotErrorsTotal counts failed snapshot operations
	SnapshotErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_errors_total",
			Help: "Total number of failed snapshot operations",
		},
		[]string{"backend", "operation"},
	)
)

// Content enrichment metrics
var (
	// ContentFetchAttemptsTotal counts content fetch attempts by result
	ContentFetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_fetch_attempts_total",
			Help: "Total number of content fetch attempts",
		},
		[]string{"result"}, // result: success, failure, skipped
	)

	// ContentFetchDuration measures time to fetch article content
	ContentFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "content_fetch_duration_seconds",
			Help:    "Time taken to fetch article content",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)
)

// Database metrics track the SQL snapshot backends
var (
	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())

	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordForceRefresh records a force limiter decision.
func RecordForceRefresh(allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "rejected"
	}
	HTTPForceRefreshTotal.WithLabelValues(decision).Inc()
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
