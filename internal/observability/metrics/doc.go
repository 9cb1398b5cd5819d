// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count, size)
//   - Refresh cycle metrics (outcomes, per-source fetches, merge and retention counts)
//   - Store gauges (retained articles, new articles, discovered categories)
//   - Snapshot persistence metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "rss-digest/internal/observability/metrics"
//
//	start := time.Now()
//	items, err := fetcher.Fetch(ctx, src.URL)
//	if err != nil {
//	    metrics.RecordSourceFetch(src.Name, metrics.FetchResultFetchError, time.Since(start))
//	}
package metrics
