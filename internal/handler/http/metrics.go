package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rss-digest/internal/handler/http/pathutil"
	"rss-digest/internal/handler/http/responsewriter"
	"rss-digest/internal/observability/metrics"
)

// MetricsMiddleware records request count, latency, response size and
// in-flight requests. Paths are reduced to route labels first so unknown
// paths cannot grow label cardinality.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		route := pathutil.NormalizePath(r.URL.Path)
		rw := responsewriter.Wrap(w)

		start := time.Now()
		next.ServeHTTP(rw, r)

		metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(rw.StatusCode()), time.Since(start), rw.BytesWritten())
	})
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
