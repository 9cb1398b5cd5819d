// Package tracing provides OpenTelemetry tracing integration.
//
// Spans go through the global tracer provider; without an SDK provider
// installed they are no-ops. The HTTP middleware creates one server span per
// request and the refresh pipeline creates "refresh.cycle" and "fetch.source"
// spans.
//
// Example usage:
//
//	import "rss-digest/internal/observability/tracing"
//
//	func refresh(ctx context.Context) error {
//	    ctx, span := tracing.StartSpan(ctx, "refresh.cycle")
//	    defer span.End()
//	    err := run(ctx)
//	    tracing.RecordError(span, err)
//	    return err
//	}
package tracing
