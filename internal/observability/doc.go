// Package observability groups the logging, metrics and tracing
// infrastructure shared by the api, worker and feedctl binaries.
//
// Subpackages:
//   - logging: slog construction and context propagation
//   - metrics: Prometheus registry and recorders
//   - tracing: OpenTelemetry spans and HTTP middleware
//   - slo: store freshness and source success objectives
package observability
