// Package logging provides structured logging utilities with context propagation.
//
// Example usage:
//
//	import "rss-digest/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    slog.SetDefault(logger)
//	    logger.Info("api starting", slog.String("addr", ":8080"))
//	}
//
//	func handleRequest(ctx context.Context) {
//	    logger := logging.WithRequestID(ctx, slog.Default())
//	    logger.Info("processing request")
//	}
package logging
