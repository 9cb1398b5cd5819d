package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"rss-digest/internal/resilience/circuitbreaker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

// BreakerSource reports the per-feed circuit breaker states.
type BreakerSource interface {
	BreakerStates() []circuitbreaker.BreakerState
}

// breakerHealthResponse is the body of /health/feeds.
type breakerHealthResponse struct {
	Healthy bool            `json:"healthy"`
	Feeds   []breakerStatus `json:"feeds"`
}

type breakerStatus struct {
	URL                string `json:"url"`
	State              string `json:"state"`
	CircuitBreakerOpen bool   `json:"circuit_breaker_open"`
}

// MetricsHandler serves:
//   - GET /metrics: Prometheus exposition
//   - GET /health: always 200
//   - GET /health/feeds: per-feed breaker states, 503 when every known feed
//     breaker is open (200 with an empty list before the first fetch)
func MetricsHandler(breakers BreakerSource) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
	})
	mux.HandleFunc("/health/feeds", func(w http.ResponseWriter, r *http.Request) {
		states := breakers.BreakerStates()
		feeds := make([]breakerStatus, 0, len(states))
		open := 0
		for _, s := range states {
			isOpen := s.State == gobreaker.StateOpen
			if isOpen {
				open++
			}
			feeds = append(feeds, breakerStatus{URL: s.Key, State: s.State.String(), CircuitBreakerOpen: isOpen})
		}
		healthy := len(states) == 0 || open < len(states)
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, breakerHealthResponse{Healthy: healthy, Feeds: feeds})
	})
	return mux
}

// StartMetricsServer serves MetricsHandler on port in the background and
// shuts it down gracefully when ctx is canceled.
func StartMetricsServer(ctx context.Context, logger *slog.Logger, port int, breakers BreakerSource) *http.Server {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           MetricsHandler(breakers),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("metrics server stopped")
		}
	}()

	return server
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
