// Package http serves the article API: the article, category and status
// endpoints, the probes, and the middleware they run behind.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"rss-digest/internal/handler/http/respond"
	"rss-digest/internal/repository"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"` // "healthy" or "unhealthy"
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is the result of one health check.
type CheckStatus struct {
	Status  string         `json:"status"` // "healthy", "degraded" or "unhealthy"
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// StatusSnapshot is the part of the store status the health check needs.
type StatusSnapshot struct {
	Articles int
	Warnings []string
}

// HealthHandler checks the snapshot backend and the store. Only a failing
// backend makes the service unhealthy; store warnings (stale, empty) are
// reported as degraded with 200.
type HealthHandler struct {
	Store   repository.Pinger
	Backend string
	Status  func() StatusSnapshot
	Version string
	Logger  *slog.Logger
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus)
	healthy := true

	// スナップショット保存先
	if h.Store != nil {
		start := time.Now()
		if err := h.Store.Ping(ctx); err != nil {
			healthy = false
			checks["store"] = CheckStatus{Status: "unhealthy", Message: respond.SanitizeError(err)}
			if h.Logger != nil {
				h.Logger.Warn("health: store ping failed", slog.String("error", respond.SanitizeError(err)))
			}
		} else {
			checks["store"] = CheckStatus{
				Status: "healthy",
				Details: map[string]any{
					"backend":    h.Backend,
					"latency_ms": time.Since(start).Milliseconds(),
				},
			}
		}
	}

	// 記事ストア
	if h.Status != nil {
		st := h.Status()
		check := CheckStatus{Status: "healthy", Details: map[string]any{"articles": st.Articles}}
		if len(st.Warnings) > 0 {
			check.Status = "degraded"
			check.Details["warnings"] = st.Warnings
		}
		checks["articles"] = check
	}

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	}
	code := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, code, resp)
}

// ReadyHandler answers 200 once the store is loaded and the backend answers
// a ping, 503 otherwise.
type ReadyHandler struct {
	Loaded *atomic.Bool
	Store  repository.Pinger
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if h.Loaded == nil || !h.Loaded.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store not loaded"))
		return
	}
	if h.Store != nil {
		if err := h.Store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LiveHandler always answers 200.
type LiveHandler struct{}

func (LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
