package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"rss-digest/internal/handler/http/middleware"
	"rss-digest/internal/handler/http/respond"
	"rss-digest/internal/observability/logging"
	"rss-digest/internal/observability/slo"
	"rss-digest/internal/usecase/refresh"
)

// ArticleStore is the read side of the refresh service.
type ArticleStore interface {
	Query(ctx context.Context, req refresh.QueryRequest) (refresh.QueryResponse, error)
	KnownCategory(category string) bool
	Categories() []refresh.CategoryInfo
	Status() refresh.StatusReport
}

// Query parameters.
const (
	ParamCategory    = "category"
	ParamForceUpdate = "force_update"
)

var errForceRateLimited = errors.New("too many forced refreshes, retry later")

// ArticlesHandler serves GET /articles: it refreshes the store when due (or
// when force_update=true and the limiter allows it) and returns the articles
// of the requested category.
type ArticlesHandler struct {
	Store    ArticleStore
	Limiter  *middleware.ForceRefreshLimiter
	Location *time.Location
	Now      func() time.Time
}

func (h *ArticlesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := q.Get(ParamCategory)

	force, err := parseForce(q.Get(ParamForceUpdate))
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	// 不正なカテゴリで強制更新の枠を消費しない
	if !h.Store.KnownCategory(category) {
		respond.SafeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", refresh.ErrInvalidFilter, category))
		return
	}

	if force && h.Limiter != nil {
		now := h.now()
		if !h.Limiter.AllowAt(now) {
			retry := h.Limiter.RetryAfter(now)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			logging.FromContext(r.Context()).Warn("forced refresh rejected",
				slog.String("remote_addr", r.RemoteAddr),
				slog.Duration("retry_after", retry))
			respond.SafeError(w, http.StatusTooManyRequests, errForceRateLimited)
			return
		}
	}

	resp, err := h.Store.Query(r.Context(), refresh.QueryRequest{Category: category, Force: force})
	if err != nil {
		if errors.Is(err, refresh.ErrInvalidFilter) {
			respond.SafeError(w, http.StatusBadRequest, err)
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	respond.JSON(w, http.StatusOK, NewArticlesResponse(resp, h.location()))
}

func (h *ArticlesHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *ArticlesHandler) location() *time.Location {
	if h.Location != nil {
		return h.Location
	}
	return time.UTC
}

// parseForce accepts an absent value and the strconv.ParseBool spellings.
func parseForce(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: must be true or false", ParamForceUpdate, raw)
	}
	return v, nil
}

// CategoriesHandler serves GET /categories.
type CategoriesHandler struct {
	Store ArticleStore
}

func (h *CategoriesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, NewCategoriesResponse(h.Store.Categories()))
}

// StatusHandler serves GET /status. It answers 200 for both "ok" and
// "warning" so people and probes can poll it; it never refreshes.
type StatusHandler struct {
	Store      ArticleStore
	Location   *time.Location
	StaleAfter time.Duration
	Now        func() time.Time
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rep := h.Store.Status()

	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	staleAfter := h.StaleAfter
	if staleAfter <= 0 {
		staleAfter = refresh.DefaultStatusStaleAfter
	}
	slo.ObserveFreshness(rep.LastRefreshAt, now, staleAfter)

	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	w.Header().Set("Cache-Control", "no-cache")
	respond.JSON(w, http.StatusOK, NewStatusResponse(rep, loc))
}
