package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/usecase/merge"
)

// CategoryAll selects every article. "tous" is accepted as an alias.
const CategoryAll = "all"

// DefaultStatusStaleAfter is the store age that turns Status into a warning.
const DefaultStatusStaleAfter = 2 * time.Hour

// Status values.
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
)

// QueryRequest selects a view of the store. An empty Category means all.
type QueryRequest struct {
	Category string
	Force    bool
}

// QueryResponse is a filtered, recency-ordered view of the store.
type QueryResponse struct {
	Category   string
	LastUpdate time.Time
	Articles   []entity.Article
	Refresh    Result
	// Warning is set when the refresh failed and cached articles are served.
	Warning string
}

// Count returns the number of articles in the view.
func (r QueryResponse) Count() int { return len(r.Articles) }

// CategoryInfo describes one known category.
type CategoryInfo struct {
	Name       string
	Label      string
	Count      int
	Predefined bool
}

// StatusReport is the operational state of the store.
type StatusReport struct {
	Status        string
	Articles      int
	NewArticles   int
	Sources       int
	LastRefreshAt time.Time
	Age           time.Duration
	LastCycle     Result
	Warnings      []string
}

// NormalizeCategory trims and lowercases a filter value and maps "" and
// "tous" to CategoryAll.
func NormalizeCategory(raw string) string {
	c := strings.ToLower(strings.TrimSpace(raw))
	switch c {
	case "", CategoryAll, "tous":
		return CategoryAll
	}
	return c
}

// Query refreshes the store when due (or when req.Force is set) and returns
// the articles of the requested category. An unknown category fails with
// ErrInvalidFilter before any refresh. A persistence failure does not fail
// the query: the in-memory store is served and Warning explains why.
func (s *Service) Query(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	category := NormalizeCategory(req.Category)
	if category != CategoryAll && !s.categories.Known(category) {
		return QueryResponse{}, fmt.Errorf("%w: %q", ErrInvalidFilter, req.Category)
	}

	res, err := s.Refresh(ctx, req.Force)
	resp := QueryResponse{Category: category, Refresh: res}
	if err != nil {
		if !errors.Is(err, ErrPersistence) {
			return QueryResponse{}, err
		}
		resp.Warning = "the article snapshot could not be read or saved; serving the in-memory store"
		slog.Warn("serving in-memory store after persistence failure", slog.Any("error", err))
	}

	resp.Articles = s.Articles(category)
	resp.LastUpdate = s.LastRefreshAt()
	return resp, nil
}

// Articles returns a copy of the stored articles carrying category (all of
// them for CategoryAll), newest first, with IsNew computed for the current
// time. The category is not validated.
func (s *Service) Articles(category string) []entity.Article {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Article, 0, len(s.articles))
	for _, a := range s.articles {
		if category != CategoryAll && !a.HasCategory(category) {
			continue
		}
		out = append(out, a)
	}
	return merge.MarkStale(out, now, s.cfg.StalenessWindow)
}

// Categories lists the known categories (predefined first, then discovered)
// with display labels and the number of stored articles carrying each one.
func (s *Service) Categories() []CategoryInfo {
	counts := make(map[string]int)
	s.mu.RLock()
	for _, a := range s.articles {
		for _, c := range a.Categories {
			counts[c]++
		}
	}
	s.mu.RUnlock()

	names := s.categories.Names()
	out := make([]CategoryInfo, 0, len(names))
	for _, name := range names {
		out = append(out, CategoryInfo{
			Name:       name,
			Label:      s.categorizer.Label(name),
			Count:      counts[name],
			Predefined: s.categories.IsPredefined(name),
		})
	}
	return out
}

// KnownCategory reports whether a (normalized) filter value is accepted.
func (s *Service) KnownCategory(category string) bool {
	c := NormalizeCategory(category)
	return c == CategoryAll || s.categories.Known(c)
}

// Status reports the store health. It never refreshes.
func (s *Service) Status() StatusReport {
	now := s.now()
	s.mu.RLock()
	rep := StatusReport{
		Articles:      len(s.articles),
		NewArticles:   merge.CountNew(merge.MarkStale(s.articles, now, s.cfg.StalenessWindow)),
		Sources:       len(s.cfg.Sources),
		LastRefreshAt: s.lastRefreshAt,
		LastCycle:     s.lastCycle,
	}
	s.mu.RUnlock()

	if rep.LastRefreshAt.IsZero() {
		rep.Warnings = append(rep.Warnings, "store has never been refreshed")
	} else {
		rep.Age = now.Sub(rep.LastRefreshAt)
		if rep.Age > s.cfg.StatusStaleAfter {
			rep.Warnings = append(rep.Warnings,
				fmt.Sprintf("last refresh is older than %s", s.cfg.StatusStaleAfter))
		}
	}
	if rep.Articles == 0 {
		rep.Warnings = append(rep.Warnings, "store is empty")
	}
	if n := len(rep.LastCycle.FailedSources); n > 0 {
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("%d of %d sources failed in the last cycle", n, rep.Sources))
	}

	rep.Status = StatusOK
	if len(rep.Warnings) > 0 {
		rep.Status = StatusWarning
	}
	return rep
}
