// Package merge holds the pure store transitions of a refresh cycle:
// merging drafts by article id, recomputing the "new" flag and truncating to
// the retention cap. None of these functions mutate their inputs.
package merge

import (
	"sort"
	"time"

	"rss-digest/internal/domain/entity"
)

// DefaultStalenessWindow is how long an article counts as new.
const DefaultStalenessWindow = 48 * time.Hour

// DefaultMaxRetained is the store size cap.
const DefaultMaxRetained = 50

// Stats summarizes one Merge call.
type Stats struct {
	Inserted int
	Merged   int
}

// Merge folds drafts into existing. A draft whose id is already known only
// contributes categories it does not carry yet; every other field keeps its
// first-seen value. New articles get FirstSeenAt = now and are appended in
// draft order. Duplicates inside drafts merge the same way.
func Merge(existing []entity.Article, drafts []entity.ArticleDraft, now time.Time) ([]entity.Article, Stats) {
	out := make([]entity.Article, len(existing), len(existing)+len(drafts))
	index := make(map[string]int, len(existing)+len(drafts))
	for i, a := range existing {
		out[i] = a.Clone()
		index[a.ID] = i
	}

	var st Stats
	for _, d := range drafts {
		id := d.ID()
		if i, ok := index[id]; ok {
			out[i].AddCategories(d.Categories...)
			st.Merged++
			continue
		}
		index[id] = len(out)
		out = append(out, entity.NewArticle(d, now))
		st.Inserted++
	}
	return out, st
}

// Union folds more into base by article id: articles only in more are
// appended in order, articles in both keep the base fields and gain the
// categories of the other copy.
func Union(base, more []entity.Article) []entity.Article {
	out := make([]entity.Article, len(base), len(base)+len(more))
	index := make(map[string]int, len(base)+len(more))
	for i, a := range base {
		out[i] = a.Clone()
		index[a.ID] = i
	}
	for _, a := range more {
		if i, ok := index[a.ID]; ok {
			out[i].AddCategories(a.Categories...)
			continue
		}
		index[a.ID] = len(out)
		out = append(out, a.Clone())
	}
	return out
}

// MarkStale recomputes IsNew for every article: an article is new while
// now - FirstSeenAt is below window.
func MarkStale(articles []entity.Article, now time.Time, window time.Duration) []entity.Article {
	out := make([]entity.Article, len(articles))
	for i, a := range articles {
		c := a.Clone()
		c.IsNew = now.Sub(a.FirstSeenAt) < window
		out[i] = c
	}
	return out
}

// CountNew returns how many articles are flagged new.
func CountNew(articles []entity.Article) int {
	n := 0
	for _, a := range articles {
		if a.IsNew {
			n++
		}
	}
	return n
}

// SortByRecency stable-sorts a copy of articles by PublishedAt, newest first.
// Articles without a date sort after every dated one, keeping their order.
func SortByRecency(articles []entity.Article) []entity.Article {
	out := make([]entity.Article, len(articles))
	for i, a := range articles {
		out[i] = a.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].PublishedAt, out[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return out
}

// Retain sorts by recency and keeps at most maxRetained articles. It returns
// the kept articles and the number dropped.
func Retain(articles []entity.Article, maxRetained int) ([]entity.Article, int) {
	sorted := SortByRecency(articles)
	if maxRetained < 0 {
		maxRetained = 0
	}
	if len(sorted) <= maxRetained {
		return sorted, 0
	}
	return sorted[:maxRetained], len(sorted) - maxRetained
}

// CategorySet returns every category carried by articles.
func CategorySet(articles []entity.Article) map[string]struct{} {
	set := make(map[string]struct{})
	for _, a := range articles {
		for _, c := range a.Categories {
			set[c] = struct{}{}
		}
	}
	return set
}
