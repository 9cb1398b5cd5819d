// Package entity defines the core domain entities of the aggregation engine:
// feed sources, transient article drafts, persisted articles, store snapshots
// and the category registry, together with their validation rules and
// domain-specific errors.
package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"time"
)

// ArticleDraft is one parsed feed item for the current refresh cycle.
// It is discarded once merged into the store.
type ArticleDraft struct {
	Title       string
	Link        string
	PublishedAt *time.Time // nil when the feed date could not be parsed
	Description string
	Source      string

	// DefaultCategory is the source's category, used when no keyword matches.
	DefaultCategory string

	// Categories is filled by the categorizer; primary category first.
	Categories []string
}

// ID returns the identity the draft merges under.
func (d ArticleDraft) ID() string {
	return ArticleID(d.Link)
}

// Article is the deduplicated, persisted representation of a feed item.
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Description string     `json:"description"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Categories  []string   `json:"categories"`
	FirstSeenAt time.Time  `json:"first_seen_at"`
	Source      string     `json:"source"`

	// IsNew is derived from FirstSeenAt on every cycle and never persisted.
	IsNew bool `json:"-"`
}

// ArticleID derives the stable article identity from the exact link bytes.
func ArticleID(link string) string {
	sum := sha256.Sum256([]byte(link))
	return hex.EncodeToString(sum[:])
}

// NewArticle creates the article for the first sighting of a draft.
func NewArticle(d ArticleDraft, now time.Time) Article {
	a := Article{
		ID:          d.ID(),
		Title:       d.Title,
		Link:        d.Link,
		Description: d.Description,
		FirstSeenAt: now,
		Source:      d.Source,
		IsNew:       true,
	}
	if d.PublishedAt != nil {
		t := *d.PublishedAt
		a.PublishedAt = &t
	}
	a.AddCategories(d.Categories...)
	return a
}

// PrimaryCategory returns the first category, or "" for an article without
// categories.
func (a Article) PrimaryCategory() string {
	if len(a.Categories) == 0 {
		return ""
	}
	return a.Categories[0]
}

// HasCategory reports whether the article is tagged with name.
func (a Article) HasCategory(name string) bool {
	return slices.Contains(a.Categories, name)
}

// AddCategories appends every category not already present, preserving order.
// It reports whether anything was added.
func (a *Article) AddCategories(names ...string) bool {
	changed := false
	for _, n := range names {
		if n == "" || a.HasCategory(n) {
			continue
		}
		a.Categories = append(a.Categories, n)
		changed = true
	}
	return changed
}

// Clone returns a deep copy so callers can mutate it without touching the
// store's view.
func (a Article) Clone() Article {
	c := a
	c.Categories = slices.Clone(a.Categories)
	if a.PublishedAt != nil {
		t := *a.PublishedAt
		c.PublishedAt = &t
	}
	return c
}

// Validate checks the persisted invariants.
func (a Article) Validate() error {
	if a.Link == "" {
		return &ValidationError{Field: "link", Message: "link is required"}
	}
	if a.ID != ArticleID(a.Link) {
		return &ValidationError{Field: "id", Message: "id does not match link"}
	}
	if len(a.Categories) == 0 {
		return &ValidationError{Field: "categories", Message: "at least one category is required"}
	}
	return nil
}
