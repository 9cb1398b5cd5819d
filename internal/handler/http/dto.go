package http

import (
	"fmt"
	"time"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/usecase/refresh"
)

// LastUpdateLayout is the layout of last_update and the status timestamps.
const LastUpdateLayout = "2006-01-02 15:04:05"

var frenchMonths = [...]string{
	"Janvier", "Février", "Mars", "Avril", "Mai", "Juin",
	"Juillet", "Août", "Septembre", "Octobre", "Novembre", "Décembre",
}

// FrenchDate formats t as "02 Janvier 2025" in loc. A nil t yields "".
func FrenchDate(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	lt := t.In(loc)
	return fmt.Sprintf("%02d %s %d", lt.Day(), frenchMonths[lt.Month()-1], lt.Year())
}

// formatLocal formats t with LastUpdateLayout in loc; zero yields "".
func formatLocal(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(LastUpdateLayout)
}

// ArticleDTO is one article in API responses.
type ArticleDTO struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Description string     `json:"description"`
	PublishedAt *time.Time `json:"published_at"`
	Date        string     `json:"date"`
	Categories  []string   `json:"categories"`
	Category    string     `json:"category"`
	Source      string     `json:"source"`
	IsNew       bool       `json:"is_new"`
	FirstSeenAt time.Time  `json:"first_seen_at"`
}

// NewArticleDTO converts a stored article.
func NewArticleDTO(a entity.Article, loc *time.Location) ArticleDTO {
	cats := a.Categories
	if cats == nil {
		cats = []string{}
	}
	return ArticleDTO{
		ID:          a.ID,
		Title:       a.Title,
		Link:        a.Link,
		Description: a.Description,
		PublishedAt: a.PublishedAt,
		Date:        FrenchDate(a.PublishedAt, loc),
		Categories:  cats,
		Category:    a.PrimaryCategory(),
		Source:      a.Source,
		IsNew:       a.IsNew,
		FirstSeenAt: a.FirstSeenAt,
	}
}

// RefreshDTO summarizes the refresh attempt made for a request.
type RefreshDTO struct {
	Outcome       string   `json:"outcome"`
	Ran           bool     `json:"ran"`
	Inserted      int      `json:"inserted"`
	Merged        int      `json:"merged"`
	Dropped       int      `json:"dropped"`
	FailedSources []string `json:"failed_sources,omitempty"`
	DurationMS    int64    `json:"duration_ms"`
}

func newRefreshDTO(r refresh.Result) RefreshDTO {
	return RefreshDTO{
		Outcome:       r.Outcome,
		Ran:           r.Ran,
		Inserted:      r.Inserted,
		Merged:        r.Merged,
		Dropped:       r.Dropped,
		FailedSources: r.FailedSources,
		DurationMS:    r.Duration.Milliseconds(),
	}
}

// ArticlesResponse is the body of GET /articles.
type ArticlesResponse struct {
	Status     string       `json:"status"`
	Count      int          `json:"count"`
	Category   string       `json:"category"`
	LastUpdate string       `json:"last_update"`
	Articles   []ArticleDTO `json:"articles"`
	Refresh    RefreshDTO   `json:"refresh"`
	Warning    string       `json:"warning,omitempty"`
}

// NewArticlesResponse converts a query result.
func NewArticlesResponse(q refresh.QueryResponse, loc *time.Location) ArticlesResponse {
	items := make([]ArticleDTO, 0, len(q.Articles))
	for _, a := range q.Articles {
		items = append(items, NewArticleDTO(a, loc))
	}
	return ArticlesResponse{
		Status:     "success",
		Count:      len(items),
		Category:   q.Category,
		LastUpdate: formatLocal(q.LastUpdate, loc),
		Articles:   items,
		Refresh:    newRefreshDTO(q.Refresh),
		Warning:    q.Warning,
	}
}

// CategoryDTO is one entry of GET /categories.
type CategoryDTO struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Count      int    `json:"count"`
	Predefined bool   `json:"predefined"`
}

// CategoriesResponse is the body of GET /categories.
type CategoriesResponse struct {
	Status     string        `json:"status"`
	Count      int           `json:"count"`
	Categories []CategoryDTO `json:"categories"`
}

// NewCategoriesResponse converts the category listing.
func NewCategoriesResponse(infos []refresh.CategoryInfo) CategoriesResponse {
	out := make([]CategoryDTO, 0, len(infos))
	for _, c := range infos {
		out = append(out, CategoryDTO{Name: c.Name, Label: c.Label, Count: c.Count, Predefined: c.Predefined})
	}
	return CategoriesResponse{Status: "success", Count: len(out), Categories: out}
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status        string     `json:"status"`
	Articles      int        `json:"articles"`
	NewArticles   int        `json:"new_articles"`
	Sources       int        `json:"sources"`
	LastUpdate    string     `json:"last_update"`
	LastRefreshAt *time.Time `json:"last_refresh_at"`
	AgeSeconds    int64      `json:"age_seconds"`
	LastCycle     RefreshDTO `json:"last_cycle"`
	Warnings      []string   `json:"warnings"`
}

// NewStatusResponse converts a status report.
func NewStatusResponse(rep refresh.StatusReport, loc *time.Location) StatusResponse {
	resp := StatusResponse{
		Status:      rep.Status,
		Articles:    rep.Articles,
		NewArticles: rep.NewArticles,
		Sources:     rep.Sources,
		LastUpdate:  formatLocal(rep.LastRefreshAt, loc),
		AgeSeconds:  int64(rep.Age / time.Second),
		LastCycle:   newRefreshDTO(rep.LastCycle),
		Warnings:    rep.Warnings,
	}
	if !rep.LastRefreshAt.IsZero() {
		t := rep.LastRefreshAt.UTC()
		resp.LastRefreshAt = &t
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	return resp
}
