// Package parse turns raw feed items into article drafts: sanitized and
// truncated descriptions, best-effort publish dates and a usable title.
package parse

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/observability/metrics"
	"rss-digest/internal/usecase/fetch"
	"rss-digest/internal/utils/text"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// Description length bounds, in runes.
const (
	MinDescriptionLength     = 200
	MaxDescriptionLength     = 300
	DefaultDescriptionLength = 300
)

// Config holds the parser settings.
type Config struct {
	DescriptionMaxLength int
}

// Parser normalizes feed items. It is safe for concurrent use.
type Parser struct {
	maxLen int
}

// New returns a Parser. Out of range lengths are clamped to 200..300.
func New(cfg Config) *Parser {
	n := cfg.DescriptionMaxLength
	switch {
	case n == 0:
		n = DefaultDescriptionLength
	case n < MinDescriptionLength:
		n = MinDescriptionLength
	case n > MaxDescriptionLength:
		n = MaxDescriptionLength
	}
	return &Parser{maxLen: n}
}

// DescriptionMaxLength returns the effective description cap.
func (p *Parser) DescriptionMaxLength() int {
	return p.maxLen
}

// Normalize converts one item. It reports false when the item has no link,
// since an article without a link has no identity.
func (p *Parser) Normalize(item fetch.FeedItem, src entity.FeedSource) (entity.ArticleDraft, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		return entity.ArticleDraft{}, false
	}

	title := text.CollapseSpace(item.Title)
	if title == "" {
		title = link
	}

	raw := item.Description
	if strings.TrimSpace(raw) == "" {
		raw = item.Content
	}

	return entity.ArticleDraft{
		Title:           title,
		Link:            link,
		PublishedAt:     PublishedAt(item),
		Description:     text.Truncate(SanitizeHTML(raw), p.maxLen),
		Source:          sourceName(src, link),
		DefaultCategory: src.DefaultCategory,
	}, true
}

// NormalizeAll converts the items of every successful source, in source order
// then feed order. Failed sources contribute nothing.
func (p *Parser) NormalizeAll(results []fetch.SourceResult) []entity.ArticleDraft {
	var (
		drafts  []entity.ArticleDraft
		dropped int
	)
	for _, r := range results {
		if !r.OK() {
			continue
		}
		for _, item := range r.Items {
			d, ok := p.Normalize(item, r.Source)
			if !ok {
				dropped++
				slog.Debug("dropping feed item without link",
					slog.String("source", r.Source.Name),
					slog.String("title", item.Title))
				continue
			}
			drafts = append(drafts, d)
		}
	}
	metrics.RecordFeedItems(len(drafts), dropped)
	return drafts
}

// SanitizeHTML returns the visible text of an HTML fragment: tags and
// script/style content removed, entities decoded, white space collapsed.
func SanitizeHTML(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	if !strings.ContainsAny(fragment, "<&") {
		return text.CollapseSpace(fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return text.CollapseSpace(fragment)
	}
	doc.Find("script, style, noscript, template").Remove()
	// ブロック要素の境界で単語が連結しないよう空白を挿入
	doc.Find("br, p, div, li, tr, h1, h2, h3, h4, h5, h6, blockquote").AfterHtml(" ")

	return text.CollapseSpace(doc.Text())
}

// PublishedAt picks the publish date, then the updated date, then a lenient
// parse of the raw string. It returns nil when none is usable.
func PublishedAt(item fetch.FeedItem) *time.Time {
	for _, t := range []*time.Time{item.PublishedParsed, item.UpdatedParsed} {
		if t != nil && !t.IsZero() {
			u := t.UTC()
			return &u
		}
	}

	raw := strings.TrimSpace(item.Published)
	if raw == "" {
		return nil
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		slog.Debug("unparsable feed date",
			slog.String("raw", raw),
			slog.String("link", item.Link))
		return nil
	}
	u := t.UTC()
	return &u
}

func sourceName(src entity.FeedSource, link string) string {
	if src.Name != "" {
		return src.Name
	}
	if u, err := url.Parse(link); err == nil && u.Host != "" {
		return u.Host
	}
	return src.URL
}
