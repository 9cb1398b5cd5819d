package fetch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/observability/metrics"
	"rss-digest/internal/observability/tracing"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// FeedFetcher is an interface for fetching RSS/Atom feeds from a URL.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]FeedItem, error)
}

// FeedItem is one raw entry as the feed library decoded it. Dates are kept
// both parsed and raw so the parser can fall back to a lenient parse.
type FeedItem struct {
	Title       string
	Link        string
	Description string
	Content     string
	Author      string

	// Published is the raw date string of the entry.
	Published       string
	PublishedParsed *time.Time
	UpdatedParsed   *time.Time
}

// SourceResult is the outcome of fetching one source. Exactly one of Items
// and Err is meaningful.
type SourceResult struct {
	Source   entity.FeedSource
	Items    []FeedItem
	Err      error
	Duration time.Duration
}

// OK reports whether the source was fetched and parsed.
func (r SourceResult) OK() bool {
	return r.Err == nil
}

// ContentFetchConfig controls description enrichment.
type ContentFetchConfig struct {
	Parallelism int // concurrent article page fetches per source
}

// Service fetches every configured source.
type Service struct {
	FeedFetcher    FeedFetcher
	ContentFetcher ContentFetcher // nil disables enrichment
	contentConfig  ContentFetchConfig
}

// NewService creates a fetch Service. contentFetcher may be nil.
func NewService(feedFetcher FeedFetcher, contentFetcher ContentFetcher, contentConfig ContentFetchConfig) *Service {
	if contentConfig.Parallelism <= 0 {
		contentConfig.Parallelism = 4
	}
	return &Service{
		FeedFetcher:    feedFetcher,
		ContentFetcher: contentFetcher,
		contentConfig:  contentConfig,
	}
}

// FetchAll fetches all sources concurrently and waits for every one of them.
// Results are returned in registry order regardless of completion order.
func (s *Service) FetchAll(ctx context.Context, sources []entity.FeedSource) []SourceResult {
	results := make([]SourceResult, len(sources))

	// 各ソースは独立: エラーは結果に格納し、errgroup には返さない
	var eg errgroup.Group
	for i, src := range sources {
		eg.Go(func() error {
			results[i] = s.fetchSource(ctx, src)
			return nil
		})
	}
	_ = eg.Wait()

	return results
}

func (s *Service) fetchSource(ctx context.Context, src entity.FeedSource) SourceResult {
	ctx, span := tracing.StartSpan(ctx, "fetch.source",
		attribute.String("feed.url", src.URL),
		attribute.String("feed.name", src.Name))
	defer span.End()

	logger := slog.Default()
	start := time.Now()

	items, err := s.FeedFetcher.Fetch(ctx, src.URL)
	res := SourceResult{Source: src, Duration: time.Since(start)}
	if err != nil {
		res.Err = err
		tracing.RecordError(span, err)
		metrics.RecordSourceFetch(src.Name, classify(err), res.Duration)
		logger.Warn("failed to fetch feed",
			slog.String("source", src.Name),
			slog.String("feed_url", src.URL),
			slog.Duration("duration", res.Duration),
			slog.Any("error", err))
		return res
	}

	if s.ContentFetcher != nil {
		s.enrichDescriptions(ctx, items)
	}

	res.Items = items
	span.SetAttributes(attribute.Int("feed.items", len(items)))
	metrics.RecordSourceFetch(src.Name, metrics.FetchResultSuccess, res.Duration)
	logger.Info("source fetched",
		slog.String("source", src.Name),
		slog.Int("feed_items", len(items)),
		slog.Duration("duration", res.Duration))
	return res
}

// enrichDescriptions fills empty descriptions with an article excerpt.
// Failures leave the item untouched.
func (s *Service) enrichDescriptions(ctx context.Context, items []FeedItem) {
	logger := slog.Default()
	sem := make(chan struct{}, s.contentConfig.Parallelism)
	var eg errgroup.Group

	for i := range items {
		item := &items[i]
		if item.Link == "" || item.Description != "" || item.Content != "" {
			metrics.RecordContentFetchSkipped()
			continue
		}

		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			text, err := s.ContentFetcher.FetchContent(ctx, item.Link)
			d := time.Since(start)
			if err != nil {
				metrics.RecordContentFetchFailed(d)
				logger.Debug("content fetch failed, keeping empty description",
					slog.String("url", item.Link),
					slog.Any("error", err))
				return nil
			}
			metrics.RecordContentFetchSuccess(d)
			item.Description = text
			return nil
		})
	}
	_ = eg.Wait()
}

func classify(err error) string {
	if errors.Is(err, ErrParse) {
		return metrics.FetchResultParseError
	}
	return metrics.FetchResultFetchError
}
