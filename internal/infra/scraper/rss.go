// Package scraper provides implementations for fetching RSS/Atom feeds.
// It uses the gofeed library to parse feed content with reliability patterns.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"rss-digest/internal/resilience/circuitbreaker"
	"rss-digest/internal/resilience/retry"
	"rss-digest/internal/usecase/fetch"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"
)

// DefaultUserAgent identifies the fetcher to upstream servers.
const DefaultUserAgent = "rss-digest/1.0 (+feed aggregator)"

// DefaultMaxBodySize bounds a feed document.
const DefaultMaxBodySize int64 = 10 << 20

// feedAccept is sent on every feed request.
const feedAccept = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"

// RSSFetcherConfig tunes an RSSFetcher. Zero values take the defaults.
type RSSFetcherConfig struct {
	UserAgent   string
	MaxBodySize int64
	Retry       retry.Config
	// Breaker builds the per-feed circuit breaker configuration.
	Breaker func(feedURL string) circuitbreaker.Config
}

// RSSFetcher implements fetch.FeedFetcher using the gofeed library.
// Every feed URL gets its own circuit breaker so one broken upstream never
// trips the others; each attempt runs through that breaker inside a retry
// loop.
type RSSFetcher struct {
	client   *http.Client
	cfg      RSSFetcherConfig
	breakers *circuitbreaker.Registry
}

// NewRSSFetcher creates a new RSSFetcher with the given HTTP client.
// The client timeout is the only per-request bound.
func NewRSSFetcher(client *http.Client) *RSSFetcher {
	return NewRSSFetcherWithConfig(client, RSSFetcherConfig{})
}

// NewRSSFetcherWithConfig creates an RSSFetcher with explicit settings.
func NewRSSFetcherWithConfig(client *http.Client, cfg RSSFetcherConfig) *RSSFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.FeedFetchConfig()
	}
	if cfg.Breaker == nil {
		cfg.Breaker = func(feedURL string) circuitbreaker.Config {
			return circuitbreaker.FeedFetchConfig("feed-fetch:" + feedURL)
		}
	}
	return &RSSFetcher{
		client:   client,
		cfg:      cfg,
		breakers: circuitbreaker.NewRegistry(cfg.Breaker),
	}
}

// Fetch retrieves and parses an RSS/Atom feed from the given URL.
// Transport failures and non-2xx responses wrap fetch.ErrSourceFetch;
// documents gofeed cannot parse wrap fetch.ErrParse.
func (f *RSSFetcher) Fetch(ctx context.Context, feedURL string) ([]fetch.FeedItem, error) {
	cb := f.breakers.Get(feedURL)

	var items []fetch.FeedItem
	err := retry.WithBackoff(ctx, f.cfg.Retry, func() error {
		res, err := circuitbreaker.Do(cb, func() ([]fetch.FeedItem, error) {
			return f.doFetch(ctx, feedURL)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				slog.Warn("feed fetch circuit breaker open, request rejected",
					slog.String("service", "feed-fetch"),
					slog.String("url", feedURL),
					slog.String("state", cb.State().String()))
				return fmt.Errorf("%w: %w", fetch.ErrSourceFetch, err)
			}
			return err
		}
		items = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// BreakerStates reports the per-feed breaker states.
func (f *RSSFetcher) BreakerStates() []circuitbreaker.BreakerState {
	return f.breakers.States()
}

// doFetch performs the actual feed fetch without retry or circuit breaker.
func (f *RSSFetcher) doFetch(ctx context.Context, feedURL string) ([]fetch.FeedItem, error) {
	feed, _, err := f.get(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return toItems(feed), nil
}

// get downloads and parses one feed. The response is returned for callers
// that inspect it (status, final URL); its body is already closed.
func (f *RSSFetcher) get(ctx context.Context, feedURL string) (*gofeed.Feed, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: build request: %w", fetch.ErrSourceFetch, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", feedAccept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", fetch.ErrSourceFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp, fmt.Errorf("%w: %w", fetch.ErrSourceFetch, retry.NewHTTPError(resp))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodySize+1))
	if err != nil {
		return nil, resp, fmt.Errorf("%w: read body: %w", fetch.ErrSourceFetch, err)
	}
	if int64(len(body)) > f.cfg.MaxBodySize {
		return nil, resp, fmt.Errorf("%w: body exceeds %d bytes", fetch.ErrSourceFetch, f.cfg.MaxBodySize)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, resp, fmt.Errorf("%w: %w", fetch.ErrParse, err)
	}
	return feed, resp, nil
}

func toItems(feed *gofeed.Feed) []fetch.FeedItem {
	items := make([]fetch.FeedItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		item := fetch.FeedItem{
			Title:           it.Title,
			Link:            it.Link,
			Description:     it.Description,
			Content:         it.Content,
			Published:       it.Published,
			PublishedParsed: utc(it.PublishedParsed),
			UpdatedParsed:   utc(it.UpdatedParsed),
		}
		if item.Published == "" {
			item.Published = it.Updated
		}
		if it.Author != nil {
			item.Author = it.Author.Name
		}
		items = append(items, item)
	}
	return items
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
