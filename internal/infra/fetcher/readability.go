package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rss-digest/internal/resilience/circuitbreaker"
	"rss-digest/internal/resilience/retry"
	"rss-digest/internal/usecase/fetch"

	"github.com/go-shiori/go-readability"
)

// ReadabilityFetcher implements fetch.ContentFetcher with the Mozilla
// Readability algorithm (go-shiori/go-readability). It returns a plain text
// excerpt of the article page: the page's own excerpt when it has one,
// otherwise its extracted text.
//
// Every URL and redirect target is validated before it is requested, the
// body is size-limited while reading, and all calls share one circuit
// breaker. ReadabilityFetcher is safe for concurrent use.
type ReadabilityFetcher struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	config         ContentFetchConfig
}

// NewReadabilityFetcher creates a new ReadabilityFetcher.
//
// Example:
//
//	cfg := fetcher.DefaultConfig()
//	cf := fetcher.NewReadabilityFetcher(cfg)
//	excerpt, err := cf.FetchContent(ctx, "https://www.macrumors.com/2025/07/29/ios-18-6/")
func NewReadabilityFetcher(config ContentFetchConfig) *ReadabilityFetcher {
	f := &ReadabilityFetcher{
		config: config,
		circuitBreaker: circuitbreaker.New(circuitbreaker.Config{
			Name:             "content-fetch",
			MaxRequests:      5,
			Interval:         60 * time.Second,
			Timeout:          60 * time.Second,
			FailureThreshold: 0.6,
			MinRequests:      5,
		}),
	}

	f.client = &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", fetch.ErrTooManyRedirects, len(via))
			}
			if err := validateURL(req.Context(), req.URL.String(), f.config.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}
			return nil
		},
	}
	return f
}

// FetchContent fetches urlStr and returns its readable excerpt.
func (f *ReadabilityFetcher) FetchContent(ctx context.Context, urlStr string) (string, error) {
	if err := validateURL(ctx, urlStr, f.config.DenyPrivateIPs); err != nil {
		return "", err
	}
	return circuitbreaker.Do(f.circuitBreaker, func() (string, error) {
		return f.doFetch(ctx, urlStr)
	})
}

// IsOpen reports whether the shared breaker currently rejects calls.
func (f *ReadabilityFetcher) IsOpen() bool {
	return f.circuitBreaker.IsOpen()
}

func (f *ReadabilityFetcher) doFetch(ctx context.Context, urlStr string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", fetch.ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: request exceeded %v", fetch.ErrTimeout, f.config.Timeout)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Err != nil {
			return "", urlErr.Err
		}
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", retry.NewHTTPError(resp)
	}

	htmlBytes, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(htmlBytes)) > f.config.MaxBodySize {
		return "", fmt.Errorf("%w: response exceeds %d bytes", fetch.ErrBodyTooLarge, f.config.MaxBodySize)
	}

	// 相対リンク解決のためリダイレクト後の URL を渡す
	pageURL := resp.Request.URL
	article, err := readability.FromReader(bytes.NewReader(htmlBytes), pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", fetch.ErrReadabilityFailed, err)
	}

	if excerpt := strings.TrimSpace(article.Excerpt); excerpt != "" {
		return excerpt, nil
	}
	if text := strings.TrimSpace(article.TextContent); text != "" {
		return text, nil
	}
	return "", fmt.Errorf("%w: no readable content found", fetch.ErrReadabilityFailed)
}
