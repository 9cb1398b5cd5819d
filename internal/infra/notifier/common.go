package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"rss-digest/internal/domain/entity"
)

// Webhook error types shared by the Discord and Slack notifiers.

// RateLimitError represents a 429 rate limit error from a webhook service.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// ClientError represents a 4xx client error from a webhook service.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// ServerError represents a 5xx server error from a webhook service.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// is429Error checks if the error is a rate limit error and extracts retry_after.
func is429Error(err error) (*RateLimitError, bool) {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr, true
	}
	return nil, false
}

// isRetryableError reports whether another attempt may succeed: server and
// network errors yes, client errors no. Rate limits are handled separately.
func isRetryableError(err error) bool {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return true
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return false
	}
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// truncate shortens text to maxRunes runes, suffix included.
func truncate(text string, maxRunes int, suffix string) string {
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	keep := maxRunes - utf8.RuneCountInString(suffix)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(text)
	return string(runes[:keep]) + suffix
}

// articleTime is the timestamp shown next to an announcement.
func articleTime(article *entity.Article) time.Time {
	if article.PublishedAt != nil {
		return *article.PublishedAt
	}
	return article.FirstSeenAt
}

// parseRetryAfterHeader reads a Retry-After header given in seconds.
func parseRetryAfterHeader(resp *http.Response) (time.Duration, bool) {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

const (
	defaultRetryAfter  = 5 * time.Second
	defaultMaxAttempts = 2
	defaultBaseDelay   = 5 * time.Second
)

// webhook is the HTTP side shared by the chat notifiers: one JSON POST per
// announcement, rate limited and retried.
type webhook struct {
	name        string
	url         string
	httpClient  *http.Client
	rateLimiter *RateLimiter
	maxAttempts int
	baseDelay   time.Duration

	// retryAfter extracts the back-off of a 429 response.
	retryAfter func(resp *http.Response, body []byte) time.Duration
}

func newWebhook(name, webhookURL string, timeout time.Duration, limiter *RateLimiter, retryAfter func(*http.Response, []byte) time.Duration) webhook {
	return webhook{
		name:        name,
		url:         webhookURL,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: limiter,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		retryAfter:  retryAfter,
	}
}

// post sends one request and maps the response status onto the error types.
func (w *webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		// url.Error embeds the webhook URL, which carries the token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Message:    w.name + " rate limit exceeded",
			RetryAfter: w.retryAfter(resp, respBody),
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API client error %d: %s", w.name, resp.StatusCode, respBody),
		}
	case resp.StatusCode >= 500:
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API server error %d: %s", w.name, resp.StatusCode, respBody),
		}
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, respBody)
}

// send marshals payload and delivers it with rate limiting and retries.
func (w *webhook) send(ctx context.Context, article *entity.Article, payload any) error {
	logger := slog.With(
		slog.String("request_id", uuid.New().String()),
		slog.String("channel", w.name),
		slog.String("article_id", article.ID),
		slog.String("link", article.Link))

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	if err := w.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := w.post(ctx, body)
		if err == nil {
			logger.Debug("webhook notification delivered", slog.Int("attempt", attempt))
			return nil
		}
		lastErr = err

		var delay time.Duration
		if rateLimitErr, ok := is429Error(err); ok {
			delay = rateLimitErr.RetryAfter
			logger.Warn("webhook rate limit hit, backing off",
				slog.Duration("retry_after", delay),
				slog.Int("attempt", attempt))
		} else if !isRetryableError(err) {
			logger.Error("webhook notification failed with non-retryable error",
				slog.Any("error", err),
				slog.Int("attempt", attempt))
			return err
		} else {
			delay = w.baseDelay * time.Duration(attempt)
			logger.Warn("webhook request failed, retrying",
				slog.Any("error", err),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
		}

		if attempt == w.maxAttempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
		}
	}

	return fmt.Errorf("%s notification failed after %d attempts: %w", w.name, w.maxAttempts, lastErr)
}
