package scraper

import (
	"context"
	"errors"
	"net"
	"time"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/resilience/retry"
	"rss-digest/internal/usecase/fetch"
)

// Diagnostic statuses.
const (
	DiagnosticOK         = "OK"
	DiagnosticRedirect   = "REDIRECT"
	DiagnosticHTTPError  = "HTTP_ERROR"
	DiagnosticParseError = "PARSE_ERROR"
	DiagnosticEmpty      = "EMPTY"
	DiagnosticTimeout    = "TIMEOUT"
)

// FeedDiagnostic is the probe result for a single feed.
type FeedDiagnostic struct {
	Name         string        `json:"name"`
	URL          string        `json:"url"`
	Status       string        `json:"status"`
	HTTPCode     int           `json:"http_code"`
	ItemCount    int           `json:"item_count"`
	LatestDate   *time.Time    `json:"latest_date,omitempty"`
	FeedType     string        `json:"feed_type"`
	RedirectURL  string        `json:"redirect_url,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// Healthy reports whether the feed can be consumed.
func (d FeedDiagnostic) Healthy() bool {
	return d.Status == DiagnosticOK || d.Status == DiagnosticRedirect
}

// Diagnose probes one source once, bypassing retries and circuit breakers.
func (f *RSSFetcher) Diagnose(ctx context.Context, src entity.FeedSource) FeedDiagnostic {
	diag := FeedDiagnostic{Name: src.Name, URL: src.URL}

	start := time.Now()
	feed, resp, err := f.get(ctx, src.URL)
	diag.ResponseTime = time.Since(start)
	if resp != nil {
		diag.HTTPCode = resp.StatusCode
		if final := resp.Request.URL.String(); final != src.URL {
			diag.RedirectURL = final
		}
	}

	var httpErr *retry.HTTPError
	switch {
	case err == nil:
	case isTimeout(err):
		diag.Status = DiagnosticTimeout
		diag.ErrorMessage = err.Error()
		return diag
	case errors.As(err, &httpErr), errors.Is(err, fetch.ErrSourceFetch):
		diag.Status = DiagnosticHTTPError
		diag.ErrorMessage = err.Error()
		return diag
	default:
		diag.Status = DiagnosticParseError
		diag.ErrorMessage = err.Error()
		return diag
	}

	diag.FeedType = feed.FeedType
	items := toItems(feed)
	diag.ItemCount = len(items)
	for _, it := range items {
		d := it.PublishedParsed
		if d == nil {
			d = it.UpdatedParsed
		}
		if d != nil && (diag.LatestDate == nil || d.After(*diag.LatestDate)) {
			diag.LatestDate = d
		}
	}

	switch {
	case diag.ItemCount == 0:
		diag.Status = DiagnosticEmpty
		diag.ErrorMessage = "feed has no items"
	case diag.RedirectURL != "":
		diag.Status = DiagnosticRedirect
	default:
		diag.Status = DiagnosticOK
	}
	return diag
}

// DiagnoseAll probes every source sequentially, pausing between requests.
func (f *RSSFetcher) DiagnoseAll(ctx context.Context, sources []entity.FeedSource, pause time.Duration) []FeedDiagnostic {
	out := make([]FeedDiagnostic, 0, len(sources))
	for i, src := range sources {
		if i > 0 && pause > 0 {
			select {
			case <-ctx.Done():
				return out
			case <-time.After(pause):
			}
		}
		out = append(out, f.Diagnose(ctx, src))
	}
	return out
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}
