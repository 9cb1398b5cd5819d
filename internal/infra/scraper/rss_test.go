package scraper_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/infra/scraper"
	"rss-digest/internal/resilience/circuitbreaker"
	"rss-digest/internal/resilience/retry"
	"rss-digest/internal/usecase/fetch"
)

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>MacRumors: Mac News and Rumors</title>
    <link>https://www.macrumors.com</link>
    <description>Test Description</description>
    <item>
      <title>Apple Releases iOS 18.6</title>
      <link>https://www.macrumors.com/2025/07/29/ios-18-6/</link>
      <description><![CDATA[<p>Apple today released <b>iOS 18.6</b>.</p>]]></description>
      <content:encoded><![CDATA[<p>Full body</p>]]></content:encoded>
      <dc:creator>Juli Clover</dc:creator>
      <pubDate>Tue, 29 Jul 2025 17:05:00 GMT</pubDate>
    </item>
    <item>
      <title>Odd date</title>
      <link>https://www.macrumors.com/odd</link>
      <pubDate>29/07/2025 17h05</pubDate>
    </item>
  </channel>
</rss>`

const atomDoc = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>iMore</title>
  <link href="https://www.imore.com"/>
  <updated>2025-07-29T10:00:00Z</updated>
  <entry>
    <title>Atom Article 1</title>
    <link href="https://www.imore.com/atom1"/>
    <updated>2025-07-29T10:00:00+02:00</updated>
    <summary>Summary 1</summary>
  </entry>
</feed>`

// テスト用に待ち時間をほぼゼロにしたリトライ設定
func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func newFetcher() *scraper.RSSFetcher {
	return scraper.NewRSSFetcherWithConfig(&http.Client{Timeout: 5 * time.Second}, scraper.RSSFetcherConfig{Retry: fastRetry()})
}

func serve(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

/* ───────── Fetch ───────── */

func TestRSSFetcher_Fetch_RSS(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		_, _ = w.Write([]byte(rssDoc))
	}))
	defer srv.Close()

	items, err := newFetcher().Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, scraper.DefaultUserAgent, gotUA)

	first := items[0]
	assert.Equal(t, "Apple Releases iOS 18.6", first.Title)
	assert.Equal(t, "https://www.macrumors.com/2025/07/29/ios-18-6/", first.Link)
	assert.Equal(t, "<p>Apple today released <b>iOS 18.6</b>.</p>", first.Description)
	assert.Equal(t, "<p>Full body</p>", first.Content)
	assert.Equal(t, "Juli Clover", first.Author)
	require.NotNil(t, first.PublishedParsed)
	assert.Equal(t, time.Date(2025, 7, 29, 17, 5, 0, 0, time.UTC), *first.PublishedParsed)

	// gofeed が解釈できない日付は生文字列のまま残る
	assert.Nil(t, items[1].PublishedParsed)
	assert.Equal(t, "29/07/2025 17h05", items[1].Published)
}

func TestRSSFetcher_Fetch_AtomNormalizedToUTC(t *testing.T) {
	srv := serve(t, http.StatusOK, atomDoc, nil)

	items, err := newFetcher().Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://www.imore.com/atom1", items[0].Link)
	require.NotNil(t, items[0].UpdatedParsed)
	assert.Equal(t, time.UTC, items[0].UpdatedParsed.Location())
	assert.Equal(t, 8, items[0].UpdatedParsed.Hour())
}

func TestRSSFetcher_Fetch_EmptyFeed(t *testing.T) {
	srv := serve(t, http.StatusOK, `<?xml version="1.0"?><rss version="2.0"><channel><title>x</title></channel></rss>`, nil)

	items, err := newFetcher().Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRSSFetcher_Fetch_InvalidXML(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, http.StatusOK, "<html><body>not a feed</body></html>", &hits)

	_, err := newFetcher().Fetch(context.Background(), srv.URL)

	assert.ErrorIs(t, err, fetch.ErrParse)
	assert.EqualValues(t, 1, hits.Load(), "parse errors are not retried")
}

func TestRSSFetcher_Fetch_NotFoundIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, http.StatusNotFound, "gone", &hits)

	_, err := newFetcher().Fetch(context.Background(), srv.URL)

	require.ErrorIs(t, err, fetch.ErrSourceFetch)
	var httpErr *retry.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.EqualValues(t, 1, hits.Load())
}

func TestRSSFetcher_Fetch_ServerErrorIsRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(rssDoc))
	}))
	defer srv.Close()

	items, err := newFetcher().Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.EqualValues(t, 3, hits.Load())
}

func TestRSSFetcher_Fetch_BodyTooLarge(t *testing.T) {
	srv := serve(t, http.StatusOK, rssDoc, nil)
	f := scraper.NewRSSFetcherWithConfig(http.DefaultClient, scraper.RSSFetcherConfig{
		MaxBodySize: 64,
		Retry:       fastRetry(),
	})

	_, err := f.Fetch(context.Background(), srv.URL)

	assert.ErrorIs(t, err, fetch.ErrSourceFetch)
	assert.ErrorContains(t, err, "exceeds 64 bytes")
}

func TestRSSFetcher_Fetch_InvalidURL(t *testing.T) {
	_, err := newFetcher().Fetch(context.Background(), "://bad")

	assert.ErrorIs(t, err, fetch.ErrSourceFetch)
}

func TestRSSFetcher_Fetch_ContextCanceled(t *testing.T) {
	srv := serve(t, http.StatusOK, rssDoc, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newFetcher().Fetch(ctx, srv.URL)

	assert.ErrorIs(t, err, context.Canceled)
}

/* ───────── circuit breaker ───────── */

func TestRSSFetcher_BreakerIsPerFeed(t *testing.T) {
	var badHits, goodHits atomic.Int32
	bad := serve(t, http.StatusNotFound, "", &badHits)
	good := serve(t, http.StatusOK, rssDoc, &goodHits)

	f := scraper.NewRSSFetcherWithConfig(http.DefaultClient, scraper.RSSFetcherConfig{
		Retry: fastRetry(),
		Breaker: func(feedURL string) circuitbreaker.Config {
			return circuitbreaker.Config{
				Name: feedURL, MaxRequests: 1, Interval: time.Hour, Timeout: time.Hour,
				FailureThreshold: 1.0, MinRequests: 2,
			}
		},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.Fetch(ctx, bad.URL)
		assert.ErrorIs(t, err, fetch.ErrSourceFetch)
	}
	assert.EqualValues(t, 2, badHits.Load(), "third call rejected by the open breaker")

	_, err := f.Fetch(ctx, good.URL)
	require.NoError(t, err)
	assert.EqualValues(t, 1, goodHits.Load())

	states := f.BreakerStates()
	require.Len(t, states, 2)
	open := 0
	for _, s := range states {
		if strings.HasPrefix(s.State.String(), "open") {
			open++
		}
	}
	assert.Equal(t, 1, open)
}

/* ───────── Diagnose ───────── */

func TestRSSFetcher_Diagnose(t *testing.T) {
	okSrv := serve(t, http.StatusOK, rssDoc, nil)
	emptySrv := serve(t, http.StatusOK, `<rss version="2.0"><channel><title>x</title></channel></rss>`, nil)
	errSrv := serve(t, http.StatusInternalServerError, "", nil)
	htmlSrv := serve(t, http.StatusOK, "<html></html>", nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(atomDoc)) })
	redirSrv := httptest.NewServer(mux)
	defer redirSrv.Close()

	f := newFetcher()
	got := f.DiagnoseAll(context.Background(), []entity.FeedSource{
		{Name: "ok", URL: okSrv.URL},
		{Name: "empty", URL: emptySrv.URL},
		{Name: "down", URL: errSrv.URL},
		{Name: "html", URL: htmlSrv.URL},
		{Name: "moved", URL: redirSrv.URL + "/old"},
	}, 0)

	require.Len(t, got, 5)

	assert.Equal(t, scraper.DiagnosticOK, got[0].Status)
	assert.Equal(t, 2, got[0].ItemCount)
	assert.Equal(t, "rss", got[0].FeedType)
	require.NotNil(t, got[0].LatestDate)
	assert.Equal(t, 2025, got[0].LatestDate.Year())
	assert.True(t, got[0].Healthy())

	assert.Equal(t, scraper.DiagnosticEmpty, got[1].Status)
	assert.False(t, got[1].Healthy())

	assert.Equal(t, scraper.DiagnosticHTTPError, got[2].Status)
	assert.Equal(t, http.StatusInternalServerError, got[2].HTTPCode)

	assert.Equal(t, scraper.DiagnosticParseError, got[3].Status)

	assert.Equal(t, scraper.DiagnosticRedirect, got[4].Status)
	assert.Equal(t, redirSrv.URL+"/new", got[4].RedirectURL)
	assert.Equal(t, "atom", got[4].FeedType)
}
