package fetch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rss-digest/internal/domain/entity"
	fetchUC "rss-digest/internal/usecase/fetch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/* ───────── モック実装 ───────── */

// stubFetcher はURLごとに結果を返すFeedFetcherのスタブ
type stubFetcher struct {
	items map[string][]fetchUC.FeedItem
	errs  map[string]error
	delay map[string]time.Duration

	mu    sync.Mutex
	calls []string
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) ([]fetchUC.FeedItem, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	if d := f.delay[url]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return f.items[url], nil
}

type stubContentFetcher struct {
	text  string
	err   error
	calls atomic.Int32
}

func (c *stubContentFetcher) FetchContent(_ context.Context, _ string) (string, error) {
	c.calls.Add(1)
	return c.text, c.err
}

func sources(n int) []entity.FeedSource {
	out := make([]entity.FeedSource, n)
	for i := range out {
		out[i] = entity.FeedSource{
			URL:             fmt.Sprintf("https://feed%d.example.com/rss", i),
			Name:            fmt.Sprintf("Feed %d", i),
			DefaultCategory: "autres",
		}
	}
	return out
}

/* ───────── FetchAll ───────── */

func TestFetchAll_PreservesRegistryOrder(t *testing.T) {
	srcs := sources(3)
	f := &stubFetcher{
		items: map[string][]fetchUC.FeedItem{
			srcs[0].URL: {{Title: "a", Link: "https://a"}},
			srcs[1].URL: {{Title: "b", Link: "https://b"}},
			srcs[2].URL: {{Title: "c", Link: "https://c"}},
		},
		// 最初のソースを最後に完了させる
		delay: map[string]time.Duration{srcs[0].URL: 30 * time.Millisecond},
	}

	svc := fetchUC.NewService(f, nil, fetchUC.ContentFetchConfig{})
	results := svc.FetchAll(context.Background(), srcs)

	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, srcs[i], r.Source)
		assert.True(t, r.OK())
		require.Len(t, r.Items, 1)
	}
	assert.Equal(t, "a", results[0].Items[0].Title)
	assert.Equal(t, "c", results[2].Items[0].Title)
}

func TestFetchAll_OneFailureDoesNotCancelOthers(t *testing.T) {
	srcs := sources(4)
	fetchErr := fmt.Errorf("%w: HTTP 503", fetchUC.ErrSourceFetch)
	f := &stubFetcher{
		items: map[string][]fetchUC.FeedItem{
			srcs[0].URL: {{Link: "https://a"}},
			srcs[2].URL: {{Link: "https://c"}},
			srcs[3].URL: {{Link: "https://d"}},
		},
		errs:  map[string]error{srcs[1].URL: fetchErr},
		delay: map[string]time.Duration{srcs[3].URL: 20 * time.Millisecond},
	}

	svc := fetchUC.NewService(f, nil, fetchUC.ContentFetchConfig{})
	results := svc.FetchAll(context.Background(), srcs)

	require.Len(t, results, 4)
	assert.False(t, results[1].OK())
	assert.ErrorIs(t, results[1].Err, fetchUC.ErrSourceFetch)
	assert.Nil(t, results[1].Items)
	for _, i := range []int{0, 2, 3} {
		assert.True(t, results[i].OK(), "source %d", i)
		assert.Len(t, results[i].Items, 1)
	}
	assert.Len(t, f.calls, 4)
}

func TestFetchAll_AllFail(t *testing.T) {
	srcs := sources(2)
	f := &stubFetcher{errs: map[string]error{
		srcs[0].URL: fmt.Errorf("%w: bad xml", fetchUC.ErrParse),
		srcs[1].URL: errors.New("dial tcp: connection refused"),
	}}

	results := fetchUC.NewService(f, nil, fetchUC.ContentFetchConfig{}).
		FetchAll(context.Background(), srcs)

	for _, r := range results {
		assert.False(t, r.OK())
	}
	assert.ErrorIs(t, results[0].Err, fetchUC.ErrParse)
}

func TestFetchAll_NoSources(t *testing.T) {
	results := fetchUC.NewService(&stubFetcher{}, nil, fetchUC.ContentFetchConfig{}).
		FetchAll(context.Background(), nil)

	assert.Empty(t, results)
}

/* ───────── Description enrichment ───────── */

func TestFetchAll_EnrichesEmptyDescriptions(t *testing.T) {
	srcs := sources(1)
	f := &stubFetcher{items: map[string][]fetchUC.FeedItem{
		srcs[0].URL: {
			{Title: "empty", Link: "https://a"},
			{Title: "has desc", Link: "https://b", Description: "already here"},
			{Title: "has content", Link: "https://c", Content: "<p>body</p>"},
			{Title: "no link"},
		},
	}}
	cf := &stubContentFetcher{text: "extracted excerpt"}

	results := fetchUC.NewService(f, cf, fetchUC.ContentFetchConfig{Parallelism: 2}).
		FetchAll(context.Background(), srcs)

	items := results[0].Items
	assert.Equal(t, "extracted excerpt", items[0].Description)
	assert.Equal(t, "already here", items[1].Description)
	assert.Empty(t, items[2].Description)
	assert.Empty(t, items[3].Description)
	assert.Equal(t, int32(1), cf.calls.Load())
}

func TestFetchAll_EnrichmentFailureKeepsItem(t *testing.T) {
	srcs := sources(1)
	f := &stubFetcher{items: map[string][]fetchUC.FeedItem{
		srcs[0].URL: {{Title: "empty", Link: "https://a"}},
	}}
	cf := &stubContentFetcher{err: fetchUC.ErrPrivateIP}

	results := fetchUC.NewService(f, cf, fetchUC.ContentFetchConfig{}).
		FetchAll(context.Background(), srcs)

	require.True(t, results[0].OK())
	require.Len(t, results[0].Items, 1)
	assert.Empty(t, results[0].Items[0].Description)
}
