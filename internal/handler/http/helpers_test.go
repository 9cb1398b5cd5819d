package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/usecase/refresh"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func paris(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	return loc
}

func ptr(t time.Time) *time.Time { return &t }

// fakeStore is an in-memory ArticleStore.
type fakeStore struct {
	mu      sync.Mutex
	known   map[string]bool
	resp    refresh.QueryResponse
	err     error
	cats    []refresh.CategoryInfo
	status  refresh.StatusReport
	queries []refresh.QueryRequest
}

func newFakeStore(articles ...entity.Article) *fakeStore {
	return &fakeStore{
		known: map[string]bool{"ios": true, "hardware": true, "apps": true, "services": true, "autres": true},
		resp: refresh.QueryResponse{
			Category:   refresh.CategoryAll,
			LastUpdate: time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC),
			Articles:   articles,
			Refresh:    refresh.Result{Outcome: refresh.OutcomeFresh, Total: len(articles)},
		},
	}
}

func (f *fakeStore) Query(_ context.Context, req refresh.QueryRequest) (refresh.QueryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, req)
	if f.err != nil {
		return refresh.QueryResponse{}, f.err
	}
	resp := f.resp
	resp.Category = refresh.NormalizeCategory(req.Category)
	return resp, nil
}

func (f *fakeStore) KnownCategory(category string) bool {
	c := refresh.NormalizeCategory(category)
	return c == refresh.CategoryAll || f.known[c]
}

func (f *fakeStore) Categories() []refresh.CategoryInfo { return f.cats }

func (f *fakeStore) Status() refresh.StatusReport { return f.status }

func (f *fakeStore) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// fakePinger fails with err.
type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func sampleArticle() entity.Article {
	return entity.Article{
		ID:          entity.ArticleID("https://www.macrumors.com/2025/01/02/iphone-17/"),
		Title:       "iPhone 17 Pro rumored to get a new camera",
		Link:        "https://www.macrumors.com/2025/01/02/iphone-17/",
		Description: "Apple is expected to redesign the camera bump.",
		PublishedAt: ptr(time.Date(2025, 1, 1, 23, 30, 0, 0, time.UTC)),
		Categories:  []string{"ios", "hardware"},
		FirstSeenAt: time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC),
		Source:      "MacRumors",
		IsNew:       true,
	}
}

// mustField returns one raw top-level field of a JSON object.
func mustField(t *testing.T, body []byte, name string) json.RawMessage {
	t.Helper()
	var obj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &obj))
	raw, ok := obj[name]
	require.True(t, ok, "field %q missing in %s", name, body)
	return raw
}
