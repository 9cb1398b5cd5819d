package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rss-digest/internal/infra/fetcher"
)

func generateArticleHTML(paragraphs int) string {
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html><html><head><title>Bench</title></head><body><article><h1>Bench</h1>`)
	for i := 0; i < paragraphs; i++ {
		sb.WriteString(`<p>Apple today released an update with performance improvements and bug fixes for all supported devices.</p>`)
	}
	sb.WriteString(`</article></body></html>`)
	return sb.String()
}

func benchmarkFetch(b *testing.B, paragraphs int) {
	page := generateArticleHTML(paragraphs)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	f := fetcher.NewReadabilityFetcher(localConfig())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = f.FetchContent(context.Background(), srv.URL)
	}
}

func BenchmarkFetchContent_Small(b *testing.B) { benchmarkFetch(b, 5) }

func BenchmarkFetchContent_Large(b *testing.B) { benchmarkFetch(b, 500) }
