package parse_test

import (
	"strings"
	"testing"
	"time"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/usecase/fetch"
	"rss-digest/internal/usecase/parse"
	"rss-digest/internal/utils/text"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var macrumors = entity.FeedSource{
	URL:             "https://feeds.macrumors.com/MacRumors-iOS",
	Name:            "MacRumors iOS",
	DefaultCategory: "ios",
}

func ptr(t time.Time) *time.Time { return &t }

/* ───────── Config ───────── */

func TestNew_ClampsLength(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 300},
		{50, 200},
		{200, 200},
		{250, 250},
		{1000, 300},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parse.New(parse.Config{DescriptionMaxLength: tt.in}).DescriptionMaxLength())
	}
}

/* ───────── Normalize ───────── */

func TestNormalize_Basic(t *testing.T) {
	pub := time.Date(2025, 1, 2, 15, 4, 5, 0, time.FixedZone("EST", -5*3600))
	item := fetch.FeedItem{
		Title:           "  Apple Releases   iOS 18.3  ",
		Link:            " https://www.macrumors.com/2025/01/02/ios-18-3/ ",
		Description:     "<p>Apple today released <b>iOS 18.3</b>.</p><script>track()</script>",
		PublishedParsed: &pub,
	}

	got, ok := parse.New(parse.Config{}).Normalize(item, macrumors)

	require.True(t, ok)
	want := entity.ArticleDraft{
		Title:           "Apple Releases iOS 18.3",
		Link:            "https://www.macrumors.com/2025/01/02/ios-18-3/",
		PublishedAt:     ptr(pub.UTC()),
		Description:     "Apple today released iOS 18.3.",
		Source:          "MacRumors iOS",
		DefaultCategory: "ios",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_DropsItemWithoutLink(t *testing.T) {
	_, ok := parse.New(parse.Config{}).Normalize(fetch.FeedItem{Title: "orphan", Link: "   "}, macrumors)

	assert.False(t, ok)
}

func TestNormalize_EmptyTitleDefaultsToLink(t *testing.T) {
	got, ok := parse.New(parse.Config{}).Normalize(fetch.FeedItem{Link: "https://example.com/a"}, macrumors)

	require.True(t, ok)
	assert.Equal(t, "https://example.com/a", got.Title)
	assert.Empty(t, got.Description)
	assert.Nil(t, got.PublishedAt)
}

func TestNormalize_FallsBackToContent(t *testing.T) {
	item := fetch.FeedItem{Link: "https://example.com/a", Content: "<div>Full body</div>"}

	got, _ := parse.New(parse.Config{}).Normalize(item, macrumors)

	assert.Equal(t, "Full body", got.Description)
}

func TestNormalize_SourceNameFallsBackToHost(t *testing.T) {
	got, _ := parse.New(parse.Config{}).Normalize(
		fetch.FeedItem{Link: "https://www.imore.com/post"},
		entity.FeedSource{URL: "https://www.imore.com/rss.xml"})

	assert.Equal(t, "www.imore.com", got.Source)
}

func TestNormalize_Truncation(t *testing.T) {
	long := strings.Repeat("word ", 100)
	tests := []struct {
		name    string
		max     int
		input   string
		wantLen int
		ellipse bool
	}{
		{name: "long at 300", max: 300, input: long, wantLen: 300, ellipse: true},
		{name: "long at 200", max: 200, input: long, wantLen: 200, ellipse: true},
		{name: "exact fits", max: 200, input: strings.Repeat("a", 200), wantLen: 200, ellipse: false},
		{name: "short", max: 300, input: "short", wantLen: 5, ellipse: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := parse.New(parse.Config{DescriptionMaxLength: tt.max}).
				Normalize(fetch.FeedItem{Link: "https://x", Description: tt.input}, macrumors)

			assert.LessOrEqual(t, text.CountRunes(got.Description), tt.max)
			assert.Equal(t, tt.ellipse, strings.HasSuffix(got.Description, "..."))
			if !tt.ellipse {
				assert.Equal(t, tt.wantLen, text.CountRunes(got.Description))
			}
		})
	}
}

/* ───────── SanitizeHTML ───────── */

func TestSanitizeHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain text", in: "  just   text ", want: "just text"},
		{name: "tags removed", in: "<p>Hello <a href='x'>world</a></p>", want: "Hello world"},
		{name: "script and style removed", in: "<style>p{}</style><p>Body</p><script>alert(1)</script>", want: "Body"},
		{name: "entities decoded", in: "Apple &amp; Google &eacute;t&eacute;", want: "Apple & Google été"},
		{name: "blocks separated", in: "<p>one</p><p>two</p>line<br>break", want: "one two line break"},
		{name: "feed footer image", in: `Story text<img src="https://feeds.feedburner.com/~r/x.gif">`, want: "Story text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parse.SanitizeHTML(tt.in))
		})
	}
}

/* ───────── PublishedAt ───────── */

func TestPublishedAt(t *testing.T) {
	published := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		item fetch.FeedItem
		want *time.Time
	}{
		{
			name: "published wins",
			item: fetch.FeedItem{PublishedParsed: &published, UpdatedParsed: &updated},
			want: &published,
		},
		{
			name: "updated when no published",
			item: fetch.FeedItem{UpdatedParsed: &updated},
			want: &updated,
		},
		{
			name: "lenient raw parse",
			item: fetch.FeedItem{Published: "2025-03-01 10:00:00"},
			want: &published,
		},
		{
			name: "raw RFC1123 without parsed value",
			item: fetch.FeedItem{Published: "Sat, 01 Mar 2025 10:00:00 GMT"},
			want: &published,
		},
		{
			name: "garbage is nil",
			item: fetch.FeedItem{Published: "sometime last week"},
			want: nil,
		},
		{
			name: "nothing is nil",
			item: fetch.FeedItem{},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parse.PublishedAt(tt.item)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %v want %v", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

/* ───────── NormalizeAll ───────── */

func TestNormalizeAll_SkipsFailedSourcesAndKeepsOrder(t *testing.T) {
	imore := entity.FeedSource{URL: "https://www.imore.com/rss.xml", Name: "iMore", DefaultCategory: "autres"}
	results := []fetch.SourceResult{
		{Source: macrumors, Items: []fetch.FeedItem{
			{Title: "first", Link: "https://a"},
			{Title: "no link"},
			{Title: "second", Link: "https://b"},
		}},
		{Source: entity.FeedSource{Name: "broken"}, Err: fetch.ErrParse},
		{Source: imore, Items: []fetch.FeedItem{{Title: "third", Link: "https://c"}}},
	}

	drafts := parse.New(parse.Config{}).NormalizeAll(results)

	titles := make([]string, len(drafts))
	for i, d := range drafts {
		titles[i] = d.Title
	}
	assert.Equal(t, []string{"first", "second", "third"}, titles)
	assert.Equal(t, "autres", drafts[2].DefaultCategory)
}
