package categorize_test

import (
	"testing"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/usecase/categorize"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNew(t *testing.T, cfg categorize.Config) *categorize.Categorizer {
	t.Helper()
	c, err := categorize.New(cfg)
	require.NoError(t, err)
	return c
}

func draft(title, desc, def string) entity.ArticleDraft {
	return entity.ArticleDraft{Title: title, Description: desc, Link: "https://example.com/" + title, DefaultCategory: def}
}

/* ───────── New ───────── */

func TestNew_Defaults(t *testing.T) {
	c := mustNew(t, categorize.Config{})

	assert.Equal(t, categorize.PolicyMulti, c.Policy())
	assert.Equal(t, categorize.MatchWord, c.MatchMode())
	assert.Equal(t, "autres", c.DefaultCategory())
	assert.Empty(t, c.FallbackCategory())
	assert.Equal(t, []string{"ios", "hardware", "apps", "services"}, c.Names())
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  categorize.Config
	}{
		{name: "bad policy", cfg: categorize.Config{Policy: "many"}},
		{name: "bad match mode", cfg: categorize.Config{MatchMode: "regex"}},
		{name: "reserved fallback", cfg: categorize.Config{FallbackCategory: "all"}},
		{name: "uppercase default", cfg: categorize.Config{DefaultCategory: "Autres"}},
		{name: "duplicate vocabulary", cfg: categorize.Config{Vocabulary: []categorize.Category{
			{Name: "ios"}, {Name: "ios"},
		}}},
		{name: "reserved vocabulary name", cfg: categorize.Config{Vocabulary: []categorize.Category{
			{Name: "tous"},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := categorize.New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

/* ───────── Categorize ───────── */

func TestCategorize_Canonical(t *testing.T) {
	c := mustNew(t, categorize.Config{})

	tests := []struct {
		name  string
		draft entity.ArticleDraft
		want  []string
	}{
		{
			name:  "iphone headline",
			draft: draft("New iPhone 17 announced", "", "autres"),
			want:  []string{"ios"},
		},
		{
			name:  "title beats description",
			draft: draft("MacBook Pro review", "Runs iOS apps through the App Store", "autres"),
			// hardware: MacBook Pro(2)+MacBook(2)=4 in title; ios: iOS(1)+App Store(1)=2; apps: App(1)=1
			want: []string{"hardware", "ios", "apps"},
		},
		{
			name:  "tie goes to declaration order",
			draft: draft("iCloud and Siri", "", "autres"),
			want:  []string{"ios", "services"},
		},
		{
			name:  "no match uses source default",
			draft: draft("Quarterly earnings call", "Revenue up", "hardware"),
			want:  []string{"hardware"},
		},
		{
			name:  "no match and no source default",
			draft: draft("Quarterly earnings call", "", ""),
			want:  []string{"autres"},
		},
		{
			name:  "word mode does not match inside words",
			draft: draft("Macro economics and Mailchimp", "", "autres"),
			want:  []string{"autres"},
		},
		{
			name:  "plural keywords",
			draft: draft("Apple unveils new iPhones and MacBooks", "", "autres"),
			want:  []string{"ios", "hardware"},
		},
		{
			name:  "plural app keyword",
			draft: draft("Best iPad apps for students", "", "autres"),
			want:  []string{"ios", "apps"},
		},
		{
			name:  "only plural suffixes extend a keyword",
			draft: draft("Apples, Macros and Mailchimp", "", "autres"),
			want:  []string{"autres"},
		},
		{
			name:  "case insensitive and accented keyword",
			draft: draft("Une MISE À JOUR pour Safari", "", "autres"),
			want:  []string{"apps"},
		},
		{
			name:  "keyword with punctuation",
			draft: draft("Apple TV+ adds a new show", "", "autres"),
			want:  []string{"services"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Categorize(tt.draft)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got)
		})
	}
}

func TestCategorize_Deterministic(t *testing.T) {
	c := mustNew(t, categorize.Config{})
	d := draft("Apple Music and AirPods update", "New iOS features for iPad", "autres")

	first := c.Categorize(d)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, c.Categorize(d))
	}
}

func TestCategorize_SinglePolicy(t *testing.T) {
	c := mustNew(t, categorize.Config{Policy: categorize.PolicySingle})

	got := c.Categorize(draft("MacBook Pro review", "Runs iOS apps through the App Store", "autres"))

	assert.Equal(t, []string{"hardware"}, got)
}

func TestCategorize_SubstringMode(t *testing.T) {
	c := mustNew(t, categorize.Config{MatchMode: categorize.MatchSubstring})

	got := c.Categorize(draft("Macro economics", "", "autres"))

	assert.Equal(t, []string{"hardware"}, got, "substring mode matches Mac inside Macro")
}

func TestCategorize_FallbackOverridesSourceDefault(t *testing.T) {
	c := mustNew(t, categorize.Config{FallbackCategory: "hardware"})

	got := c.Categorize(draft("Quarterly earnings call", "", "ios"))

	assert.Equal(t, []string{"hardware"}, got)
}

func TestCategorize_CustomVocabulary(t *testing.T) {
	c := mustNew(t, categorize.Config{
		Vocabulary: []categorize.Category{
			{Name: "security", Keywords: []string{"CVE", "patch", " "}},
		},
		DefaultCategory: "misc",
	})

	assert.Equal(t, []string{"security"}, c.Categorize(draft("Patch for CVE-2025-1234", "", "")))
	assert.Equal(t, []string{"misc"}, c.Categorize(draft("Hello", "", "")))
}

func TestApply(t *testing.T) {
	c := mustNew(t, categorize.Config{})
	drafts := []entity.ArticleDraft{
		draft("New iPhone 17 announced", "", "autres"),
		draft("Nothing relevant", "", "ios"),
	}

	c.Apply(drafts)

	assert.Equal(t, []string{"ios"}, drafts[0].Categories)
	assert.Equal(t, []string{"ios"}, drafts[1].Categories)
}

/* ───────── Scores / Label ───────── */

func TestScores(t *testing.T) {
	c := mustNew(t, categorize.Config{})

	got := c.Scores("iPhone and iPad", "Siri is better")

	assert.Equal(t, []categorize.Score{{Category: "ios", Score: 5}}, got)
}

func TestLabel(t *testing.T) {
	c := mustNew(t, categorize.Config{})

	assert.Equal(t, "iOS", c.Label("ios"))
	assert.Equal(t, "Services", c.Label("services"))
	assert.Equal(t, "Autres", c.Label("autres"))
	assert.Equal(t, "", c.Label(""))
}

func TestDefaultVocabulary_IsCopy(t *testing.T) {
	v := categorize.DefaultVocabulary()
	v[0].Name = "mutated"

	assert.Equal(t, "ios", categorize.DefaultVocabulary()[0].Name)
}
