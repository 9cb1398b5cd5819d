// Package categorize assigns topic categories to article drafts by weighted
// keyword scoring.
//
// Each keyword found in the title scores 2 for its category; a keyword found
// only in the description scores 1. The highest score is the primary category
// and ties go to the category declared first. When nothing matches, the
// fallback chain is FallbackCategory, then the source default, then
// DefaultCategory.
package categorize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"rss-digest/internal/domain/entity"
)

// DefaultCategory is used when neither the source nor the configuration
// names one.
const DefaultCategory = "autres"

const (
	titleWeight       = 2
	descriptionWeight = 1
)

// Policy decides how many categories an article gets.
type Policy string

const (
	// PolicyMulti keeps the primary category followed by every other
	// matching category in declaration order.
	PolicyMulti Policy = "multi"
	// PolicySingle keeps only the primary category.
	PolicySingle Policy = "single"
)

// MatchMode decides how a keyword is searched for.
type MatchMode string

const (
	// MatchWord requires the keyword to start and end at a word boundary.
	// A plural "s" or "es" may follow it, so "iPhone" matches "iPhones"
	// while "Mac" does not match "Macro" and "App" does not match "Apple".
	MatchWord MatchMode = "word"
	// MatchSubstring matches anywhere, case-insensitively.
	MatchSubstring MatchMode = "substring"
)

// Category is one vocabulary entry.
type Category struct {
	Name     string   `yaml:"name"`
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// Config holds the categorizer settings. Zero values select the canonical
// behavior.
type Config struct {
	Vocabulary       []Category
	Policy           Policy
	MatchMode        MatchMode
	FallbackCategory string
	DefaultCategory  string
}

type matcher func(lowered string) bool

type compiledCategory struct {
	name     string
	matchers []matcher
}

// Categorizer is immutable after New and safe for concurrent use.
type Categorizer struct {
	vocab      []compiledCategory
	labels     map[string]string
	policy     Policy
	mode       MatchMode
	fallback   string
	defaultCat string
}

// New validates cfg and compiles the keyword matchers.
func New(cfg Config) (*Categorizer, error) {
	if cfg.Policy == "" {
		cfg.Policy = PolicyMulti
	}
	if cfg.MatchMode == "" {
		cfg.MatchMode = MatchWord
	}
	if cfg.DefaultCategory == "" {
		cfg.DefaultCategory = DefaultCategory
	}
	if cfg.Vocabulary == nil {
		cfg.Vocabulary = DefaultVocabulary()
	}

	switch cfg.Policy {
	case PolicyMulti, PolicySingle:
	default:
		return nil, fmt.Errorf("unknown category policy %q", cfg.Policy)
	}
	switch cfg.MatchMode {
	case MatchWord, MatchSubstring:
	default:
		return nil, fmt.Errorf("unknown keyword match mode %q", cfg.MatchMode)
	}
	if err := entity.ValidateCategoryName(cfg.DefaultCategory); err != nil {
		return nil, fmt.Errorf("default category: %w", err)
	}
	if cfg.FallbackCategory != "" {
		if err := entity.ValidateCategoryName(cfg.FallbackCategory); err != nil {
			return nil, fmt.Errorf("fallback category: %w", err)
		}
	}

	c := &Categorizer{
		labels:     make(map[string]string, len(cfg.Vocabulary)),
		policy:     cfg.Policy,
		mode:       cfg.MatchMode,
		fallback:   cfg.FallbackCategory,
		defaultCat: cfg.DefaultCategory,
	}
	seen := make(map[string]struct{}, len(cfg.Vocabulary))
	for _, cat := range cfg.Vocabulary {
		if err := entity.ValidateCategoryName(cat.Name); err != nil {
			return nil, fmt.Errorf("vocabulary: %w", err)
		}
		if _, dup := seen[cat.Name]; dup {
			return nil, fmt.Errorf("vocabulary: duplicate category %q", cat.Name)
		}
		seen[cat.Name] = struct{}{}

		cc := compiledCategory{name: cat.Name}
		for _, kw := range cat.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			cc.matchers = append(cc.matchers, compile(kw, cfg.MatchMode))
		}
		c.vocab = append(c.vocab, cc)
		if cat.Label != "" {
			c.labels[cat.Name] = cat.Label
		}
	}
	return c, nil
}

func compile(keyword string, mode MatchMode) matcher {
	lowered := strings.ToLower(keyword)
	if mode == MatchSubstring {
		return func(s string) bool { return strings.Contains(s, lowered) }
	}
	re := regexp.MustCompile(`(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(lowered) + `(?:e?s)?(?:$|[^\p{L}\p{N}])`)
	return re.MatchString
}

// Score is the weight one category earned for a draft.
type Score struct {
	Category string
	Score    int
}

// Scores returns the nonzero scores in declaration order.
func (c *Categorizer) Scores(title, description string) []Score {
	t := strings.ToLower(title)
	d := strings.ToLower(description)

	var out []Score
	for _, cat := range c.vocab {
		total := 0
		for _, m := range cat.matchers {
			switch {
			case m(t):
				total += titleWeight
			case m(d):
				total += descriptionWeight
			}
		}
		if total > 0 {
			out = append(out, Score{Category: cat.name, Score: total})
		}
	}
	return out
}

// Categorize returns the ordered, non-empty category list for d.
func (c *Categorizer) Categorize(d entity.ArticleDraft) []string {
	scores := c.Scores(d.Title, d.Description)
	if len(scores) == 0 {
		return []string{c.fallbackFor(d)}
	}

	primary := 0
	for i, s := range scores {
		if s.Score > scores[primary].Score {
			primary = i
		}
	}

	out := []string{scores[primary].Category}
	if c.policy == PolicySingle {
		return out
	}
	for i, s := range scores {
		if i != primary {
			out = append(out, s.Category)
		}
	}
	return out
}

// Apply sets Categories on every draft in place.
func (c *Categorizer) Apply(drafts []entity.ArticleDraft) {
	for i := range drafts {
		drafts[i].Categories = c.Categorize(drafts[i])
	}
}

func (c *Categorizer) fallbackFor(d entity.ArticleDraft) string {
	switch {
	case c.fallback != "":
		return c.fallback
	case d.DefaultCategory != "":
		return d.DefaultCategory
	default:
		return c.defaultCat
	}
}

// Names returns the vocabulary category names in declaration order.
func (c *Categorizer) Names() []string {
	out := make([]string, len(c.vocab))
	for i, cat := range c.vocab {
		out[i] = cat.name
	}
	return out
}

// DefaultCategory returns the last-resort category.
func (c *Categorizer) DefaultCategory() string { return c.defaultCat }

// FallbackCategory returns the configured override, or "".
func (c *Categorizer) FallbackCategory() string { return c.fallback }

// Policy returns the active policy.
func (c *Categorizer) Policy() Policy { return c.policy }

// MatchMode returns the active match mode.
func (c *Categorizer) MatchMode() MatchMode { return c.mode }

// Label returns the display label of a category. Unlabeled names are
// capitalized.
func (c *Categorizer) Label(name string) string {
	if l, ok := c.labels[name]; ok {
		return l
	}
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}
