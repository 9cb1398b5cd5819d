package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/usecase/categorize"
)

// Registry is the feed registry file.
//
//	feeds:
//	  - name: MacRumors iOS
//	    url: https://feeds.macrumors.com/MacRumors-iOS
//	    default_category: ios
//	categories:            # optional, replaces the built-in vocabulary
//	  - name: ios
//	    label: iOS
//	    keywords: [iPhone, iPad]
type Registry struct {
	Feeds      []entity.FeedSource   `yaml:"feeds"`
	Categories []categorize.Category `yaml:"categories,omitempty"`
}

// Vocabulary returns the file vocabulary, or the built-in one when the file
// declares none.
func (r Registry) Vocabulary() []categorize.Category {
	if len(r.Categories) == 0 {
		return categorize.DefaultVocabulary()
	}
	return r.Categories
}

// Validate checks every feed and rejects duplicate URLs.
func (r Registry) Validate() error {
	if len(r.Feeds) == 0 {
		return errors.New("registry has no feeds")
	}
	seen := make(map[string]struct{}, len(r.Feeds))
	for i, f := range r.Feeds {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("feed %d: %w", i, err)
		}
		if _, dup := seen[f.URL]; dup {
			return fmt.Errorf("feed %d: duplicate url %s", i, f.URL)
		}
		seen[f.URL] = struct{}{}
	}
	return nil
}

// DefaultSources returns the built-in Apple news feeds.
func DefaultSources() []entity.FeedSource {
	return []entity.FeedSource{
		{URL: "https://feeds.macrumors.com/MacRumors-All", Name: "MacRumors", DefaultCategory: categorize.DefaultCategory},
		{URL: "https://feeds.macrumors.com/MacRumors-iOS", Name: "MacRumors iOS", DefaultCategory: "ios"},
		{URL: "https://feeds.macrumors.com/MacRumors-Mac", Name: "MacRumors Mac", DefaultCategory: "hardware"},
		{URL: "https://www.imore.com/rss.xml", Name: "iMore", DefaultCategory: categorize.DefaultCategory},
	}
}

// DefaultRegistry returns the built-in registry.
func DefaultRegistry() Registry {
	return Registry{Feeds: DefaultSources()}
}

// LoadRegistry reads the registry at path.
//
// An empty path selects the built-in registry. A missing file also does; when
// writeDefaults is set the built-in registry is written there first so it can
// be edited. A file that exists but does not parse or validate is an error.
func LoadRegistry(logger *slog.Logger, path string, writeDefaults bool) (Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}

	// #nosec G304 -- path comes from FEEDS_FILE, set by the operator
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		reg := DefaultRegistry()
		if !writeDefaults {
			logger.Warn("feed registry not found, using built-in feeds", slog.String("path", path))
			return reg, nil
		}
		if err := WriteRegistry(path, reg); err != nil {
			return Registry{}, err
		}
		logger.Info("feed registry written with built-in feeds", slog.String("path", path))
		return reg, nil
	}
	if err != nil {
		return Registry{}, fmt.Errorf("failed to read feed registry: %w", err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return Registry{}, fmt.Errorf("failed to parse feed registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return Registry{}, fmt.Errorf("invalid feed registry %s: %w", path, err)
	}
	return reg, nil
}

// WriteRegistry writes reg as YAML, creating parent directories.
func WriteRegistry(path string, reg Registry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}
	data, err := yaml.Marshal(reg)
	if err != nil {
		return fmt.Errorf("failed to encode feed registry: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write feed registry: %w", err)
	}
	return nil
}
