// Package config assembles the application configuration from environment
// variables and the feed registry file.
//
// Loading is fail-open: an invalid value is logged, counted in the
// app_config_* metrics and replaced by its default, so LoadAppConfig always
// returns a usable configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rss-digest/internal/domain/entity"
	envconfig "rss-digest/internal/pkg/config"
	"rss-digest/internal/usecase/categorize"
	"rss-digest/internal/usecase/merge"
	"rss-digest/internal/usecase/parse"
	"rss-digest/internal/usecase/refresh"
)

// Preset names a bundle of engine defaults. Individual variables still win
// over the preset.
type Preset string

const (
	// PresetCanonical is multi-category, word-bounded matching with 300 rune
	// descriptions.
	PresetCanonical Preset = "canonical"
	// PresetBrowser reproduces the single-category browser digest: substring
	// matching, 200 rune descriptions and "hardware" as fallback.
	PresetBrowser Preset = "browser"
)

// Store backends.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// AppConfig is the configuration shared by the API, the worker and feedctl.
type AppConfig struct {
	Preset Preset

	FeedsFile          string
	FeedsWriteDefaults bool

	RefreshTTL              time.Duration
	MaxRetained             int
	StalenessWindow         time.Duration
	DescriptionMaxLength    int
	CategoryPolicy          categorize.Policy
	KeywordMatch            categorize.MatchMode
	FallbackCategory        string
	MaxDiscoveredCategories int

	StoreBackend string
	SnapshotPath string
	DatabaseURL  string
	SQLitePath   string

	FetchTimeout     time.Duration
	StatusStaleAfter time.Duration

	HTTPAddr         string
	ForceRefreshRate int
	DisplayTimezone  string
}

// DefaultConfig returns the canonical preset.
func DefaultConfig() AppConfig {
	return AppConfig{
		Preset:                  PresetCanonical,
		RefreshTTL:              refresh.DefaultTTL,
		MaxRetained:             merge.DefaultMaxRetained,
		StalenessWindow:         merge.DefaultStalenessWindow,
		DescriptionMaxLength:    parse.DefaultDescriptionLength,
		CategoryPolicy:          categorize.PolicyMulti,
		KeywordMatch:            categorize.MatchWord,
		MaxDiscoveredCategories: refresh.DefaultMaxDiscoveredCategories,
		StoreBackend:            StoreFile,
		SnapshotPath:            "data/articles.json",
		SQLitePath:              "data/articles.db",
		FetchTimeout:            30 * time.Second,
		StatusStaleAfter:        refresh.DefaultStatusStaleAfter,
		HTTPAddr:                ":8080",
		ForceRefreshRate:        6,
		DisplayTimezone:         "Europe/Paris",
	}
}

// ApplyPreset overwrites the engine settings that p controls.
func (c *AppConfig) ApplyPreset(p Preset) {
	c.Preset = p
	switch p {
	case PresetBrowser:
		c.CategoryPolicy = categorize.PolicySingle
		c.KeywordMatch = categorize.MatchSubstring
		c.DescriptionMaxLength = parse.MinDescriptionLength
		c.FallbackCategory = "hardware"
	default:
		c.Preset = PresetCanonical
		c.CategoryPolicy = categorize.PolicyMulti
		c.KeywordMatch = categorize.MatchWord
		c.DescriptionMaxLength = parse.DefaultDescriptionLength
		c.FallbackCategory = ""
	}
}

// Validate checks every field. LoadAppConfig output always passes; it exists
// for configurations assembled in code.
func (c *AppConfig) Validate() error {
	var errs []error
	if err := envconfig.ValidateDuration(c.RefreshTTL, time.Minute, 24*time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("refresh ttl: %w", err))
	}
	if err := envconfig.ValidateIntRange(c.MaxRetained, 1, 1000); err != nil {
		errs = append(errs, fmt.Errorf("max retained: %w", err))
	}
	if err := envconfig.ValidateDuration(c.StalenessWindow, time.Hour, 720*time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("staleness window: %w", err))
	}
	if err := envconfig.ValidateIntRange(c.DescriptionMaxLength, parse.MinDescriptionLength, parse.MaxDescriptionLength); err != nil {
		errs = append(errs, fmt.Errorf("description max length: %w", err))
	}
	if err := envconfig.ValidateOneOf(string(categorize.PolicyMulti), string(categorize.PolicySingle))(string(c.CategoryPolicy)); err != nil {
		errs = append(errs, fmt.Errorf("category policy: %w", err))
	}
	if err := envconfig.ValidateOneOf(string(categorize.MatchWord), string(categorize.MatchSubstring))(string(c.KeywordMatch)); err != nil {
		errs = append(errs, fmt.Errorf("keyword match: %w", err))
	}
	if err := envconfig.ValidateIntRange(c.MaxDiscoveredCategories, 0, 256); err != nil {
		errs = append(errs, fmt.Errorf("max discovered categories: %w", err))
	}
	if err := envconfig.ValidateOneOf(StoreFile, StorePostgres, StoreSQLite)(c.StoreBackend); err != nil {
		errs = append(errs, fmt.Errorf("store backend: %w", err))
	}
	if c.StoreBackend == StorePostgres && c.DatabaseURL == "" {
		errs = append(errs, errors.New("database url: required for the postgres backend"))
	}
	if err := envconfig.ValidatePositiveDuration(c.FetchTimeout); err != nil {
		errs = append(errs, fmt.Errorf("fetch timeout: %w", err))
	}
	if err := envconfig.ValidatePositiveDuration(c.StatusStaleAfter); err != nil {
		errs = append(errs, fmt.Errorf("status stale after: %w", err))
	}
	if err := envconfig.ValidateIntRange(c.ForceRefreshRate, 1, 600); err != nil {
		errs = append(errs, fmt.Errorf("force refresh rate: %w", err))
	}
	if err := envconfig.ValidateTimezone(c.DisplayTimezone); err != nil {
		errs = append(errs, fmt.Errorf("display timezone: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// DisplayLocation resolves DisplayTimezone, UTC when it does not load.
func (c *AppConfig) DisplayLocation() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RefreshConfig projects the engine settings.
func (c *AppConfig) RefreshConfig() refresh.Config {
	return refresh.Config{
		TTL:                     c.RefreshTTL,
		MaxRetained:             c.MaxRetained,
		StalenessWindow:         c.StalenessWindow,
		MaxDiscoveredCategories: c.MaxDiscoveredCategories,
		StatusStaleAfter:        c.StatusStaleAfter,
	}
}

// CategorizerConfig projects the categorizer settings over vocab.
func (c *AppConfig) CategorizerConfig(vocab []categorize.Category) categorize.Config {
	return categorize.Config{
		Vocabulary:       vocab,
		Policy:           c.CategoryPolicy,
		MatchMode:        c.KeywordMatch,
		FallbackCategory: c.FallbackCategory,
	}
}

// LoadAppConfig reads the environment. ENGINE_PRESET is applied first and the
// remaining variables default to the preset values. m may be nil.
func LoadAppConfig(logger *slog.Logger, m *envconfig.ConfigMetrics) AppConfig {
	cfg := DefaultConfig()
	fallback := false

	track := func(field string, r envconfig.ConfigLoadResult) envconfig.ConfigLoadResult {
		if !r.FallbackApplied {
			return r
		}
		fallback = true
		warn := func(field, warning string) {
			logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
		if m != nil {
			m.Track(field, r, warn)
		} else {
			for _, w := range r.Warnings {
				warn(field, w)
			}
		}
		return r
	}

	preset := track("engine_preset", envconfig.LoadEnvWithFallback("ENGINE_PRESET", string(PresetCanonical),
		envconfig.ValidateOneOf(string(PresetCanonical), string(PresetBrowser)))).Value.(string)
	cfg.ApplyPreset(Preset(preset))

	cfg.FeedsFile = envconfig.LoadEnvString("FEEDS_FILE", "")
	cfg.FeedsWriteDefaults = track("feeds_write_defaults", envconfig.LoadEnvBool("FEEDS_WRITE_DEFAULTS", false)).Value.(bool)

	cfg.RefreshTTL = track("refresh_ttl", envconfig.LoadEnvDuration("REFRESH_TTL", cfg.RefreshTTL, func(d time.Duration) error {
		return envconfig.ValidateDuration(d, time.Minute, 24*time.Hour)
	})).Value.(time.Duration)

	cfg.MaxRetained = track("max_retained", envconfig.LoadEnvInt("MAX_RETAINED", cfg.MaxRetained, func(v int) error {
		return envconfig.ValidateIntRange(v, 1, 1000)
	})).Value.(int)

	cfg.StalenessWindow = track("staleness_window", envconfig.LoadEnvDuration("STALENESS_WINDOW", cfg.StalenessWindow, func(d time.Duration) error {
		return envconfig.ValidateDuration(d, time.Hour, 720*time.Hour)
	})).Value.(time.Duration)

	cfg.DescriptionMaxLength = track("description_max_length", envconfig.LoadEnvInt("DESCRIPTION_MAX_LENGTH", cfg.DescriptionMaxLength, func(v int) error {
		return envconfig.ValidateIntRange(v, parse.MinDescriptionLength, parse.MaxDescriptionLength)
	})).Value.(int)

	cfg.CategoryPolicy = categorize.Policy(track("category_policy", envconfig.LoadEnvWithFallback("CATEGORY_POLICY", string(cfg.CategoryPolicy),
		envconfig.ValidateOneOf(string(categorize.PolicyMulti), string(categorize.PolicySingle)))).Value.(string))

	cfg.KeywordMatch = categorize.MatchMode(track("keyword_match", envconfig.LoadEnvWithFallback("KEYWORD_MATCH", string(cfg.KeywordMatch),
		envconfig.ValidateOneOf(string(categorize.MatchWord), string(categorize.MatchSubstring)))).Value.(string))

	cfg.FallbackCategory = track("fallback_category", envconfig.LoadEnvWithFallback("FALLBACK_CATEGORY", cfg.FallbackCategory,
		entity.ValidateCategoryName)).Value.(string)

	cfg.MaxDiscoveredCategories = track("max_discovered_categories", envconfig.LoadEnvInt("MAX_DISCOVERED_CATEGORIES", cfg.MaxDiscoveredCategories, func(v int) error {
		return envconfig.ValidateIntRange(v, 0, 256)
	})).Value.(int)

	cfg.StoreBackend = track("store_backend", envconfig.LoadEnvWithFallback("STORE_BACKEND", cfg.StoreBackend,
		envconfig.ValidateOneOf(StoreFile, StorePostgres, StoreSQLite))).Value.(string)
	cfg.SnapshotPath = envconfig.LoadEnvString("SNAPSHOT_PATH", cfg.SnapshotPath)
	cfg.DatabaseURL = envconfig.LoadEnvString("DATABASE_URL", "")
	cfg.SQLitePath = envconfig.LoadEnvString("SQLITE_PATH", cfg.SQLitePath)

	cfg.FetchTimeout = track("fetch_timeout", envconfig.LoadEnvDuration("FETCH_TIMEOUT", cfg.FetchTimeout, func(d time.Duration) error {
		return envconfig.ValidateDuration(d, time.Second, 5*time.Minute)
	})).Value.(time.Duration)

	cfg.StatusStaleAfter = track("status_stale_after", envconfig.LoadEnvDuration("STATUS_STALE_AFTER", cfg.StatusStaleAfter,
		envconfig.ValidatePositiveDuration)).Value.(time.Duration)

	cfg.HTTPAddr = envconfig.LoadEnvString("HTTP_ADDR", cfg.HTTPAddr)
	cfg.ForceRefreshRate = track("force_refresh_rate", envconfig.LoadEnvInt("FORCE_REFRESH_RATE", cfg.ForceRefreshRate, func(v int) error {
		return envconfig.ValidateIntRange(v, 1, 600)
	})).Value.(int)
	cfg.DisplayTimezone = track("display_timezone", envconfig.LoadEnvWithFallback("DISPLAY_TIMEZONE", cfg.DisplayTimezone,
		envconfig.ValidateTimezone)).Value.(string)

	if m != nil {
		m.SetFallbackActive("", fallback)
		m.RecordLoadTimestamp()
	}
	return cfg
}
