package fetcher

import (
	"fmt"
	"log/slog"
	"time"

	"rss-digest/internal/pkg/config"
)

// ContentFetchConfig holds the configuration for excerpt fetching.
type ContentFetchConfig struct {
	// Enabled turns enrichment on. Off by default: feeds normally carry a
	// description and fetching article pages multiplies upstream traffic.
	Enabled bool

	// Timeout bounds one article page request.
	Timeout time.Duration

	// Parallelism is the number of concurrent page fetches per source.
	Parallelism int

	// MaxBodySize is enforced while reading, not from Content-Length.
	MaxBodySize int64

	// MaxRedirects caps followed redirects; every target is validated.
	MaxRedirects int

	// DenyPrivateIPs blocks hosts resolving to private addresses.
	DenyPrivateIPs bool

	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultConfig returns the default configuration for content fetching.
func DefaultConfig() ContentFetchConfig {
	return ContentFetchConfig{
		Enabled:        false,
		Timeout:        10 * time.Second,
		Parallelism:    4,
		MaxBodySize:    5 * 1024 * 1024,
		MaxRedirects:   5,
		DenyPrivateIPs: true,
		UserAgent:      "rss-digest/1.0 (+excerpt)",
	}
}

// Validate checks ranges:
//   - Timeout: > 0
//   - Parallelism: 1-32
//   - MaxBodySize: 1KB-50MB
//   - MaxRedirects: 0-10
func (c *ContentFetchConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.Parallelism < 1 || c.Parallelism > 32 {
		return fmt.Errorf("parallelism must be between 1 and 32, got %d", c.Parallelism)
	}
	minBodySize := int64(1024)
	maxBodySize := int64(50 * 1024 * 1024)
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}
	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}
	return nil
}

// LoadConfigFromEnv loads the configuration from CONTENT_FETCH_* variables.
// Invalid values fall back to the defaults and are tracked in metrics when
// m is not nil; the result always validates.
//
//   - CONTENT_FETCH_ENABLED (default false)
//   - CONTENT_FETCH_TIMEOUT (default 10s)
//   - CONTENT_FETCH_PARALLELISM (default 4)
//   - CONTENT_FETCH_MAX_BODY_SIZE in bytes (default 5MB)
//   - CONTENT_FETCH_MAX_REDIRECTS (default 5)
//   - CONTENT_FETCH_DENY_PRIVATE_IPS (default true)
func LoadConfigFromEnv(m *config.ConfigMetrics) ContentFetchConfig {
	cfg := DefaultConfig()
	warn := func(field, warning string) {
		slog.Warn("content fetch configuration fallback",
			slog.String("field", field),
			slog.String("warning", warning))
	}
	track := func(field string, r config.ConfigLoadResult) config.ConfigLoadResult {
		if m != nil {
			m.Track(field, r, warn)
		} else {
			for _, w := range r.Warnings {
				warn(field, w)
			}
		}
		return r
	}

	cfg.Enabled = track("enabled", config.LoadEnvBool("CONTENT_FETCH_ENABLED", cfg.Enabled)).Value.(bool)
	cfg.Timeout = track("timeout", config.LoadEnvDuration("CONTENT_FETCH_TIMEOUT", cfg.Timeout,
		func(d time.Duration) error { return config.ValidateDuration(d, time.Second, 2*time.Minute) })).Value.(time.Duration)
	cfg.Parallelism = track("parallelism", config.LoadEnvInt("CONTENT_FETCH_PARALLELISM", cfg.Parallelism,
		func(v int) error { return config.ValidateIntRange(v, 1, 32) })).Value.(int)
	cfg.MaxBodySize = int64(track("max_body_size", config.LoadEnvInt("CONTENT_FETCH_MAX_BODY_SIZE", int(cfg.MaxBodySize),
		func(v int) error { return config.ValidateIntRange(v, 1024, 50*1024*1024) })).Value.(int))
	cfg.MaxRedirects = track("max_redirects", config.LoadEnvInt("CONTENT_FETCH_MAX_REDIRECTS", cfg.MaxRedirects,
		func(v int) error { return config.ValidateIntRange(v, 0, 10) })).Value.(int)
	cfg.DenyPrivateIPs = track("deny_private_ips", config.LoadEnvBool("CONTENT_FETCH_DENY_PRIVATE_IPS", cfg.DenyPrivateIPs)).Value.(bool)

	return cfg
}
