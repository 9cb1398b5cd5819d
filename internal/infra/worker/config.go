package worker

import (
	"fmt"
	"log/slog"
	"time"

	"rss-digest/internal/pkg/config"
)

// WorkerConfig holds the configuration for the refresh worker.
//
// Configuration sources:
//   - Environment variables (loaded via LoadConfigFromEnv)
//   - Default values (provided by DefaultConfig)
//
// Example usage:
//
//	metrics := NewWorkerMetrics()
//	cfg, _ := LoadConfigFromEnv(logger, metrics)
//	// cfg is always valid (fail-open)
type WorkerConfig struct {
	// CronSchedule is the cron expression for refresh scheduling.
	// Format: "minute hour day month weekday"
	// Default: "*/30 * * * *" (aligned with the 30 minute refresh TTL)
	CronSchedule string

	// Timezone is the IANA timezone name for cron scheduling.
	// Default: "Europe/Paris"
	Timezone string

	// RefreshTimeout bounds one scheduled refresh.
	// Range: 1m-1h
	// Default: 5 minutes
	RefreshTimeout time.Duration

	// HealthPort is the port of the health check HTTP server.
	// Range: 1024-65535
	// Default: 9091
	HealthPort int

	// MetricsPort is the port of the Prometheus metrics server.
	// Range: 1024-65535
	// Default: 9090
	MetricsPort int

	// NotifyMaxConcurrent caps in-flight webhook sends.
	// Range: 1-100
	// Default: 10
	NotifyMaxConcurrent int

	// NotifyMaxPerCycle caps the new articles announced after one refresh.
	// Range: 1-100
	// Default: 10
	NotifyMaxPerCycle int
}

// DefaultConfig returns a WorkerConfig with the default values.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		CronSchedule:        "*/30 * * * *",
		Timezone:            "Europe/Paris",
		RefreshTimeout:      5 * time.Minute,
		HealthPort:          9091,
		MetricsPort:         9090,
		NotifyMaxConcurrent: 10,
		NotifyMaxPerCycle:   10,
	}
}

// Validate checks every field and returns all failures together.
//
// Validation rules:
//   - CronSchedule: valid 5-field cron expression
//   - Timezone: valid IANA timezone name
//   - RefreshTimeout: positive
//   - HealthPort, MetricsPort: 1024-65535 and distinct
//   - NotifyMaxConcurrent, NotifyMaxPerCycle: 1-100
func (c *WorkerConfig) Validate() error {
	var errors []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errors = append(errors, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errors = append(errors, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.RefreshTimeout); err != nil {
		errors = append(errors, fmt.Errorf("refresh timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("health port: %w", err))
	}
	if err := config.ValidateIntRange(c.MetricsPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("metrics port: %w", err))
	}
	if err := config.ValidateIntRange(c.NotifyMaxConcurrent, 1, 100); err != nil {
		errors = append(errors, fmt.Errorf("notify max concurrent: %w", err))
	}
	if err := config.ValidateIntRange(c.NotifyMaxPerCycle, 1, 100); err != nil {
		errors = append(errors, fmt.Errorf("notify max per cycle: %w", err))
	}
	if c.HealthPort == c.MetricsPort {
		errors = append(errors, fmt.Errorf("health port and metrics port must differ (%d)", c.HealthPort))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}
	return nil
}

// LoadConfigFromEnv loads the worker configuration with fail-open fallbacks.
// Invalid values fall back to their defaults, are logged as warnings and are
// recorded in the worker_config_* metrics. The error is always nil.
//
// Environment variables:
//   - CRON_SCHEDULE (default "*/30 * * * *")
//   - WORKER_TIMEZONE (default "Europe/Paris")
//   - REFRESH_TIMEOUT, 1m-1h (default 5m)
//   - WORKER_HEALTH_PORT, 1024-65535 (default 9091)
//   - METRICS_PORT, 1024-65535 (default 9090)
//   - NOTIFY_MAX_CONCURRENT, 1-100 (default 10)
//   - NOTIFY_MAX_PER_CYCLE, 1-100 (default 10)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	warn := func(field, warning string) {
		logger.Warn("Configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", warning))
	}
	track := func(field string, r config.ConfigLoadResult) config.ConfigLoadResult {
		if metrics.Track(field, r, warn) {
			fallbackApplied = true
		}
		return r
	}

	cfg.CronSchedule = track("cron_schedule",
		config.LoadEnvWithFallback("CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule)).Value.(string)

	cfg.Timezone = track("timezone",
		config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)).Value.(string)

	cfg.RefreshTimeout = track("refresh_timeout", config.LoadEnvDuration("REFRESH_TIMEOUT", cfg.RefreshTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Minute, time.Hour)
	})).Value.(time.Duration)

	cfg.HealthPort = track("health_port", config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})).Value.(int)

	cfg.MetricsPort = track("metrics_port", config.LoadEnvInt("METRICS_PORT", cfg.MetricsPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})).Value.(int)

	cfg.NotifyMaxConcurrent = track("notify_max_concurrent", config.LoadEnvInt("NOTIFY_MAX_CONCURRENT", cfg.NotifyMaxConcurrent, func(v int) error {
		return config.ValidateIntRange(v, 1, 100)
	})).Value.(int)

	cfg.NotifyMaxPerCycle = track("notify_max_per_cycle", config.LoadEnvInt("NOTIFY_MAX_PER_CYCLE", cfg.NotifyMaxPerCycle, func(v int) error {
		return config.ValidateIntRange(v, 1, 100)
	})).Value.(int)

	// 同一ポートは起動時に片方が必ず失敗するためデフォルトに戻す
	if cfg.HealthPort == cfg.MetricsPort {
		def := DefaultConfig()
		warn("metrics_port", fmt.Sprintf("METRICS_PORT equals WORKER_HEALTH_PORT (%d), falling back to defaults", cfg.HealthPort))
		metrics.RecordValidationError("metrics_port")
		metrics.RecordFallback("metrics_port", "default")
		cfg.HealthPort, cfg.MetricsPort = def.HealthPort, def.MetricsPort
		fallbackApplied = true
	}

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
