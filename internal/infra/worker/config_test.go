package worker

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *WorkerMetrics {
	t.Helper()
	return NewWorkerMetricsWithRegistry(prometheus.NewRegistry())
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

/* ───────── DefaultConfig / Validate ───────── */

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "*/30 * * * *", cfg.CronSchedule)
	assert.Equal(t, "Europe/Paris", cfg.Timezone)
	assert.Equal(t, 5*time.Minute, cfg.RefreshTimeout)
	assert.Equal(t, 9091, cfg.HealthPort)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, 10, cfg.NotifyMaxConcurrent)
	assert.Equal(t, 10, cfg.NotifyMaxPerCycle)
	require.NoError(t, cfg.Validate())
}

func TestWorkerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *WorkerConfig)
		wantErr string
	}{
		{"invalid cron", func(c *WorkerConfig) { c.CronSchedule = "every half hour" }, "cron schedule"},
		{"empty cron", func(c *WorkerConfig) { c.CronSchedule = "" }, "cron schedule"},
		{"invalid timezone", func(c *WorkerConfig) { c.Timezone = "Invalid/Zone" }, "timezone"},
		{"zero timeout", func(c *WorkerConfig) { c.RefreshTimeout = 0 }, "refresh timeout"},
		{"privileged health port", func(c *WorkerConfig) { c.HealthPort = 80 }, "health port"},
		{"metrics port too high", func(c *WorkerConfig) { c.MetricsPort = 70000 }, "metrics port"},
		{"same ports", func(c *WorkerConfig) { c.MetricsPort = c.HealthPort }, "must differ"},
		{"zero notify concurrency", func(c *WorkerConfig) { c.NotifyMaxConcurrent = 0 }, "notify max concurrent"},
		{"notify cap too high", func(c *WorkerConfig) { c.NotifyMaxPerCycle = 500 }, "notify max per cycle"},
		{"custom valid", func(c *WorkerConfig) {
			c.CronSchedule, c.Timezone, c.RefreshTimeout = "0 */2 * * *", "UTC", time.Minute
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestWorkerConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := WorkerConfig{CronSchedule: "bad", Timezone: "Bad/Zone", RefreshTimeout: -1, HealthPort: 1, MetricsPort: 2, NotifyMaxConcurrent: 1, NotifyMaxPerCycle: 1}

	err := cfg.Validate()

	require.Error(t, err)
	for _, part := range []string{"cron schedule", "timezone", "refresh timeout", "health port", "metrics port"} {
		assert.ErrorContains(t, err, part)
	}
}

/* ───────── LoadConfigFromEnv ───────── */

func TestLoadConfigFromEnv_AllValid(t *testing.T) {
	t.Setenv("CRON_SCHEDULE", "0 */2 * * *")
	t.Setenv("WORKER_TIMEZONE", "UTC")
	t.Setenv("REFRESH_TIMEOUT", "10m")
	t.Setenv("WORKER_HEALTH_PORT", "8081")
	t.Setenv("METRICS_PORT", "8082")
	t.Setenv("NOTIFY_MAX_CONCURRENT", "4")
	t.Setenv("NOTIFY_MAX_PER_CYCLE", "25")
	logger, buf := bufferLogger()
	m := newTestMetrics(t)

	cfg, err := LoadConfigFromEnv(logger, m)

	require.NoError(t, err)
	assert.Equal(t, "0 */2 * * *", cfg.CronSchedule)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, 10*time.Minute, cfg.RefreshTimeout)
	assert.Equal(t, 8081, cfg.HealthPort)
	assert.Equal(t, 8082, cfg.MetricsPort)
	assert.Equal(t, 4, cfg.NotifyMaxConcurrent)
	assert.Equal(t, 25, cfg.NotifyMaxPerCycle)
	assert.Empty(t, buf.String())
	assert.Equal(t, float64(0), testutil.ToFloat64(m.FallbackActive))
	assert.Greater(t, testutil.ToFloat64(m.LoadTimestamp), float64(0))
}

func TestLoadConfigFromEnv_Missing(t *testing.T) {
	cfg, err := LoadConfigFromEnv(slog.Default(), newTestMetrics(t))

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadConfigFromEnv_InvalidFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
		field string
	}{
		{"cron", "CRON_SCHEDULE", "not a cron", "cron_schedule"},
		{"timezone", "WORKER_TIMEZONE", "Mars/Base", "timezone"},
		{"timeout too short", "REFRESH_TIMEOUT", "10s", "refresh_timeout"},
		{"timeout unparsable", "REFRESH_TIMEOUT", "soon", "refresh_timeout"},
		{"health port", "WORKER_HEALTH_PORT", "80", "health_port"},
		{"metrics port", "METRICS_PORT", "abc", "metrics_port"},
		{"notify concurrency", "NOTIFY_MAX_CONCURRENT", "0", "notify_max_concurrent"},
		{"notify cap", "NOTIFY_MAX_PER_CYCLE", "1000", "notify_max_per_cycle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			logger, buf := bufferLogger()
			m := newTestMetrics(t)

			cfg, err := LoadConfigFromEnv(logger, m)

			require.NoError(t, err)
			assert.Equal(t, DefaultConfig(), *cfg)
			assert.Contains(t, buf.String(), "Configuration fallback applied")
			assert.Contains(t, buf.String(), tt.env)
			assert.Equal(t, float64(1), testutil.ToFloat64(m.FallbacksTotal.WithLabelValues(tt.field)))
			assert.Equal(t, float64(1), testutil.ToFloat64(m.FallbackActive))
		})
	}
}

// 同じポートを指定した場合は両方デフォルトに戻る
func TestLoadConfigFromEnv_PortCollision(t *testing.T) {
	t.Setenv("WORKER_HEALTH_PORT", "9500")
	t.Setenv("METRICS_PORT", "9500")
	m := newTestMetrics(t)

	cfg, err := LoadConfigFromEnv(slog.Default(), m)

	require.NoError(t, err)
	assert.Equal(t, 9091, cfg.HealthPort)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FallbacksTotal.WithLabelValues("metrics_port")))
	require.NoError(t, cfg.Validate())
}
