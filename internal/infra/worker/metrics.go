package worker

import (
	"rss-digest/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the worker. It embeds the
// standard ConfigMetrics and adds scheduled refresh tracking.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp
//   - worker_config_validation_errors_total{field}
//   - worker_config_fallbacks_total{field}
//   - worker_config_fallback_active
//
// Worker-specific metrics:
//   - worker_cron_job_runs_total{status}: scheduled runs by refresh outcome
//     ("refreshed", "fresh", "in_flight", "all_sources_failed",
//     "persist_failed") or "failure"
//   - worker_cron_job_duration_seconds
//   - worker_cron_job_articles_inserted_total
//   - worker_cron_job_last_success_timestamp
type WorkerMetrics struct {
	*config.ConfigMetrics

	CronJobRunsTotal             *prometheus.CounterVec
	CronJobDurationSeconds       prometheus.Histogram
	CronJobArticlesInsertedTotal prometheus.Counter
	CronJobLastSuccessTimestamp  prometheus.Gauge
}

// NewWorkerMetrics registers the worker metrics on the default registry.
// Call it once per process.
func NewWorkerMetrics() *WorkerMetrics {
	return newWorkerMetrics(prometheus.DefaultRegisterer)
}

// NewWorkerMetricsWithRegistry registers the worker metrics on reg.
func NewWorkerMetricsWithRegistry(reg prometheus.Registerer) *WorkerMetrics {
	return newWorkerMetrics(reg)
}

func newWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	factory := promauto.With(reg)
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetricsWithRegistry("worker", reg),

		CronJobRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_cron_job_runs_total",
			Help: "Total number of scheduled refresh runs by status",
		}, []string{"status"}),

		CronJobDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_cron_job_duration_seconds",
			Help:    "Duration of scheduled refresh runs in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 300}, // 0.5s .. 5m
		}),

		CronJobArticlesInsertedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "worker_cron_job_articles_inserted_total",
			Help: "Total number of articles inserted by scheduled refreshes",
		}),

		CronJobLastSuccessTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worker_cron_job_last_success_timestamp",
			Help: "Unix timestamp of the last scheduled refresh that completed a cycle",
		}),
	}
}

// RecordJobRun increments the run counter for status.
func (m *WorkerMetrics) RecordJobRun(status string) {
	m.CronJobRunsTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration observes a run duration in seconds.
func (m *WorkerMetrics) RecordJobDuration(seconds float64) {
	m.CronJobDurationSeconds.Observe(seconds)
}

// RecordArticlesInserted adds inserted articles to the total.
func (m *WorkerMetrics) RecordArticlesInserted(count int) {
	m.CronJobArticlesInsertedTotal.Add(float64(count))
}

// RecordLastSuccess stamps the current time as the last success.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.CronJobLastSuccessTimestamp.SetToCurrentTime()
}
