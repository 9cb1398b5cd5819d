package worker

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerMetricsWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkerMetricsWithRegistry(reg)

	require.NotNil(t, m.ConfigMetrics)
	require.NotNil(t, m.CronJobRunsTotal)
	require.NotNil(t, m.CronJobDurationSeconds)
	require.NotNil(t, m.CronJobArticlesInsertedTotal)
	require.NotNil(t, m.CronJobLastSuccessTimestamp)

	// 同じレジストリへの二重登録はパニックになる
	assert.Panics(t, func() { NewWorkerMetricsWithRegistry(reg) })
}

func TestWorkerMetrics_Record(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordJobRun("refreshed")
	m.RecordJobRun("refreshed")
	m.RecordJobRun("fresh")
	m.RecordJobDuration(1.5)
	m.RecordJobDuration(0.2)
	m.RecordArticlesInserted(7)
	m.RecordArticlesInserted(0)
	m.RecordLastSuccess()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CronJobRunsTotal.WithLabelValues("refreshed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CronJobRunsTotal.WithLabelValues("fresh")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CronJobDurationSeconds))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.CronJobArticlesInsertedTotal))
	assert.Greater(t, testutil.ToFloat64(m.CronJobLastSuccessTimestamp), float64(0))
}

func TestWorkerMetrics_ConcurrentAccess(t *testing.T) {
	m := newTestMetrics(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordJobRun("refreshed")
			m.RecordArticlesInserted(2)
			m.RecordJobDuration(0.1)
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(50), testutil.ToFloat64(m.CronJobRunsTotal.WithLabelValues("refreshed")))
	assert.Equal(t, float64(100), testutil.ToFloat64(m.CronJobArticlesInsertedTotal))
}
