// Package slo tracks the service level objectives of the article store.
package slo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Objectives.
const (
	// FreshnessSLO is the target share of status checks that find the store
	// younger than its staleness threshold.
	FreshnessSLO = 0.99

	// SourceSuccessSLO is the target share of sources fetched successfully
	// per cycle.
	SourceSuccessSLO = 0.95
)

var (
	// StoreAgeSeconds is the age of the store at the last status check.
	StoreAgeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_store_age_seconds",
			Help: "Age of the article store in seconds at the last check",
		},
	)

	// StoreFresh is 1 when the store was within its staleness threshold at
	// the last check, 0 otherwise.
	StoreFresh = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_store_fresh",
			Help: "1 if the article store is within its staleness threshold, target ratio: 0.99",
		},
	)

	// FreshnessChecksTotal counts checks by result (fresh, stale, never).
	FreshnessChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slo_freshness_checks_total",
			Help: "Total number of store freshness checks by result",
		},
		[]string{"result"},
	)

	// SourceSuccessRatio is the share of sources that succeeded in the last
	// cycle that ran.
	SourceSuccessRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_source_success_ratio",
			Help: "Share of feed sources fetched successfully in the last cycle, target: 0.95",
		},
	)
)

// Freshness results.
const (
	ResultFresh = "fresh"
	ResultStale = "stale"
	ResultNever = "never"
)

// ObserveFreshness records a store check. A zero lastRefresh means the store
// was never refreshed and counts as stale.
func ObserveFreshness(lastRefresh, now time.Time, staleAfter time.Duration) string {
	if lastRefresh.IsZero() {
		StoreAgeSeconds.Set(0)
		StoreFresh.Set(0)
		FreshnessChecksTotal.WithLabelValues(ResultNever).Inc()
		return ResultNever
	}

	age := now.Sub(lastRefresh)
	StoreAgeSeconds.Set(age.Seconds())
	if age <= staleAfter {
		StoreFresh.Set(1)
		FreshnessChecksTotal.WithLabelValues(ResultFresh).Inc()
		return ResultFresh
	}
	StoreFresh.Set(0)
	FreshnessChecksTotal.WithLabelValues(ResultStale).Inc()
	return ResultStale
}

// ObserveSourceSuccess records the share of sources that did not fail.
// Cycles with no sources are ignored.
func ObserveSourceSuccess(sources, failed int) {
	if sources <= 0 {
		return
	}
	SourceSuccessRatio.Set(float64(sources-failed) / float64(sources))
}
