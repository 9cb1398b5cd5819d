package metrics

import (
	"time"
)

// Source fetch results.
const (
	FetchResultSuccess    = "success"
	FetchResultFetchError = "fetch_error"
	FetchResultParseError = "parse_error"
)

// RecordRefreshCycle records one refresh request. Duration is only observed
// for outcomes that ran the pipeline.
func RecordRefreshCycle(outcome string, ran bool, duration time.Duration) {
	RefreshCyclesTotal.WithLabelValues(outcome).Inc()
	if ran {
		RefreshCycleDuration.Observe(duration.Seconds())
	}
}

// RecordRefreshSuccess stamps the last successful cycle.
func RecordRefreshSuccess(at time.Time) {
	RefreshLastSuccess.Set(float64(at.Unix()))
}

// RecordSourceFetch records the outcome of fetching one source.
func RecordSourceFetch(source, result string, duration time.Duration) {
	SourceFetchTotal.WithLabelValues(source, result).Inc()
	SourceFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordFeedItems records how many raw items became drafts and how many were
// dropped during normalization.
func RecordFeedItems(accepted, dropped int) {
	if accepted > 0 {
		FeedItemsTotal.WithLabelValues("accepted").Add(float64(accepted))
	}
	if dropped > 0 {
		FeedItemsTotal.WithLabelValues("dropped").Add(float64(dropped))
	}
}

// RecordMerge records inserted and merged drafts of one batch.
func RecordMerge(inserted, merged int) {
	ArticlesMergedTotal.WithLabelValues("inserted").Add(float64(inserted))
	ArticlesMergedTotal.WithLabelValues("merged").Add(float64(merged))
}

// RecordRetentionDropped records articles truncated by the retention cap.
func RecordRetentionDropped(n int) {
	if n > 0 {
		ArticlesDroppedTotal.Add(float64(n))
	}
}

// UpdateStoreGauges sets the store size gauges.
func UpdateStoreGauges(total, fresh, discovered int) {
	StoreArticles.Set(float64(total))
	StoreNewArticles.Set(float64(fresh))
	DiscoveredCategories.Set(float64(discovered))
}

// RecordSnapshotOperation records a snapshot load, save or update.
func RecordSnapshotOperation(backend, operation string, duration time.Duration, err error) {
	SnapshotOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	if err != nil {
		SnapshotErrorsTotal.WithLabelValues(backend, operation).Inc()
	}
}

// RecordContentFetchSuccess records a successful content fetch operation.
func RecordContentFetchSuccess(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("success").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordContentFetchFailed records a failed content fetch operation.
func RecordContentFetchFailed(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordContentFetchSkipped records an item that already had a description.
func RecordContentFetchSkipped() {
	ContentFetchAttemptsTotal.WithLabelValues("skipped").Inc()
}
