package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/handler/http/respond"
	"rss-digest/internal/usecase/notify"
	"rss-digest/internal/usecase/refresh"
)

// Refresher is the engine entry point the worker drives.
type Refresher interface {
	Refresh(ctx context.Context, force bool) (refresh.Result, error)
}

// ArticleNotifier announces articles first seen by a cycle. It must not
// block on delivery.
type ArticleNotifier interface {
	NotifyNewArticles(ctx context.Context, articles []entity.Article) int
}

// RefreshJob is the scheduled unit of work: one non-forced refresh bounded
// by Timeout. The TTL gate inside the engine decides whether a cycle runs.
// Notifier is optional.
type RefreshJob struct {
	Refresher Refresher
	Timeout   time.Duration
	Metrics   *WorkerMetrics
	Logger    *slog.Logger
	Notifier  ArticleNotifier
}

// Run executes the job once. It never panics the scheduler: failures are
// logged and counted.
func (j *RefreshJob) Run(ctx context.Context) {
	start := time.Now()
	runID := uuid.New().String()
	logger := j.Logger.With(slog.String("run_id", runID))
	logger.Info("scheduled refresh started")

	ctx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()

	res, err := j.Refresher.Refresh(ctx, false)
	j.Metrics.RecordJobDuration(time.Since(start).Seconds())

	if err != nil {
		status := res.Outcome
		if status == "" {
			status = "failure"
		}
		j.Metrics.RecordJobRun(status)
		// 機密情報をマスクしてログ出力
		logger.Error("scheduled refresh failed",
			slog.String("outcome", status),
			slog.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
			slog.Any("error", respond.SanitizeError(err)))
		return
	}

	j.Metrics.RecordJobRun(res.Outcome)
	if res.Ran && res.Outcome == refresh.OutcomeRefreshed {
		j.Metrics.RecordArticlesInserted(res.Inserted)
		j.Metrics.RecordLastSuccess()
	}

	notified := 0
	if j.Notifier != nil && len(res.NewArticles) > 0 {
		// 通知ログと run_id を揃える
		notified = j.Notifier.NotifyNewArticles(notify.WithDispatchID(ctx, runID), res.NewArticles)
	}

	logger.Info("scheduled refresh completed",
		slog.String("outcome", res.Outcome),
		slog.Int("inserted", res.Inserted),
		slog.Int("merged", res.Merged),
		slog.Int("dropped", res.Dropped),
		slog.Int("total", res.Total),
		slog.Int("failed_sources", len(res.FailedSources)),
		slog.Int("notified", notified),
		slog.Duration("duration", res.Duration))
}
