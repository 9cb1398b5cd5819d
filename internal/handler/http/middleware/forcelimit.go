package middleware

import (
	"time"

	"golang.org/x/time/rate"

	"rss-digest/internal/observability/metrics"
)

// DefaultForceRefreshRate is the number of forced refreshes allowed per minute.
const DefaultForceRefreshRate = 6

// ForceRefreshLimiter bounds force_update requests across all clients. Every
// forced refresh hits every upstream feed, so the budget is shared rather
// than per client.
type ForceRefreshLimiter struct {
	limiter *rate.Limiter
}

// NewForceRefreshLimiter allows perMinute forced refreshes per minute with a
// burst of the same size. A non-positive perMinute uses the default.
func NewForceRefreshLimiter(perMinute int) *ForceRefreshLimiter {
	if perMinute <= 0 {
		perMinute = DefaultForceRefreshRate
	}
	every := rate.Every(time.Minute / time.Duration(perMinute))
	return &ForceRefreshLimiter{limiter: rate.NewLimiter(every, perMinute)}
}

// Allow consumes one token and reports whether the forced refresh may run.
func (l *ForceRefreshLimiter) Allow() bool {
	return l.AllowAt(time.Now())
}

// AllowAt is Allow at an explicit instant.
func (l *ForceRefreshLimiter) AllowAt(now time.Time) bool {
	ok := l.limiter.AllowN(now, 1)
	metrics.RecordForceRefresh(ok)
	return ok
}

// RetryAfter returns how long until the next token is available at now.
func (l *ForceRefreshLimiter) RetryAfter(now time.Time) time.Duration {
	r := l.limiter.ReserveN(now, 1)
	if !r.OK() {
		return time.Minute
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return d
}
