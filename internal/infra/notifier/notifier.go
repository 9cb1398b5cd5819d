// Package notifier posts announcements of newly discovered articles to chat
// webhooks (Discord, Slack).
//
// Each implementation owns its rate limiting and retry policy:
//   - 429: wait for the advertised retry_after, then retry
//   - 5xx and network errors: retry with linear backoff
//   - other 4xx: fail immediately
package notifier

import (
	"context"

	"rss-digest/internal/domain/entity"
)

// Notifier sends one article announcement.
type Notifier interface {
	// NotifyArticle announces article. It blocks until the webhook accepted
	// the message, every attempt failed or ctx is done.
	NotifyArticle(ctx context.Context, article *entity.Article) error
}
