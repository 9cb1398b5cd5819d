// Package notify announces articles first seen by a refresh cycle on the
// configured chat channels. Dispatch is asynchronous: every channel send runs
// in its own goroutine behind a bounded worker pool and a per-channel circuit
// breaker, so a slow or broken webhook never delays the next cycle.
package notify

import (
	"context"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/infra/notifier"
)

// Channel is one notification destination.
//
// Implementations must be safe for concurrent use and must respect ctx.
// Rate limiting and retries belong to the implementation.
type Channel interface {
	// Name is the lowercase identifier used in logs and metric labels.
	Name() string

	// IsEnabled reports whether the channel receives notifications.
	IsEnabled() bool

	// Send announces one article.
	Send(ctx context.Context, article *entity.Article) error
}

// NotifierChannel adapts an infra notifier to Channel.
type NotifierChannel struct {
	name     string
	notifier notifier.Notifier
	enabled  bool
}

// NewDiscordChannel returns the "discord" channel. A disabled config gets a
// NoOpNotifier.
func NewDiscordChannel(config notifier.DiscordConfig) *NotifierChannel {
	var n notifier.Notifier = notifier.NewNoOpNotifier()
	if config.Enabled {
		n = notifier.NewDiscordNotifier(config)
	}
	return &NotifierChannel{name: "discord", notifier: n, enabled: config.Enabled}
}

// NewSlackChannel returns the "slack" channel.
func NewSlackChannel(config notifier.SlackConfig) *NotifierChannel {
	var n notifier.Notifier = notifier.NewNoOpNotifier()
	if config.Enabled {
		n = notifier.NewSlackNotifier(config)
	}
	return &NotifierChannel{name: "slack", notifier: n, enabled: config.Enabled}
}

// Name implements Channel.
func (c *NotifierChannel) Name() string {
	return c.name
}

// IsEnabled implements Channel.
func (c *NotifierChannel) IsEnabled() bool {
	return c.enabled
}

// Send validates the article and delegates to the notifier.
func (c *NotifierChannel) Send(ctx context.Context, article *entity.Article) error {
	if !c.enabled {
		return ErrChannelDisabled
	}
	if article == nil || article.Title == "" || article.Link == "" {
		return ErrInvalidArticle
	}
	return c.notifier.NotifyArticle(ctx, article)
}
