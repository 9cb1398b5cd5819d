package notifier

import (
	"context"

	"rss-digest/internal/domain/entity"
)

// NoOpNotifier stands in for a disabled channel.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier instance.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// NotifyArticle does nothing and returns nil.
func (n *NoOpNotifier) NotifyArticle(context.Context, *entity.Article) error {
	return nil
}
