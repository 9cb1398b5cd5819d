package notify

import "errors"

// Sentinel errors for notify use case operations.
var (
	// ErrChannelDisabled is returned by Send on a disabled channel.
	ErrChannelDisabled = errors.New("channel is disabled")

	// ErrInvalidArticle is returned when the article is nil or has no title
	// or link.
	ErrInvalidArticle = errors.New("invalid article data")
)
