package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rss-digest/internal/domain/entity"
)

// SlackConfig contains configuration for Slack webhook notifications.
type SlackConfig struct {
	Enabled bool

	// WebhookURL is the Slack Incoming Webhook URL (includes authentication token)
	WebhookURL string

	Timeout time.Duration
}

// SlackNotifier sends article announcements as Block Kit messages.
type SlackNotifier struct {
	webhook webhook
}

// NewSlackNotifier creates a notifier limited to one message per second.
func NewSlackNotifier(config SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		webhook: newWebhook("slack", config.WebhookURL, config.Timeout, NewRateLimiter(1.0, 1), slackRetryAfter),
	}
}

// SlackWebhookPayload represents the JSON payload sent to Slack webhook using Block Kit.
type SlackWebhookPayload struct {
	Text   string       `json:"text"`   // notification fallback
	Blocks []SlackBlock `json:"blocks"`
}

// SlackBlock represents a Slack Block Kit block.
type SlackBlock struct {
	Type     string            `json:"type"`
	Text     *SlackTextObject  `json:"text,omitempty"`
	Elements []SlackTextObject `json:"elements,omitempty"`
}

// SlackTextObject represents a text object in Slack Block Kit.
type SlackTextObject struct {
	Type string `json:"type"` // "mrkdwn" or "plain_text"
	Text string `json:"text"`
}

const (
	maxSectionTextLength = 3000
	maxContextTextLength = 2000
	maxFallbackLength    = 150
)

// mrkdwn control characters
var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// buildBlockKitPayload renders the title as a link followed by the
// description, with source, categories and date in a context block.
func (s *SlackNotifier) buildBlockKitPayload(article *entity.Article) SlackWebhookPayload {
	fallback := truncate(fmt.Sprintf("%s - %s", article.Title, article.Source), maxFallbackLength, truncationSuffix)

	section := fmt.Sprintf("*<%s|%s>*", article.Link, mrkdwnEscaper.Replace(article.Title))
	if article.Description != "" {
		section += "\n\n" + mrkdwnEscaper.Replace(article.Description)
	}

	meta := mrkdwnEscaper.Replace(article.Source)
	if len(article.Categories) > 0 {
		meta += " • " + strings.Join(article.Categories, ", ")
	}
	meta += " • " + articleTime(article).UTC().Format(time.RFC3339)

	return SlackWebhookPayload{
		Text: fallback,
		Blocks: []SlackBlock{
			{
				Type: "section",
				Text: &SlackTextObject{Type: "mrkdwn", Text: truncate(section, maxSectionTextLength, truncationSuffix)},
			},
			{
				Type:     "context",
				Elements: []SlackTextObject{{Type: "mrkdwn", Text: truncate(meta, maxContextTextLength, truncationSuffix)}},
			},
		},
	}
}

// Slack only signals back-off through the Retry-After header.
func slackRetryAfter(resp *http.Response, _ []byte) time.Duration {
	if d, ok := parseRetryAfterHeader(resp); ok {
		return d
	}
	return defaultRetryAfter
}

// NotifyArticle implements Notifier.
func (s *SlackNotifier) NotifyArticle(ctx context.Context, article *entity.Article) error {
	return s.webhook.send(ctx, article, s.buildBlockKitPayload(article))
}
