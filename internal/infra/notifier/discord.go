package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"rss-digest/internal/domain/entity"
)

// DiscordConfig contains configuration for Discord webhook notifications.
type DiscordConfig struct {
	Enabled bool

	// WebhookURL is the Discord webhook URL (includes authentication token)
	WebhookURL string

	Timeout time.Duration
}

// DiscordNotifier sends article announcements as Discord embeds.
type DiscordNotifier struct {
	webhook webhook
}

// NewDiscordNotifier creates a notifier limited to 0.5 req/s with a burst
// of 3, the documented webhook limit of 30 messages per minute.
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhook: newWebhook("discord", config.WebhookURL, config.Timeout, NewRateLimiter(0.5, 3), discordRetryAfter),
	}
}

// DiscordWebhookPayload represents the JSON payload sent to Discord webhook.
type DiscordWebhookPayload struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

// DiscordEmbed represents a Discord embed message.
type DiscordEmbed struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	URL         string             `json:"url"`
	Color       int                `json:"color"`
	Footer      DiscordEmbedFooter `json:"footer"`
	Timestamp   string             `json:"timestamp"`
}

// DiscordEmbedFooter represents the footer of a Discord embed.
type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

// DiscordErrorResponse represents the error response from Discord API.
type DiscordErrorResponse struct {
	Message    string  `json:"message"`
	Code       int     `json:"code"`
	RetryAfter float64 `json:"retry_after"` // seconds
}

const (
	maxTitleLength       = 256
	maxDescriptionLength = 4096
	maxFooterLength      = 2048
	truncationSuffix     = "..."

	// Discord blue color (#5865F2)
	discordBlueColor = 5793266
)

// buildEmbedPayload renders one article as a single embed. The footer names
// the source and the article's categories.
func (d *DiscordNotifier) buildEmbedPayload(article *entity.Article) DiscordWebhookPayload {
	footer := article.Source
	if len(article.Categories) > 0 {
		footer += " • " + strings.Join(article.Categories, ", ")
	}

	embed := DiscordEmbed{
		Title:       truncate(article.Title, maxTitleLength, truncationSuffix),
		Description: truncate(article.Description, maxDescriptionLength, truncationSuffix),
		URL:         article.Link,
		Color:       discordBlueColor,
		Footer:      DiscordEmbedFooter{Text: truncate(footer, maxFooterLength, truncationSuffix)},
		Timestamp:   articleTime(article).UTC().Format(time.RFC3339),
	}
	return DiscordWebhookPayload{Embeds: []DiscordEmbed{embed}}
}

// discordRetryAfter prefers the JSON retry_after over the Retry-After header.
func discordRetryAfter(resp *http.Response, body []byte) time.Duration {
	var discordErr DiscordErrorResponse
	if err := json.Unmarshal(body, &discordErr); err == nil && discordErr.RetryAfter > 0 {
		return time.Duration(discordErr.RetryAfter * float64(time.Second))
	}
	if d, ok := parseRetryAfterHeader(resp); ok {
		return d
	}
	return defaultRetryAfter
}

// NotifyArticle implements Notifier.
func (d *DiscordNotifier) NotifyArticle(ctx context.Context, article *entity.Article) error {
	return d.webhook.send(ctx, article, d.buildEmbedPayload(article))
}
