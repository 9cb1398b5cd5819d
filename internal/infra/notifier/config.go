package notifier

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"rss-digest/internal/pkg/config"
)

// DefaultTimeout bounds one webhook request.
const DefaultTimeout = 30 * time.Second

// LoadDiscordConfig reads DISCORD_ENABLED and DISCORD_WEBHOOK_URL. An
// enabled channel with an unusable URL is disabled with a warning; the
// worker keeps running without it.
func LoadDiscordConfig(logger *slog.Logger) DiscordConfig {
	webhookURL, ok := loadWebhook(logger, "discord", "DISCORD_ENABLED", "DISCORD_WEBHOOK_URL", "discord.com", "/api/webhooks/")
	if !ok {
		return DiscordConfig{Enabled: false}
	}
	return DiscordConfig{Enabled: true, WebhookURL: webhookURL, Timeout: DefaultTimeout}
}

// LoadSlackConfig reads SLACK_ENABLED and SLACK_WEBHOOK_URL with the same
// rules as LoadDiscordConfig.
func LoadSlackConfig(logger *slog.Logger) SlackConfig {
	webhookURL, ok := loadWebhook(logger, "slack", "SLACK_ENABLED", "SLACK_WEBHOOK_URL", "hooks.slack.com", "/services/")
	if !ok {
		return SlackConfig{Enabled: false}
	}
	return SlackConfig{Enabled: true, WebhookURL: webhookURL, Timeout: DefaultTimeout}
}

func loadWebhook(logger *slog.Logger, channel, enabledKey, urlKey, host, pathPrefix string) (string, bool) {
	enabled := config.LoadEnvBool(enabledKey, false)
	for _, w := range enabled.Warnings {
		logger.Warn("Configuration fallback applied", slog.String("field", enabledKey), slog.String("warning", w))
	}
	if !enabled.Value.(bool) {
		return "", false
	}

	webhookURL := config.LoadEnvString(urlKey, "")
	if err := validateWebhookURL(webhookURL, host, pathPrefix); err != nil {
		logger.Warn("invalid webhook URL, disabling notifications",
			slog.String("channel", channel),
			slog.String("reason", err.Error()))
		return "", false
	}
	return webhookURL, true
}

// validateWebhookURL accepts only https URLs on host under pathPrefix. The
// URL itself is never part of the error since it carries the token.
func validateWebhookURL(raw, host, pathPrefix string) error {
	if raw == "" {
		return fmt.Errorf("webhook URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("webhook URL is malformed")
	}
	if u.Scheme != "https" {
		return fmt.Errorf("webhook URL must use https")
	}
	if u.Host != host {
		return fmt.Errorf("webhook host %q is not %s", u.Host, host)
	}
	if !strings.HasPrefix(u.Path, pathPrefix) || len(u.Path) == len(pathPrefix) {
		return fmt.Errorf("webhook path must start with %s", pathPrefix)
	}
	return nil
}
