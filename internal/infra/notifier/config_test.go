package notifier

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDiscordConfig(t *testing.T) {
	tests := []struct {
		name        string
		enabled     string
		url         string
		wantEnabled bool
		wantLog     string
	}{
		{name: "unset", wantEnabled: false},
		{name: "disabled", enabled: "false", url: "https://discord.com/api/webhooks/1/tok", wantEnabled: false},
		{name: "valid", enabled: "true", url: "https://discord.com/api/webhooks/1/tok", wantEnabled: true},
		{name: "empty url", enabled: "true", wantLog: "webhook URL is empty"},
		{name: "http", enabled: "true", url: "http://discord.com/api/webhooks/1/tok", wantLog: "must use https"},
		{name: "wrong host", enabled: "true", url: "https://evil.example.com/api/webhooks/1/tok", wantLog: "is not discord.com"},
		{name: "wrong path", enabled: "true", url: "https://discord.com/webhooks/1/tok", wantLog: "must start with /api/webhooks/"},
		{name: "bare prefix", enabled: "true", url: "https://discord.com/api/webhooks/", wantLog: "must start with"},
		{name: "invalid bool", enabled: "yes", url: "https://discord.com/api/webhooks/1/tok", wantLog: "Configuration fallback applied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DISCORD_ENABLED", tt.enabled)
			t.Setenv("DISCORD_WEBHOOK_URL", tt.url)
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			cfg := LoadDiscordConfig(logger)

			assert.Equal(t, tt.wantEnabled, cfg.Enabled)
			if tt.wantEnabled {
				assert.Equal(t, tt.url, cfg.WebhookURL)
				assert.Equal(t, DefaultTimeout, cfg.Timeout)
			} else {
				assert.Empty(t, cfg.WebhookURL)
			}
			if tt.wantLog != "" {
				assert.Contains(t, buf.String(), tt.wantLog)
			}
			// トークンはログに出さない
			assert.NotContains(t, buf.String(), "/1/tok")
		})
	}
}

func TestLoadSlackConfig(t *testing.T) {
	t.Setenv("SLACK_ENABLED", "true")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T0/B0/xyz")

	cfg := LoadSlackConfig(slog.Default())

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "https://hooks.slack.com/services/T0/B0/xyz", cfg.WebhookURL)

	t.Setenv("SLACK_WEBHOOK_URL", "https://discord.com/api/webhooks/1/tok")
	assert.False(t, LoadSlackConfig(slog.Default()).Enabled)
}
