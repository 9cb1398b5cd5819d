package respond

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeError(t *testing.T) {
	tests := []struct {
		name  string
		input error
		want  string
	}{
		{
			name:  "postgres url",
			input: errors.New("dial tcp: postgres://digest:s3cret@db:5432/digest"),
			want:  "dial tcp: postgres://digest:****@db:5432/digest",
		},
		{
			name:  "keyword dsn",
			input: errors.New("connect: host=db user=digest password=s3cret dbname=digest"),
			want:  "connect: host=db user=digest password=**** dbname=digest",
		},
		{
			name:  "quoted keyword dsn",
			input: errors.New("connect: password='with space' host=db"),
			want:  "connect: password=**** host=db",
		},
		{
			name:  "discord webhook",
			input: errors.New(`Post "https://discord.com/api/webhooks/123/abcDEF": dial tcp: i/o timeout`),
			want:  `Post "https://discord.com/api/webhooks/****": dial tcp: i/o timeout`,
		},
		{
			name:  "slack webhook",
			input: errors.New("post https://hooks.slack.com/services/T0/B0/xyz failed"),
			want:  "post https://hooks.slack.com/services/**** failed",
		},
		{
			name:  "feed url token",
			input: errors.New(`Get "https://example.com/feed?token=abc123&lang=fr": EOF`),
			want:  `Get "https://example.com/feed?token=****&lang=fr": EOF`,
		},
		{
			name:  "feed url api key in second position",
			input: errors.New("fetch https://example.com/rss?lang=fr&api_key=xyz failed"),
			want:  "fetch https://example.com/rss?lang=fr&api_key=**** failed",
		},
		{
			name:  "wrapped",
			input: fmt.Errorf("snapshot persistence failed: %w", errors.New("postgres://u:p@h/db refused")),
			want:  "snapshot persistence failed: postgres://u:****@h/db refused",
		},
		{
			name:  "nothing to mask",
			input: errors.New("all sources failed"),
			want:  "all sources failed",
		},
		{
			name:  "nil",
			input: nil,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeError(tt.input))
		})
	}
}
