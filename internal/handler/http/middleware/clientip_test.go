package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requestFrom(remote string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	req.RemoteAddr = remote
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

/* ───── RemoteAddrExtractor ───── */

func TestRemoteAddrExtractor(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		want    string
		wantErr bool
	}{
		{name: "ipv4 with port", remote: "203.0.113.7:51234", want: "203.0.113.7"},
		{name: "ipv6 with port", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "bare ip", remote: "198.51.100.2", want: "198.51.100.2"},
		{name: "garbage", remote: "not-an-address", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// ヘッダーは常に無視される
			req := requestFrom(tt.remote, map[string]string{"X-Forwarded-For": "1.1.1.1"})

			got, err := (&RemoteAddrExtractor{}).ExtractIP(req)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

/* ───── TrustedProxyExtractor ───── */

func TestTrustedProxyExtractor(t *testing.T) {
	cfg := TrustedProxyConfig{
		Enabled:      true,
		AllowedCIDRs: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
	}

	tests := []struct {
		name    string
		cfg     TrustedProxyConfig
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "trusted proxy forwards client",
			cfg:     cfg,
			remote:  "10.1.2.3:8080",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.1.2.3"},
			want:    "203.0.113.9",
		},
		{
			name:    "trusted proxy with x-real-ip",
			cfg:     cfg,
			remote:  "10.1.2.3:8080",
			headers: map[string]string{"X-Real-IP": "203.0.113.10"},
			want:    "203.0.113.10",
		},
		{
			name:    "trusted proxy with malformed headers",
			cfg:     cfg,
			remote:  "10.1.2.3:8080",
			headers: map[string]string{"X-Forwarded-For": "bogus"},
			want:    "10.1.2.3",
		},
		{
			name:    "untrusted peer cannot spoof",
			cfg:     cfg,
			remote:  "198.51.100.1:1234",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9"},
			want:    "198.51.100.1",
		},
		{
			name:    "disabled",
			cfg:     TrustedProxyConfig{},
			remote:  "10.1.2.3:8080",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9"},
			want:    "10.1.2.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTrustedProxyExtractor(tt.cfg).ExtractIP(requestFrom(tt.remote, tt.headers))

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "192.0.2.1", ClientIP(nil, requestFrom("192.0.2.1:80", nil)))
	assert.Equal(t, "unknown", ClientIP(&RemoteAddrExtractor{}, requestFrom("???", nil)))
}

/* ───── configuration ───── */

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies("10.0.0.0/8, 192.168.1.1 ,,2001:db8::/32")

	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.1/32"),
		netip.MustParsePrefix("2001:db8::/32"),
	}, prefixes)

	_, err = ParseTrustedProxies("10.0.0.0/8,not-an-ip")
	assert.Error(t, err)
}

func TestLoadTrustedProxyConfig(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		t.Setenv("TRUST_PROXY", "")
		cfg := LoadTrustedProxyConfig(discardLogger())
		assert.False(t, cfg.Enabled)
	})

	t.Run("enabled with proxies", func(t *testing.T) {
		t.Setenv("TRUST_PROXY", "true")
		t.Setenv("TRUSTED_PROXIES", "172.16.0.0/12")
		cfg := LoadTrustedProxyConfig(discardLogger())
		assert.True(t, cfg.Enabled)
		assert.True(t, cfg.IsTrusted("172.20.0.5:9000"))
		assert.False(t, cfg.IsTrusted("8.8.8.8:53"))
	})

	t.Run("enabled without proxies stays disabled", func(t *testing.T) {
		t.Setenv("TRUST_PROXY", "true")
		t.Setenv("TRUSTED_PROXIES", "")
		assert.False(t, LoadTrustedProxyConfig(discardLogger()).Enabled)
	})

	t.Run("invalid proxies stay disabled", func(t *testing.T) {
		t.Setenv("TRUST_PROXY", "true")
		t.Setenv("TRUSTED_PROXIES", "10.0.0.0/99")
		assert.False(t, LoadTrustedProxyConfig(discardLogger()).Enabled)
	})
}
