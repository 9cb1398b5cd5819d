package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"rss-digest/internal/pkg/config"
)

// IPExtractor resolves the client address of a request.
type IPExtractor interface {
	ExtractIP(r *http.Request) (string, error)
}

// RemoteAddrExtractor uses the TCP peer address only. Forwarding headers are
// ignored since any client can set them.
type RemoteAddrExtractor struct{}

// ExtractIP returns the host part of r.RemoteAddr.
func (e *RemoteAddrExtractor) ExtractIP(r *http.Request) (string, error) {
	return extractIPFromAddr(r.RemoteAddr)
}

// TrustedProxyConfig lists the reverse proxies whose forwarding headers are
// believed.
type TrustedProxyConfig struct {
	Enabled      bool
	AllowedCIDRs []netip.Prefix
}

// IsTrusted reports whether remoteAddr belongs to a trusted proxy.
func (c *TrustedProxyConfig) IsTrusted(remoteAddr string) bool {
	ip, err := extractIPFromAddr(remoteAddr)
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, prefix := range c.AllowedCIDRs {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ParseTrustedProxies parses a comma separated list of IPs and CIDRs. Bare
// IPs become /32 or /128 prefixes.
func ParseTrustedProxies(list string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			ip, ipErr := netip.ParseAddr(raw)
			if ipErr != nil {
				return nil, fmt.Errorf("invalid IP or CIDR %q", raw)
			}
			prefix = netip.PrefixFrom(ip, ip.BitLen())
		}
		out = append(out, prefix.Masked())
	}
	return out, nil
}

// LoadTrustedProxyConfig reads TRUST_PROXY and TRUSTED_PROXIES. Trust stays
// disabled when TRUST_PROXY is unset or TRUSTED_PROXIES yields no prefix; a
// misconfigured proxy list must not let clients spoof their address.
func LoadTrustedProxyConfig(logger *slog.Logger) TrustedProxyConfig {
	enabled := config.LoadEnvBool("TRUST_PROXY", false).Value.(bool)
	if !enabled {
		return TrustedProxyConfig{}
	}

	list := config.LoadEnvString("TRUSTED_PROXIES", "")
	prefixes, err := ParseTrustedProxies(list)
	if err != nil || len(prefixes) == 0 {
		logger.Warn("proxy trust disabled: TRUSTED_PROXIES is empty or invalid",
			slog.String("trusted_proxies", list),
			slog.Any("error", err))
		return TrustedProxyConfig{}
	}
	return TrustedProxyConfig{Enabled: true, AllowedCIDRs: prefixes}
}

// TrustedProxyExtractor reads X-Forwarded-For, then X-Real-IP, when the peer
// is a trusted proxy, and falls back to the peer address otherwise.
type TrustedProxyExtractor struct {
	config TrustedProxyConfig
}

// NewTrustedProxyExtractor creates an extractor for config.
func NewTrustedProxyExtractor(config TrustedProxyConfig) *TrustedProxyExtractor {
	return &TrustedProxyExtractor{config: config}
}

// ExtractIP returns the client address.
func (e *TrustedProxyExtractor) ExtractIP(r *http.Request) (string, error) {
	if !e.config.Enabled || !e.config.IsTrusted(r.RemoteAddr) {
		return extractIPFromAddr(r.RemoteAddr)
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := parseFirstIP(xff); ip != "" {
			return ip, nil
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip.String(), nil
		}
	}
	return extractIPFromAddr(r.RemoteAddr)
}

// ClientIP returns the extracted address, or "unknown".
func ClientIP(e IPExtractor, r *http.Request) string {
	if e == nil {
		e = &RemoteAddrExtractor{}
	}
	ip, err := e.ExtractIP(r)
	if err != nil {
		return "unknown"
	}
	return ip
}

func extractIPFromAddr(addr string) (string, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		if ip := net.ParseIP(addr); ip != nil {
			return ip.String(), nil
		}
		return "", fmt.Errorf("invalid address format: %s", addr)
	}
	return host, nil
}

// parseFirstIP returns the left-most (client) entry of X-Forwarded-For.
func parseFirstIP(s string) string {
	first, _, _ := strings.Cut(s, ",")
	if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
		return ip.String()
	}
	return ""
}
