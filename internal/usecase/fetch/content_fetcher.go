package fetch

import (
	"context"
	"errors"
)

// ContentFetcher extracts readable text from an article page. It is used to
// fill in a description for feed items that ship none.
//
// Implementations must refuse private addresses, cap the body size and honor
// ctx. Callers treat every error as "keep the item as is".
type ContentFetcher interface {
	FetchContent(ctx context.Context, url string) (string, error)
}

// Sentinel errors for content fetching operations.
var (
	// ErrInvalidURL indicates the URL format is invalid or uses an unsupported scheme.
	// Only http:// and https:// schemes are supported.
	ErrInvalidURL = errors.New("invalid URL or unsupported scheme")

	// ErrPrivateIP indicates the URL resolves to a private IP address.
	//
	// Blocked IP ranges:
	//   - 127.0.0.0/8 (loopback)
	//   - 10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16 (private)
	//   - 169.254.0.0/16 (link-local)
	//   - ::1, fc00::/7, fe80::/10 (IPv6)
	ErrPrivateIP = errors.New("private IP access denied (SSRF prevention)")

	// ErrTooManyRedirects indicates the redirect chain exceeded the configured maximum.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrBodyTooLarge indicates the response body exceeded the size limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrTimeout indicates the request exceeded the configured timeout.
	ErrTimeout = errors.New("request timeout")

	// ErrReadabilityFailed indicates no article text could be extracted.
	ErrReadabilityFailed = errors.New("content extraction failed")
)
