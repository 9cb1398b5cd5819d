// Package fetch retrieves raw items from every configured feed concurrently.
// A failing source never cancels the others; each source yields either its
// items or an error classified as ErrSourceFetch or ErrParse.
package fetch

import "errors"

// Sentinel errors for fetch use case operations.
var (
	// ErrSourceFetch indicates the source was unreachable or answered with a
	// non-2xx status.
	ErrSourceFetch = errors.New("failed to fetch feed from source")

	// ErrParse indicates the body was not a readable RSS or Atom document.
	ErrParse = errors.New("invalid feed format")
)
