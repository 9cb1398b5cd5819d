// Package pathutil maps request paths to bounded route labels for metrics and
// span names.
package pathutil

import (
	"strings"
)

// UnmatchedRoute is the label for any path the API does not serve.
const UnmatchedRoute = "/other"

// knownRoutes lists every path the API and worker servers register.
var knownRoutes = map[string]struct{}{
	"/":             {},
	"/articles":     {},
	"/api/articles": {},
	"/categories":   {},
	"/status":       {},
	"/health":       {},
	"/health/ready": {},
	"/ready":        {},
	"/live":         {},
	"/metrics":      {},
}

// NormalizePath returns the route label for a request path. Query strings and
// a trailing slash are ignored; anything outside the known routes collapses
// to UnmatchedRoute so scanners cannot inflate label cardinality.
//
// Examples:
//
//	NormalizePath("/articles?category=ios") // "/articles"
//	NormalizePath("/status/")               // "/status"
//	NormalizePath("/wp-login.php")          // "/other"
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	if _, ok := knownRoutes[path]; ok {
		return path
	}
	return UnmatchedRoute
}

// Cardinality returns the maximum number of distinct labels NormalizePath can
// produce.
func Cardinality() int {
	return len(knownRoutes) + 1
}
