// Package refresh owns the article store: it runs TTL-gated refresh cycles
// (fetch, parse, categorize, merge, staleness, retention, persist) and serves
// filtered views of the result.
package refresh

import "errors"

// Sentinel errors for store operations.
var (
	// ErrPersistence indicates the snapshot could not be read or written.
	// After a failed save the in-memory store keeps the cycle's result but
	// the last refresh time is not advanced, so the next cycle retries. When
	// the snapshot cannot be read nothing is written.
	ErrPersistence = errors.New("snapshot persistence failed")

	// ErrInvalidFilter indicates a query named a category the store does not
	// know. No refresh is attempted.
	ErrInvalidFilter = errors.New("unknown category")
)
