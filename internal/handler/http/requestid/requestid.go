// Package requestid assigns every HTTP request an id that is echoed in the
// response and attached to request-scoped logs.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	// RequestIDKey is the context key for request ids.
	RequestIDKey contextKey = "request_id"
	// RequestIDHeader is the header read from clients and written back.
	RequestIDHeader = "X-Request-ID"
	// MaxLength bounds a client supplied id.
	MaxLength = 128
)

// FromContext returns the request id, or "" when none was set.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// Valid reports whether a client supplied id may be propagated: non-empty,
// at most MaxLength bytes, printable ASCII without spaces.
func Valid(id string) bool {
	if id == "" || len(id) > MaxLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}

// Middleware propagates a valid X-Request-ID or generates a UUID v4, and sets
// it on both the response header and the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !Valid(id) {
			// ログ汚染を防ぐため不正な値は破棄して採番し直す
			id = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}
