package http

import (
	"net/http"

	"rss-digest/internal/handler/http/respond"
)

// Input limits. The API only takes two short query parameters.
const (
	MaxPathLength  = 2048
	MaxQueryLength = 1024
	MaxBodyBytes   = 1 << 20
)

// InputValidation rejects oversized paths (414) and query strings (400) and
// caps request bodies.
func InputValidation() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(r.URL.Path) > MaxPathLength {
				respond.JSON(w, http.StatusRequestURITooLong, respond.ErrorBody{Error: "URI too long"})
				return
			}
			if len(r.URL.RawQuery) > MaxQueryLength {
				respond.JSON(w, http.StatusBadRequest, respond.ErrorBody{Error: "query string too long"})
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
			next.ServeHTTP(w, r)
		})
	}
}
