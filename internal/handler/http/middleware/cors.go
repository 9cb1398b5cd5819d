package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"rss-digest/internal/pkg/config"
)

// Wildcard allows every origin.
const Wildcard = "*"

// CORSConfig is the cross-origin policy of the read-only API. The article
// viewer is usually served from another domain than the API.
type CORSConfig struct {
	// AllowedOrigins lists exact origins, or Wildcard.
	// Env: CORS_ALLOWED_ORIGINS (default "*")
	AllowedOrigins []string

	// AllowedMethods is sent on preflight responses.
	AllowedMethods []string

	// AllowedHeaders is sent on preflight responses.
	AllowedHeaders []string

	// MaxAge is the preflight cache duration in seconds.
	// Env: CORS_MAX_AGE (default 3600)
	MaxAge int

	Logger *slog.Logger
}

// DefaultCORSConfig allows any origin to GET.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{Wildcard},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID", "X-Requested-With"},
		MaxAge:         3600,
	}
}

// LoadCORSConfig reads CORS_ALLOWED_ORIGINS and CORS_MAX_AGE. Malformed
// origins are dropped with a warning; if none remain the wildcard default is
// kept.
func LoadCORSConfig(logger *slog.Logger, m *config.ConfigMetrics) CORSConfig {
	cfg := DefaultCORSConfig()
	cfg.Logger = logger

	var origins []string
	for _, o := range config.LoadEnvList("CORS_ALLOWED_ORIGINS", cfg.AllowedOrigins) {
		if o == Wildcard || validOrigin(o) {
			origins = append(origins, strings.TrimSuffix(o, "/"))
			continue
		}
		logger.Warn("ignoring malformed CORS origin", slog.String("origin", o))
		if m != nil {
			m.RecordValidationError("cors_allowed_origins")
		}
	}
	if len(origins) > 0 {
		cfg.AllowedOrigins = origins
	} else if m != nil {
		m.RecordFallback("cors_allowed_origins", "default")
	}

	r := config.LoadEnvInt("CORS_MAX_AGE", cfg.MaxAge, func(v int) error {
		return config.ValidateIntRange(v, 0, 86400)
	})
	if m != nil {
		m.Track("cors_max_age", r, func(field, warning string) {
			logger.Warn("Configuration fallback applied", slog.String("field", field), slog.String("warning", warning))
		})
	}
	cfg.MaxAge = r.Value.(int)
	return cfg
}

func validOrigin(o string) bool {
	u, err := url.Parse(o)
	if err != nil || u.Host == "" {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && (u.Path == "" || u.Path == "/")
}

func (c CORSConfig) allowed(origin string) (string, bool) {
	if slices.Contains(c.AllowedOrigins, Wildcard) {
		return Wildcard, true
	}
	if slices.Contains(c.AllowedOrigins, origin) {
		return origin, true
	}
	return "", false
}

// CORS sets the Access-Control headers for allowed origins and answers
// preflight requests with 204 without calling next. Requests without an
// Origin, or from a disallowed origin, pass through untouched and the browser
// blocks the response.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allow, ok := cfg.allowed(origin)
			if !ok {
				if cfg.Logger != nil {
					cfg.Logger.Warn("CORS: origin not allowed",
						slog.String("origin", origin),
						slog.String("path", r.URL.Path))
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", allow)
			if allow != Wildcard {
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				w.Header().Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
