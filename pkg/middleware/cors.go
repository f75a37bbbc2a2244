package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig controls the CORS middleware. Zero-valued fields get sensible
// defaults from CORS itself, so callers usually set only AllowedOrigins and
// Environment.
type CORSConfig struct {
	// AllowedOrigins lists origins permitted to call the API. A "*" entry
	// allows every origin regardless of environment.
	AllowedOrigins []string

	// AllowedMethods lists permitted HTTP methods. Empty means the full
	// CRUD set plus OPTIONS.
	AllowedMethods []string

	// AllowedHeaders lists request headers the browser may send.
	AllowedHeaders []string

	// ExposedHeaders lists response headers scripts may read.
	ExposedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds (default 3600).
	MaxAge int

	// AllowCredentials permits cookies and Authorization headers.
	AllowCredentials bool

	// Environment widens origin matching: "development" behaves as if
	// AllowedOrigins contained "*".
	Environment string
}

var (
	corsDefaultMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsDefaultHeaders = []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID", "X-User-ID"}
)

// DefaultCORSConfig is a permissive configuration for local development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: corsDefaultMethods,
		AllowedHeaders: corsDefaultHeaders,
		ExposedHeaders: []string{"X-Correlation-ID", "X-User-ID"},
		MaxAge:         3600,
		Environment:    "development",
	}
}

// CORS returns middleware that answers preflight requests and stamps CORS
// headers on every response per cfg.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = corsDefaultMethods
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = corsDefaultHeaders
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 3600
	}

	wildcard := cfg.Environment == "development"
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			wildcard = true
			continue
		}
		allowed[origin] = struct{}{}
	}

	methodList := strings.Join(cfg.AllowedMethods, ", ")
	headerList := strings.Join(cfg.AllowedHeaders, ", ")
	exposeList := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			switch origin := r.Header.Get("Origin"); {
			case wildcard:
				h.Set("Access-Control-Allow-Origin", "*")
			case origin != "":
				if _, ok := allowed[origin]; ok {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Vary", "Origin")
				}
			}

			h.Set("Access-Control-Allow-Methods", methodList)
			h.Set("Access-Control-Allow-Headers", headerList)
			h.Set("Access-Control-Max-Age", maxAge)
			if exposeList != "" {
				h.Set("Access-Control-Expose-Headers", exposeList)
			}
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
