// Package middleware provides HTTP middleware components for the application.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// DefaultCORSConfig allows any origin to read the API and to post signed webhooks.
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-Signature"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         86400,
	}
}

type corsPolicy struct {
	anyOrigin   bool
	origins     map[string]struct{}
	credentials bool

	methods string
	headers string
	exposed string
	maxAge  string
}

func newCORSPolicy(config *CORSConfig) *corsPolicy {
	p := &corsPolicy{
		origins:     make(map[string]struct{}, len(config.AllowedOrigins)),
		credentials: config.AllowCredentials,
		methods:     strings.Join(config.AllowedMethods, ", "),
		headers:     strings.Join(config.AllowedHeaders, ", "),
		exposed:     strings.Join(config.ExposedHeaders, ", "),
	}

	for _, origin := range config.AllowedOrigins {
		if origin == "*" {
			p.anyOrigin = true
			continue
		}
		p.origins[origin] = struct{}{}
	}

	if config.MaxAge > 0 {
		p.maxAge = strconv.Itoa(config.MaxAge)
	}

	return p
}

func (p *corsPolicy) allows(origin string) bool {
	if p.anyOrigin {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

// CORS answers preflight requests itself and decorates every other cross-origin response.
// Requests from origins outside the list pass through without CORS headers.
func CORS(config *CORSConfig) func(next http.Handler) http.Handler {
	policy := newCORSPolicy(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")

			if !policy.allows(origin) {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Origin", origin)
			if policy.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", policy.methods)
				h.Set("Access-Control-Allow-Headers", policy.headers)
				if policy.maxAge != "" {
					h.Set("Access-Control-Max-Age", policy.maxAge)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if policy.exposed != "" {
				h.Set("Access-Control-Expose-Headers", policy.exposed)
			}

			next.ServeHTTP(w, r)
		})
	}
}
