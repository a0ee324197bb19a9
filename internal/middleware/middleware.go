package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/popeskul/inbound-messages/internal/metrics"
)

// Config holds middleware configuration.
type Config struct {
	Logger *zap.Logger
	// LogSkipPaths are left out of the access log.
	LogSkipPaths []string

	// Metrics wraps recovery and rate limiting so every response is counted.
	Metrics metrics.Recorder

	CORS *CORSConfig

	RateLimiter *RateLimiter

	RequestTimeout time.Duration
}

// Chain creates a middleware chain with all configured middleware.
func Chain(config *Config) func(http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		// Apply middleware in order (inner to outer)
		h := handler

		h = Timeout(config.RequestTimeout)(h)

		if config.RateLimiter != nil {
			h = config.RateLimiter.Middleware()(h)
		}

		if config.CORS != nil {
			h = CORS(config.CORS)(h)
		}

		h = Recovery(config.Logger)(h)

		if config.Metrics != nil {
			h = Metrics(config.Metrics)(h)
		}

		h = Logger(config.Logger, config.LogSkipPaths...)(h)

		h = RequestID(h)

		return h
	}
}
