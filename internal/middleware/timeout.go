package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds the request context with a deadline. Handlers run on the calling goroutine and
// observe the deadline through their context; store calls fail once it passes.
func Timeout(timeout time.Duration) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
