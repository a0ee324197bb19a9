package middleware

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/popeskul/inbound-messages/internal/api"
)

// Common error messages used by middleware
const (
	ErrorMessageInternal          = "internal error"
	ErrorMessageRateLimitExceeded = "too many requests"
)

func writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	render.Status(r, status)
	render.JSON(w, r, api.ErrorResponse{Detail: detail})
}
