// Package handler provides HTTP request handlers for the application.
package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/popeskul/inbound-messages/internal/api"
	"github.com/popeskul/inbound-messages/internal/metrics"
	"github.com/popeskul/inbound-messages/internal/middleware"
	"github.com/popeskul/inbound-messages/internal/service"
	"github.com/popeskul/inbound-messages/internal/signature"
)

const (
	errorMessageInvalidSignature = "invalid signature"
	errorMessageInternal         = "internal error"
	errorMessageInvalidParameter = "must be an integer"

	statusOK    = "ok"
	statusReady = "ready"
)

type Handler struct {
	service *service.Service
	metrics metrics.Recorder
	logger  *zap.Logger
}

// NewHandler creates a new handler instance that implements api.ServerInterface.
func NewHandler(service *service.Service, recorder metrics.Recorder, logger *zap.Logger) api.ServerInterface {
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	return &Handler{
		service: service,
		metrics: recorder,
		logger:  logger,
	}
}

// ReceiveWebhook implements api.ServerInterface.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// A panic is still a server_error outcome; the recovery middleware renders the response.
	defer func() {
		if rec := recover(); rec != nil {
			h.metrics.ObserveWebhookOutcome(service.OutcomeServerError)
			panic(rec)
		}
	}()

	result := h.service.Ingest.Ingest(r.Context(), r.Body, r.Header.Get(signature.HeaderName))

	switch result.StatusCode {
	case http.StatusOK:
		render.JSON(w, r, api.StatusResponse{Status: statusOK})
	case http.StatusUnauthorized:
		h.sendError(w, r, http.StatusUnauthorized, errorMessageInvalidSignature)
	case http.StatusUnprocessableEntity:
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, api.ValidationErrorResponse{Detail: result.ValidationErrors})
	default:
		h.sendError(w, r, http.StatusInternalServerError, errorMessageInternal)
	}

	h.metrics.ObserveWebhookOutcome(result.Outcome)

	fields := []zap.Field{
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", result.StatusCode),
		zap.Float64("latency_ms", middleware.LatencyMillis(time.Since(start))),
		zap.String("result", result.Outcome),
		zap.Bool("dup", result.Duplicate()),
		messageIDField(result.MessageID),
	}
	if result.Err != nil {
		fields = append(fields, zap.Error(result.Err))
	}

	if result.Outcome == service.OutcomeServerError {
		h.logger.Error("Webhook processed", fields...)
		return
	}
	h.logger.Info("Webhook processed", fields...)
}

// ListMessages implements api.ServerInterface.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request, params api.ListMessagesParams) {
	if from, ok := rawQueryValue(r.URL.RawQuery, "from"); ok {
		params.From = &from
	}

	result, err := h.service.Query.ListMessages(r.Context(), params)
	if err != nil {
		h.logger.Error("Failed to list messages",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, errorMessageInternal)
		return
	}

	render.JSON(w, r, result)
}

// GetStats implements api.ServerInterface.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Query.GetStats(r.Context())
	if err != nil {
		h.logger.Error("Failed to get stats",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, errorMessageInternal)
		return
	}

	render.JSON(w, r, result)
}

// Liveness implements api.ServerInterface.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.StatusResponse{Status: statusOK})
}

// Readiness implements api.ServerInterface.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	status := h.service.Health.Readiness(r.Context())
	if !status.Ready {
		h.sendError(w, r, http.StatusServiceUnavailable, status.Detail)
		return
	}

	render.JSON(w, r, api.StatusResponse{Status: statusReady})
}

// ParamErrorHandler renders query parameter binding failures as validation errors.
func ParamErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	field := "query"
	var formatErr *api.InvalidParamFormatError
	if errors.As(err, &formatErr) {
		field = formatErr.ParamName
	}

	render.Status(r, http.StatusUnprocessableEntity)
	render.JSON(w, r, api.ValidationErrorResponse{
		Detail: []api.FieldError{{Field: field, Message: errorMessageInvalidParameter}},
	})
}

func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, statusCode int, detail string) {
	render.Status(r, statusCode)
	render.JSON(w, r, api.ErrorResponse{Detail: detail})
}

// rawQueryValue returns the first value of key with only percent-escapes decoded, so a literal
// + in a sender address survives. Senders never contain spaces.
func rawQueryValue(rawQuery, key string) (string, bool) {
	for _, pair := range strings.Split(rawQuery, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if name, err := url.PathUnescape(k); err != nil || name != key {
			continue
		}

		value, err := url.PathUnescape(v)
		if err != nil {
			return "", false
		}
		return value, true
	}

	return "", false
}

func messageIDField(id string) zap.Field {
	if id == "" {
		return zap.Any("message_id", nil)
	}
	return zap.String("message_id", id)
}
