package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/popeskul/inbound-messages/internal/api"
	"github.com/popeskul/inbound-messages/internal/handler"
	"github.com/popeskul/inbound-messages/internal/middleware"
	"github.com/popeskul/inbound-messages/internal/service"
	"github.com/popeskul/inbound-messages/internal/service/mocks"
)

type webhookOutcomes struct {
	outcomes []string
}

func (w *webhookOutcomes) ObserveRequest(string, int, time.Duration) {}

func (w *webhookOutcomes) ObserveWebhookOutcome(outcome string) {
	w.outcomes = append(w.outcomes, outcome)
}

func strPtr(s string) *string {
	return &s
}

func withRequestID(req *http.Request) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "test-request-id"))
}

func TestHandler_ReceiveWebhook(t *testing.T) {
	tests := []struct {
		name           string
		result         *service.IngestResult
		expectedStatus int
		expectedBody   string
		expectedLevel  string
	}{
		{
			name:           "created",
			result:         &service.IngestResult{Outcome: service.OutcomeCreated, StatusCode: http.StatusOK, MessageID: "m1"},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"ok"}`,
			expectedLevel:  "info",
		},
		{
			name:           "duplicate",
			result:         &service.IngestResult{Outcome: service.OutcomeDuplicate, StatusCode: http.StatusOK, MessageID: "m1"},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"ok"}`,
			expectedLevel:  "info",
		},
		{
			name:           "invalid signature",
			result:         &service.IngestResult{Outcome: service.OutcomeInvalidSignature, StatusCode: http.StatusUnauthorized},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"detail":"invalid signature"}`,
			expectedLevel:  "info",
		},
		{
			name: "validation error",
			result: &service.IngestResult{
				Outcome:          service.OutcomeValidationError,
				StatusCode:       http.StatusUnprocessableEntity,
				MessageID:        "m1",
				ValidationErrors: []api.FieldError{{Field: "from", Message: `must match ^\+\d+$`}},
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"detail":[{"field":"from","message":"must match ^\\+\\d+$"}]}`,
			expectedLevel:  "info",
		},
		{
			name: "server error",
			result: &service.IngestResult{
				Outcome:    service.OutcomeServerError,
				StatusCode: http.StatusInternalServerError,
				MessageID:  "m1",
				Err:        errors.New("disk I/O error"),
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"detail":"internal error"}`,
			expectedLevel:  "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			mockIngest := mocks.NewMockIngestService(ctrl)
			mockIngest.EXPECT().
				Ingest(gomock.Any(), gomock.Any(), "abc123").
				Return(tt.result)

			core, logs := observer.New(zap.InfoLevel)
			recorder := &webhookOutcomes{}

			h := handler.NewHandler(&service.Service{Ingest: mockIngest}, recorder, zap.New(core))

			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
			req.Header.Set("X-Signature", "abc123")
			w := httptest.NewRecorder()

			h.ReceiveWebhook(w, withRequestID(req))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			assert.Equal(t, []string{tt.result.Outcome}, recorder.outcomes)

			entries := logs.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.expectedLevel, entries[0].Level.String())

			fields := entries[0].ContextMap()
			assert.Equal(t, "test-request-id", fields["request_id"])
			assert.Equal(t, "/webhook", fields["path"])
			assert.Equal(t, int64(tt.expectedStatus), fields["status"])
			assert.Equal(t, tt.result.Outcome, fields["result"])
			assert.Equal(t, tt.result.Outcome == service.OutcomeDuplicate, fields["dup"])
			assert.Contains(t, fields, "latency_ms")
			if tt.result.MessageID == "" {
				assert.Nil(t, fields["message_id"])
			} else {
				assert.Equal(t, tt.result.MessageID, fields["message_id"])
			}
		})
	}
}

func TestHandler_ReceiveWebhookPanicCountsAsServerError(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockIngest := mocks.NewMockIngestService(ctrl)
	mockIngest.EXPECT().
		Ingest(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, io.Reader, string) *service.IngestResult {
			panic("store driver bug")
		})

	recorder := &webhookOutcomes{}
	h := handler.NewHandler(&service.Service{Ingest: mockIngest}, recorder, zap.NewNop())
	wrapped := middleware.Recovery(zap.NewNop())(http.HandlerFunc(h.ReceiveWebhook))

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, withRequestID(req))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"internal error"}`, w.Body.String())
	assert.Equal(t, []string{service.OutcomeServerError}, recorder.outcomes)
}

func TestHandler_ListMessages(t *testing.T) {
	text := "apple"
	limit := 10

	tests := []struct {
		name           string
		setupMocks     func(*mocks.MockQueryService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "success",
			setupMocks: func(m *mocks.MockQueryService) {
				m.EXPECT().
					ListMessages(gomock.Any(), api.ListMessagesParams{Limit: &limit}).
					Return(&api.MessageListResponse{
						Data: []api.Message{
							{MessageId: "m1", From: "+911", To: "+100", Ts: "2025-01-15T10:00:00Z", Text: &text},
							{MessageId: "m2", From: "+912", To: "+100", Ts: "2025-01-15T11:00:00Z"},
						},
						Total:  2,
						Limit:  10,
						Offset: 0,
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{"data":[
				{"message_id":"m1","from":"+911","to":"+100","ts":"2025-01-15T10:00:00Z","text":"apple"},
				{"message_id":"m2","from":"+912","to":"+100","ts":"2025-01-15T11:00:00Z","text":null}
			],"total":2,"limit":10,"offset":0}`,
		},
		{
			name: "empty page",
			setupMocks: func(m *mocks.MockQueryService) {
				m.EXPECT().
					ListMessages(gomock.Any(), gomock.Any()).
					Return(&api.MessageListResponse{Data: []api.Message{}, Limit: 10}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"data":[],"total":0,"limit":10,"offset":0}`,
		},
		{
			name: "store failure",
			setupMocks: func(m *mocks.MockQueryService) {
				m.EXPECT().
					ListMessages(gomock.Any(), gomock.Any()).
					Return(nil, service.ErrStoreUnavailable)
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"detail":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			mockQuery := mocks.NewMockQueryService(ctrl)
			tt.setupMocks(mockQuery)

			h := handler.NewHandler(&service.Service{Query: mockQuery}, nil, zap.NewNop())

			req := httptest.NewRequest(http.MethodGet, "/messages?limit=10", nil)
			w := httptest.NewRecorder()

			h.ListMessages(w, withRequestID(req), api.ListMessagesParams{Limit: &limit})

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestHandler_ListMessagesSenderFromRawQuery(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		bound    *string
		expected *string
	}{
		{name: "literal plus", target: "/messages?from=+911", bound: strPtr(" 911"), expected: strPtr("+911")},
		{name: "percent-encoded plus", target: "/messages?from=%2B911", bound: strPtr("+911"), expected: strPtr("+911")},
		{name: "among other params", target: "/messages?limit=5&from=+912&q=a+b", bound: strPtr(" 912"), expected: strPtr("+912")},
		{name: "absent", target: "/messages?q=ana", bound: nil, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			mockQuery := mocks.NewMockQueryService(ctrl)
			mockQuery.EXPECT().
				ListMessages(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, params api.ListMessagesParams) (*api.MessageListResponse, error) {
					assert.Equal(t, tt.expected, params.From)
					return &api.MessageListResponse{Data: []api.Message{}, Limit: 50}, nil
				})

			h := handler.NewHandler(&service.Service{Query: mockQuery}, nil, zap.NewNop())

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			w := httptest.NewRecorder()

			h.ListMessages(w, withRequestID(req), api.ListMessagesParams{From: tt.bound})

			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestHandler_GetStats(t *testing.T) {
	first := "2025-01-14T09:00:00Z"
	last := "2025-01-16T10:00:00Z"

	tests := []struct {
		name           string
		setupMocks     func(*mocks.MockQueryService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "populated",
			setupMocks: func(m *mocks.MockQueryService) {
				m.EXPECT().GetStats(gomock.Any()).Return(&api.StatsResponse{
					TotalMessages:     3,
					SendersCount:      2,
					MessagesPerSender: []api.SenderCount{{From: "+911", Count: 2}, {From: "+912", Count: 1}},
					FirstMessageTs:    &first,
					LastMessageTs:     &last,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{"total_messages":3,"senders_count":2,
				"messages_per_sender":[{"from":"+911","count":2},{"from":"+912","count":1}],
				"first_message_ts":"2025-01-14T09:00:00Z","last_message_ts":"2025-01-16T10:00:00Z"}`,
		},
		{
			name: "empty store",
			setupMocks: func(m *mocks.MockQueryService) {
				m.EXPECT().GetStats(gomock.Any()).Return(&api.StatsResponse{MessagesPerSender: []api.SenderCount{}}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{"total_messages":0,"senders_count":0,"messages_per_sender":[],
				"first_message_ts":null,"last_message_ts":null}`,
		},
		{
			name: "store failure",
			setupMocks: func(m *mocks.MockQueryService) {
				m.EXPECT().GetStats(gomock.Any()).Return(nil, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"detail":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			mockQuery := mocks.NewMockQueryService(ctrl)
			tt.setupMocks(mockQuery)

			h := handler.NewHandler(&service.Service{Query: mockQuery}, nil, zap.NewNop())

			w := httptest.NewRecorder()
			h.GetStats(w, withRequestID(httptest.NewRequest(http.MethodGet, "/stats", nil)))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestHandler_Liveness(t *testing.T) {
	h := handler.NewHandler(&service.Service{}, nil, zap.NewNop())

	w := httptest.NewRecorder()
	h.Liveness(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHandler_Readiness(t *testing.T) {
	tests := []struct {
		name           string
		status         service.ReadinessStatus
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "ready",
			status:         service.ReadinessStatus{Ready: true},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"ready"}`,
		},
		{
			name:           "secret missing",
			status:         service.ReadinessStatus{Detail: "WEBHOOK_SECRET missing"},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"detail":"WEBHOOK_SECRET missing"}`,
		},
		{
			name:           "database down",
			status:         service.ReadinessStatus{Detail: "database connection failed"},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"detail":"database connection failed"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			mockHealth := mocks.NewMockHealthService(ctrl)
			mockHealth.EXPECT().Readiness(gomock.Any()).Return(tt.status)

			h := handler.NewHandler(&service.Service{Health: mockHealth}, nil, zap.NewNop())

			w := httptest.NewRecorder()
			h.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestParamErrorHandler(t *testing.T) {
	router := api.HandlerWithOptions(api.Unimplemented{}, api.ChiServerOptions{
		ErrorHandlerFunc: handler.ParamErrorHandler,
	})

	tests := []struct {
		name         string
		url          string
		expectedBody string
	}{
		{
			name:         "non-integer limit",
			url:          "/messages?limit=abc",
			expectedBody: `{"detail":[{"field":"limit","message":"must be an integer"}]}`,
		},
		{
			name:         "non-integer offset",
			url:          "/messages?offset=1.5",
			expectedBody: `{"detail":[{"field":"offset","message":"must be an integer"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())

			var body api.ValidationErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		})
	}
}
