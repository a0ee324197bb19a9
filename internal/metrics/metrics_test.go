package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/inbound-messages/internal/metrics"
)

func TestPrometheus_ObserveWebhookOutcome(t *testing.T) {
	p := metrics.NewPrometheus()

	p.ObserveWebhookOutcome("created")
	p.ObserveWebhookOutcome("created")
	p.ObserveWebhookOutcome("duplicate")
	p.ObserveWebhookOutcome("invalid_signature")

	expected := `
# HELP webhook_requests_total Total number of webhook requests by outcome
# TYPE webhook_requests_total counter
webhook_requests_total{result="created"} 2
webhook_requests_total{result="duplicate"} 1
webhook_requests_total{result="invalid_signature"} 1
`
	err := testutil.GatherAndCompare(p.Registry(), strings.NewReader(expected), "webhook_requests_total")
	require.NoError(t, err)
}

func TestPrometheus_ObserveRequest(t *testing.T) {
	p := metrics.NewPrometheus()

	p.ObserveRequest("/webhook", http.StatusOK, 20*time.Millisecond)
	p.ObserveRequest("/webhook", http.StatusUnauthorized, 200*time.Millisecond)
	p.ObserveRequest("/messages", http.StatusOK, 2*time.Second)

	expected := `
# HELP http_requests_total Total number of HTTP requests
# TYPE http_requests_total counter
http_requests_total{path="/messages",status="200"} 1
http_requests_total{path="/webhook",status="200"} 1
http_requests_total{path="/webhook",status="401"} 1
# HELP request_latency_ms Request latency in milliseconds
# TYPE request_latency_ms histogram
request_latency_ms_bucket{le="100"} 1
request_latency_ms_bucket{le="500"} 2
request_latency_ms_bucket{le="+Inf"} 3
request_latency_ms_sum 2220
request_latency_ms_count 3
`
	err := testutil.GatherAndCompare(p.Registry(), strings.NewReader(expected),
		"http_requests_total", "request_latency_ms")
	require.NoError(t, err)
}

func TestPrometheus_IndependentRegistries(t *testing.T) {
	first := metrics.NewPrometheus()
	second := metrics.NewPrometheus()

	first.ObserveWebhookOutcome("created")

	count, err := testutil.GatherAndCount(first.Registry(), "webhook_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = testutil.GatherAndCount(second.Registry(), "webhook_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPrometheus_Handler(t *testing.T) {
	p := metrics.NewPrometheus()
	p.ObserveWebhookOutcome("validation_error")

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `webhook_requests_total{result="validation_error"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestPrometheus_SetStoreUp(t *testing.T) {
	p := metrics.NewPrometheus()

	tests := []struct {
		up       bool
		expected string
	}{
		{up: true, expected: "store_up 1\n"},
		{up: false, expected: "store_up 0\n"},
		{up: true, expected: "store_up 1\n"},
	}

	for _, tt := range tests {
		p.SetStoreUp(tt.up)

		expected := `
# HELP store_up Whether the last background store probe succeeded
# TYPE store_up gauge
` + tt.expected
		require.NoError(t, testutil.GatherAndCompare(p.Registry(), strings.NewReader(expected), "store_up"))
	}
}

func TestNop(t *testing.T) {
	var r metrics.Recorder = metrics.Nop{}

	assert.NotPanics(t, func() {
		r.ObserveRequest("/", http.StatusOK, time.Millisecond)
		r.ObserveWebhookOutcome("created")
		metrics.Nop{}.SetStoreUp(true)
	})
}
