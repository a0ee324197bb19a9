// Package metrics records request and webhook counters on an explicitly injected registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics collaborator handed to middleware and handlers.
type Recorder interface {
	ObserveRequest(path string, status int, latency time.Duration)
	ObserveWebhookOutcome(outcome string)
}

type Prometheus struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	webhookRequestsTotal *prometheus.CounterVec
	requestLatency       prometheus.Histogram
	storeUp              prometheus.Gauge
}

// NewPrometheus creates a recorder backed by its own registry, which also carries the Go
// runtime and process collectors.
func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Prometheus{
		registry: registry,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "status"},
		),
		webhookRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_requests_total",
				Help: "Total number of webhook requests by outcome",
			},
			[]string{"result"},
		),
		requestLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "request_latency_ms",
				Help:    "Request latency in milliseconds",
				Buckets: []float64{100, 500},
			},
		),
		storeUp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "store_up",
				Help: "Whether the last background store probe succeeded",
			},
		),
	}
}

func (p *Prometheus) ObserveRequest(path string, status int, latency time.Duration) {
	p.httpRequestsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
	p.requestLatency.Observe(float64(latency) / float64(time.Millisecond))
}

func (p *Prometheus) ObserveWebhookOutcome(outcome string) {
	p.webhookRequestsTotal.WithLabelValues(outcome).Inc()
}

// SetStoreUp records the result of the latest store probe.
func (p *Prometheus) SetStoreUp(up bool) {
	if up {
		p.storeUp.Set(1)
		return
	}
	p.storeUp.Set(0)
}

// Registry exposes the underlying registry for tests and extra collectors.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus text exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Nop discards all observations.
type Nop struct{}

func (Nop) ObserveRequest(string, int, time.Duration) {}

func (Nop) ObserveWebhookOutcome(string) {}

func (Nop) SetStoreUp(bool) {}
