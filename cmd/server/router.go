package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/popeskul/inbound-messages/internal/api"
	"github.com/popeskul/inbound-messages/internal/handler"
	"github.com/popeskul/inbound-messages/internal/metrics"
)

func setupRouter(h api.ServerInterface, prom *metrics.Prometheus) http.Handler {
	r := chi.NewRouter()

	r.Method(http.MethodGet, "/metrics", prom.Handler())

	// Serve OpenAPI spec
	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, "api/openapi.yaml")
	})

	return api.HandlerWithOptions(h, api.ChiServerOptions{
		BaseRouter:       r,
		ErrorHandlerFunc: handler.ParamErrorHandler,
	})
}
