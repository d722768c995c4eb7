package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hookrelay-systems/hookrelay/internal/handlers"
	"github.com/hookrelay-systems/hookrelay/internal/middleware"
)

// NewRouter constructs a ServeMux with the webhook API routes registered.
func NewRouter(h *handlers.WebhookHandler) http.Handler {
	mux := http.NewServeMux()

	// Platform webhook endpoints
	mux.HandleFunc("/webhooks/commerce", h.HandleWebhook)
	mux.HandleFunc("/webhooks/verify", h.HandleVerify)
	mux.HandleFunc("/webhooks/retry", h.HandleRetry)

	// Operator endpoints
	mux.HandleFunc("/webhooks/events", h.HandleEventLookup)
	mux.HandleFunc("/webhooks/stats", h.HandleStats)

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
