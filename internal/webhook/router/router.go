// Package router wires the receiver's routes and applies the middleware
// chain (RequestID → Metrics).
package router

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/internal/webhook/handler"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/middleware"
)

const (
	RootPath    = "/"
	WebhookPath = "/webhook"
	ReadyPath   = "/health/ready"
)

// New builds the full HTTP handler.
//
// Route table:
//
//	GET    /              → liveness, always 200
//	POST   /webhook       → store payload
//	GET    /health/ready  → readiness report
//
// Everything else gets the ServeMux default 404 (or 405 for a known path).
func New(h *handler.Handler, checker *health.Checker, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", health.LiveHandler())
	mux.HandleFunc("POST "+WebhookPath, h.Receive)
	mux.HandleFunc("GET "+ReadyPath, checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m, RootPath, WebhookPath, ReadyPath)(chain)
	chain = middleware.RequestID(chain)

	return chain
}
