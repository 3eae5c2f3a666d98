package api

import (
	"net/http"

	"github.com/okian/holdsnap/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	metrics http.Handler
}

// NewHealthHandler creates a health handler serving the registry of m.
func NewHealthHandler(m *metrics.Manager) *HealthHandler {
	return &HealthHandler{metrics: promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})}
}

// HandleHealth handles GET /healthz requests by serving Prometheus metrics.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
