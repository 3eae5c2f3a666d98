// Package api serves the run's status endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/holdsnap/pkg/metrics"
)

// Server wires the status routes.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	metrics       *metrics.Manager
}

// NewServer creates a status server reading progress from statsProvider
// and exposing the registry of m.
func NewServer(statsProvider StatsProvider, m *metrics.Manager) *Server {
	return &Server{
		healthHandler: NewHealthHandler(m),
		statsHandler:  NewStatsHandler(statsProvider),
		metrics:       m,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.metrics, s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.metrics, s.statsHandler.HandleStats, "stats"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
