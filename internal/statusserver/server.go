// Package statusserver exposes the archive engine's operational
// surface over HTTP: health/readiness/liveness probes, Prometheus
// metrics, and a debug endpoint reporting the volume controller's
// current state. It carries no archive-domain routes of its own —
// packing and restoring are driven by cmd/bar, not this server.
package statusserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"bar/internal/debug"
	"bar/internal/metrics"
	"bar/internal/middleware"
	"bar/internal/volume"
)

// Config controls the server's listen address and the dependency
// health check wired into /ready.
type Config struct {
	Addr                  string
	DependencyHealthCheck func(context.Context) error
}

// Server serves the status/metrics HTTP surface.
type Server struct {
	metrics    *metrics.Metrics
	volume     *volume.Controller
	logger     *logrus.Logger
	httpServer *http.Server
}

// New builds a Server. volumeController may be nil if no volume
// controller is in play (e.g. a single-part, non-interactive archive).
func New(cfg Config, m *metrics.Metrics, volumeController *volume.Controller, logger *logrus.Logger) *Server {
	s := &Server{metrics: m, volume: volumeController, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/health", metrics.HealthHandler()).Methods(http.MethodGet)
	r.HandleFunc("/ready", metrics.ReadinessHandler(cfg.DependencyHealthCheck)).Methods(http.MethodGet)
	r.HandleFunc("/live", metrics.LivenessHandler()).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/debug/volume", s.handleDebugVolume).Methods(http.MethodGet)

	handler := middleware.RecoveryMiddleware(logger)(middleware.LoggingMiddleware(logger)(r))
	s.httpServer = &http.Server{
		Addr:    addrOrDefault(cfg.Addr),
		Handler: handler,
	}
	return s
}

func addrOrDefault(addr string) string {
	if addr == "" {
		return ":9090"
	}
	return addr
}

// debugVolumeStatus is the JSON body /debug/volume responds with.
type debugVolumeStatus struct {
	State        string `json:"state"`
	VolumeNumber int    `json:"volume_number"`
	DebugLogging bool   `json:"debug_logging"`
}

func (s *Server) handleDebugVolume(w http.ResponseWriter, r *http.Request) {
	status := debugVolumeStatus{DebugLogging: debug.Enabled()}
	if s.volume != nil {
		status.State = s.volume.State().String()
		status.VolumeNumber = s.volume.VolumeNumber()
	} else {
		status.State = "unconfigured"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// ListenAndServe starts serving and blocks until the server stops or
// errors.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting up to the given
// timeout for in-flight requests to complete.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
