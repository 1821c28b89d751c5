// Package server exposes the operational HTTP endpoints: a health probe and a
// trigger for running a sweep on demand.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Sweeper interface for triggering sweeps.
type Sweeper interface {
	SweepAll(ctx context.Context) error
}

// Server handles HTTP requests.
type Server struct {
	sweeper Sweeper
	logger  *slog.Logger
}

// New creates a new HTTP server handler.
func New(sweeper Sweeper, logger *slog.Logger) *Server {
	return &Server{sweeper: sweeper, logger: logger}
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/sweepz", s.handleSweep)
	return mux
}

// ListenAndServe starts the server on addr and blocks until it fails.
func (s *Server) ListenAndServe(addr string) error {
	// Timeouts prevent resource exhaustion from slow clients
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", addr)
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"healthy"}`); err != nil {
		s.logger.Warn("Failed to write health response", "error", err)
	}
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.logger.Info("Sweep endpoint triggered")

	if err := s.sweeper.SweepAll(r.Context()); err != nil {
		s.logger.Error("Sweep failed", "error", err)
		http.Error(w, "Sweep failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"completed"}`); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
