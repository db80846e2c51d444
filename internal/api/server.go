// Package api serves the status and admin surface of the trading engine:
// health and status endpoints, the circuit-breaker reset, Prometheus
// metrics, and a WebSocket stream of decision-log events.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smc-trader/internal/config"
)

// Server runs the HTTP/WebSocket API for the dashboard.
type Server struct {
	cfg      config.DashboardConfig
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer builds the dashboard server around an existing hub, so the
// caller can tee decision records into the stream before the engine is
// fully wired. positions may be nil to disable the position admin
// endpoints.
func NewServer(cfg config.DashboardConfig, provider StatusProvider, positions PositionAdmin, hub *Hub, logger *slog.Logger) *Server {
	handlers := NewHandlers(provider, positions, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/status", handlers.HandleStatus)
	mux.HandleFunc("/api/risk/reset", handlers.HandleRiskReset)
	mux.HandleFunc("/api/positions/close", handlers.HandleClosePosition)
	mux.HandleFunc("/api/positions/amend", handlers.HandleAmendPosition)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", handlers.HandleWebSocket)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start runs the hub and blocks serving HTTP until Stop.
func (s *Server) Start() error {
	go s.hub.Run()

	s.logger.Info("dashboard server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.logger.Info("stopping dashboard server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
