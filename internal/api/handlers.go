package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"smc-trader/internal/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for local development
		return true
	},
}

// StatusProvider is the slice of the engine the dashboard reads.
type StatusProvider interface {
	GetStatus() engine.Status
	ResetCircuitBreaker()
}

// PositionAdmin is the slice of the broker the admin endpoints drive.
// Nil disables the position endpoints (dry-run deployments).
type PositionAdmin interface {
	ClosePosition(ctx context.Context, positionID int64) error
	AmendPositionSLTP(ctx context.Context, positionID int64, stopLoss, takeProfit float64) error
}

// Handlers holds all HTTP handler dependencies.
type Handlers struct {
	provider  StatusProvider
	positions PositionAdmin
	hub       *Hub
	logger    *slog.Logger
}

func NewHandlers(provider StatusProvider, positions PositionAdmin, hub *Hub, logger *slog.Logger) *Handlers {
	return &Handlers{
		provider:  provider,
		positions: positions,
		hub:       hub,
		logger:    logger.With("component", "api-handlers"),
	}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleStatus returns the engine snapshot.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.provider.GetStatus()); err != nil {
		h.logger.Error("failed to encode status", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// HandleRiskReset clears the daily-loss circuit breaker. POST only.
func (h *Handlers) HandleRiskReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.provider.ResetCircuitBreaker()
	h.logger.Warn("circuit breaker reset via admin endpoint", "remote", r.RemoteAddr)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "reset"})
}

// HandleClosePosition closes one open position at market. POST only.
func (h *Handlers) HandleClosePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.positions == nil {
		http.Error(w, "position admin disabled", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		PositionID int64 `json:"positionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PositionID <= 0 {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.positions.ClosePosition(r.Context(), req.PositionID); err != nil {
		h.logger.Error("admin close failed", "position_id", req.PositionID, "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.logger.Warn("position closed via admin endpoint", "position_id", req.PositionID, "remote", r.RemoteAddr)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "closed"})
}

// HandleAmendPosition changes SL/TP on one open position. POST only; a
// zero level leaves the corresponding side untouched.
func (h *Handlers) HandleAmendPosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.positions == nil {
		http.Error(w, "position admin disabled", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		PositionID int64   `json:"positionId"`
		StopLoss   float64 `json:"stopLoss"`
		TakeProfit float64 `json:"takeProfit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PositionID <= 0 {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.positions.AmendPositionSLTP(r.Context(), req.PositionID, req.StopLoss, req.TakeProfit); err != nil {
		h.logger.Error("admin amend failed", "position_id", req.PositionID, "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.logger.Info("position amended via admin endpoint",
		"position_id", req.PositionID, "stop_loss", req.StopLoss, "take_profit", req.TakeProfit)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "amended"})
}

// HandleWebSocket upgrades the connection and registers a stream client.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn)

	// Seed the client with the current engine state.
	evt := EngineEvent{
		Type: "status",
		Data: h.provider.GetStatus(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to marshal initial status", "error", err)
		return
	}

	select {
	case client.send <- data:
	default:
		h.logger.Warn("failed to send initial status to client")
	}
}
