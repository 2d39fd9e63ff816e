package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jeongseonghan/modulation-studio/internal/modem"
	"github.com/jeongseonghan/modulation-studio/internal/sim"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// RunSummary is the websocket payload announcing a completed run.
type RunSummary struct {
	ID            uuid.UUID      `json:"id"`
	Scheme        modem.SchemeID `json:"scheme"`
	CompareScheme modem.SchemeID `json:"compareScheme,omitempty"`
	Primary       string         `json:"primary"`
	Compare       string         `json:"compare"`
	Fingerprint   string         `json:"fingerprint"`
	ElapsedMs     float64        `json:"elapsedMs"`
}

// NewRunSummary condenses a report for broadcasting.
func NewRunSummary(r *sim.Report) RunSummary {
	s := RunSummary{
		ID:          r.ID,
		Scheme:      r.Primary.Scheme.ID,
		Primary:     r.PrimaryText(),
		Compare:     r.CompareText(),
		Fingerprint: r.Primary.Metrics.Fingerprint,
		ElapsedMs:   float64(r.Elapsed.Microseconds()) / 1000,
	}
	if r.Compare != nil {
		s.CompareScheme = r.Compare.Scheme.ID
	}
	return s
}

// WSHub manages WebSocket connections.
type WSHub struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	logger  *log.Logger
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub(logger *log.Logger) *WSHub {
	return &WSHub{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger,
	}
}

// AddClient registers a new WebSocket connection.
func (h *WSHub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
	h.logger.Info("websocket client connected", "total", len(h.clients))
}

// RemoveClient removes a WebSocket connection.
func (h *WSHub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[conn] {
		return
	}
	delete(h.clients, conn)
	conn.Close()
	h.logger.Info("websocket client disconnected", "remaining", len(h.clients))
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to all connected clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("websocket marshal", "err", err)
		return
	}

	// Writers on one connection must not overlap.
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		err := conn.WriteMessage(websocket.TextMessage, data)
		if err != nil {
			h.logger.Warn("websocket write", "err", err)
			go h.RemoveClient(conn)
		}
	}
}

// BroadcastRun announces a completed run to all clients.
func (h *WSHub) BroadcastRun(r *sim.Report) {
	h.Broadcast(WSMessage{Type: "run", Payload: NewRunSummary(r)})
}

// BroadcastStatus sends a status update to all clients.
func (h *WSHub) BroadcastStatus(status, message string) {
	h.Broadcast(WSMessage{
		Type: "status",
		Payload: map[string]string{
			"status":  status,
			"message": message,
		},
	})
}
