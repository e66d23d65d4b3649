package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for the three audiences
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleConnection upgrades /ws/{audience} or /ws?audience=...
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/ws"), "/")
	if name == "" {
		name = r.URL.Query().Get("audience")
	}
	audience, ok := events.ParseAudience(name)
	if !ok {
		http.Error(w, "audience must be one of admin, hud, input", http.StatusBadRequest)
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, audience); err != nil {
		// the upgrader already wrote the HTTP error
		log.Error().
			Err(err).
			Str("audience", name).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to write connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
	mux.HandleFunc("/ws/admin", h.HandleConnection)
	mux.HandleFunc("/ws/hud", h.HandleConnection)
	mux.HandleFunc("/ws/input", h.HandleConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
