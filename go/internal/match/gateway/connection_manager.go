package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/rs/zerolog/log"
)

// ErrInvalidCommand marks a client message the gateway could not route or decode.
// The sender gets an error notification back.
var ErrInvalidCommand = errors.New("invalid command")

// StateProvider returns the projection sent to a client on connect.
type StateProvider interface {
	PublicState() events.PublicState
}

// CommandHandler executes a client message received on an audience channel.
type CommandHandler interface {
	HandleCommand(ctx context.Context, audience events.Audience, msgType string, data json.RawMessage) error
}

// ClientMessage is the envelope clients send: {type, data}.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ConnectionManager manages WebSocket connections grouped by audience
type ConnectionManager struct {
	connections map[events.Audience]map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	state    StateProvider
	commands CommandHandler

	broadcastCh chan BroadcastMessage

	// ctx scopes client commands to the manager's lifetime
	ctx context.Context
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to broadcast to connections
type BroadcastMessage struct {
	Audiences []events.Audience
	Event     *events.Event
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 * 1024, // snapshots carry every gift count of both players
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, state StateProvider, commands CommandHandler) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &ConnectionManager{
		connections: make(map[events.Audience]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		state:       state,
		commands:    commands,
		broadcastCh: make(chan BroadcastMessage, 1000),
		ctx:         context.Background(),
	}
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	cm.mu.Lock()
	cm.ctx = ctx
	cm.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// Broadcast queues an event for the given audiences. It never blocks; when the
// queue is full the event is dropped.
func (cm *ConnectionManager) Broadcast(audiences []events.Audience, event *events.Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{Audiences: audiences, Event: event}:
	default:
		broadcastsDropped.Inc()
		log.Warn().Str("event_type", string(event.Type)).Msg("broadcast channel full, dropping message")
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, audience events.Audience) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := newConnection(cm, conn, audience)

	// state:init goes first so a client never sees an update before its snapshot
	if cm.state != nil {
		if ev, err := events.New(events.EventTypeStateInit, cm.state.PublicState(), time.Now()); err == nil {
			if data, err := json.Marshal(ev); err == nil {
				connection.Send <- data
			}
		}
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	connection.log.Info().Str("remote", r.RemoteAddr).Msg("websocket connected")

	return nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.connections[conn.Audience] == nil {
		cm.connections[conn.Audience] = make(map[*Connection]bool)
	}
	cm.connections[conn.Audience][conn] = true
	activeConnections.WithLabelValues(string(conn.Audience)).Inc()

	log.Debug().
		Str("connection_id", conn.ID).
		Str("audience", string(conn.Audience)).
		Int("total_connections", len(cm.connections[conn.Audience])).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.connections[conn.Audience]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}
	delete(connections, conn)
	close(conn.Send)
	activeConnections.WithLabelValues(string(conn.Audience)).Dec()

	if len(connections) == 0 {
		delete(cm.connections, conn.Audience)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("audience", string(conn.Audience)).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.connections {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		cm.unregisterConnection(conn)
	}
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	// sends happen under the read lock so unregisterConnection cannot close a
	// channel mid-send
	var slow []*Connection
	delivered := 0
	cm.mu.RLock()
	for _, audience := range message.Audiences {
		for conn := range cm.connections[audience] {
			select {
			case conn.Send <- eventData:
				delivered++
			default:
				slow = append(slow, conn)
			}
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("audience", string(conn.Audience)).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	if delivered > 0 {
		log.Debug().
			Str("event_type", string(message.Event.Type)).
			Int("connections", delivered).
			Msg("event broadcasted")
	}
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{Audiences: make(map[events.Audience]int)}
	for audience, connections := range cm.connections {
		stats.Audiences[audience] = len(connections)
		stats.TotalConnections += len(connections)
	}
	return stats
}

// ConnectionStats is served on /ws/stats.
type ConnectionStats struct {
	TotalConnections int                     `json:"total_connections"`
	Audiences        map[events.Audience]int `json:"audiences"`
}

func (cm *ConnectionManager) commandContext() context.Context {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.ctx
}
