package gateway

import (
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Connection is one websocket client of a single audience.
type Connection struct {
	ID       string
	Audience events.Audience
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	ConnectedAt time.Time
	// lastPong holds the unix nano time of the most recent pong.
	lastPong atomic.Int64

	log zerolog.Logger
}

func newConnection(cm *ConnectionManager, ws *websocket.Conn, audience events.Audience) *Connection {
	id := uuid.NewString()
	now := time.Now()
	c := &Connection{
		ID:          id,
		Audience:    audience,
		Conn:        ws,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: now,
		log: log.With().
			Str("connection_id", id).
			Str("audience", string(audience)).
			Logger(),
	}
	c.lastPong.Store(now.UnixNano())
	return c
}

// LastPong is when the client last answered a ping.
func (c *Connection) LastPong() time.Time {
	return time.Unix(0, c.lastPong.Load())
}

// writePump owns all writes to the socket. Queued messages are sent one per
// frame; pings keep idle clients within their read deadline.
func (c *Connection) writePump() {
	cfg := c.Manager.config
	ping := time.NewTicker(cfg.PingInterval)
	defer func() {
		ping.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				// the manager closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.write(message); err != nil {
				c.log.Warn().Err(err).Msg("websocket write failed")
				return
			}
		case <-ping.C:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		}
	}
}

// write sends message and whatever else is already queued without blocking.
func (c *Connection) write(message []byte) error {
	if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
		return err
	}
	for range len(c.Send) {
		next, ok := <-c.Send
		if !ok {
			return nil
		}
		if err := c.Conn.WriteMessage(websocket.TextMessage, next); err != nil {
			return err
		}
	}
	return nil
}

// readPump reads client messages until the socket fails or the read deadline
// passes without a pong.
func (c *Connection) readPump() {
	cfg := c.Manager.config
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.lastPong.Store(time.Now().UnixNano())
		return c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}
		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}

// handleClientMessage routes a client message to the command handler. Rejected
// commands are answered with an error notification to this client only.
func (c *Connection) handleClientMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil || msg.Type == "" {
		c.log.Debug().Msg("malformed client message")
		c.reply(events.NotifyError, "malformed message")
		return
	}

	commands := c.Manager.commands
	if commands == nil {
		return
	}
	err := commands.HandleCommand(c.Manager.commandContext(), c.Audience, msg.Type, msg.Data)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidCommand):
		c.log.Debug().Err(err).Str("type", msg.Type).Msg("client command rejected")
		c.reply(events.NotifyError, err.Error())
	default:
		// the engine already notified the operators
		c.log.Debug().Err(err).Str("type", msg.Type).Msg("client command failed")
	}
}

// reply sends a notification to this connection only.
func (c *Connection) reply(level, message string) {
	ev, err := events.New(events.EventTypeNotify, events.NotifyPayload{Level: level, Message: message}, time.Now())
	if err != nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	c.Manager.mu.RLock()
	defer c.Manager.mu.RUnlock()
	if !c.Manager.connections[c.Audience][c] {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}
