package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// OutboxEvent is one match_outbox row waiting to be relayed.
type OutboxEvent struct {
	ID        uuid.UUID             `json:"id"`
	MatchID   uuid.UUID             `json:"match_id"`
	EventType string                `json:"event_type"`
	Payload   json.RawMessage       `json:"payload"`
	Metadata  pqtype.NullRawMessage `json:"metadata"`
	CreatedAt time.Time             `json:"created_at"`
}

// Publisher delivers an outbox event to the message bus.
type Publisher interface {
	Publish(ctx context.Context, event OutboxEvent) error
}

// headers decodes the row metadata into message headers. Invalid metadata is
// ignored.
func (e OutboxEvent) headers() map[string]string {
	if !e.Metadata.Valid || len(e.Metadata.RawMessage) == 0 {
		return nil
	}
	var h map[string]string
	if err := json.Unmarshal(e.Metadata.RawMessage, &h); err != nil {
		return nil
	}
	return h
}
