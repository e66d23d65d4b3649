package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/mcdev12/battlescore/go/internal/match/stream"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Identity headers carried by every relayed message. Row metadata may add
// headers but never replaces these.
const (
	HeaderEventID   = "Event-ID"
	HeaderEventType = "Event-Type"
	HeaderMatchID   = "Match-ID"
)

// JetStreamPublisher relays outbox rows to the match stream.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream stream.Config
}

// NewJetStreamPublisher connects to NATS and makes sure the stream exists with
// the configured retention.
func NewJetStreamPublisher(ctx context.Context, cfg stream.Config) (*JetStreamPublisher, error) {
	nc, js, err := stream.Connect(cfg, "match-outbox-relay")
	if err != nil {
		return nil, err
	}
	if err := stream.Ensure(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, err
	}
	return &JetStreamPublisher{nc: nc, js: js, stream: cfg}, nil
}

// Publish sends event with its id as the JetStream message id so a row relayed
// twice inside the duplicate window is stored once.
func (p *JetStreamPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	msg, err := buildMessage(p.stream.Subject(event.EventType), event, time.Now().UTC())
	if err != nil {
		return err
	}

	ack, err := p.js.PublishMsg(ctx, msg,
		jetstream.WithMsgID(event.ID.String()),
		jetstream.WithExpectStream(p.stream.Name),
	)
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.ID, msg.Subject, err)
	}

	entry := log.Debug()
	if ack.Duplicate {
		entry = log.Info()
	}
	entry.
		Str("event_id", event.ID.String()).
		Str("match_id", event.MatchID.String()).
		Str("subject", msg.Subject).
		Uint64("seq", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("match record relayed")
	return nil
}

// Connected reports whether the NATS connection is up.
func (p *JetStreamPublisher) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Close drains pending publishes and closes the connection.
func (p *JetStreamPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

// buildMessage wraps event in the envelope consumers decode.
func buildMessage(subject string, event OutboxEvent, now time.Time) (*nats.Msg, error) {
	body, err := json.Marshal(events.Envelope{
		EventID:   event.ID.String(),
		EventType: event.EventType,
		MatchID:   event.MatchID.String(),
		Timestamp: now,
		Payload:   event.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode envelope for %s: %w", event.ID, err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = body
	for k, v := range event.headers() {
		msg.Header.Set(k, v)
	}
	msg.Header.Set(HeaderEventType, event.EventType)
	msg.Header.Set(HeaderMatchID, event.MatchID.String())
	msg.Header.Set(HeaderEventID, event.ID.String())
	return msg, nil
}
