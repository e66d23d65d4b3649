package gateway

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

// ResultFeedConfig binds the durable consumer of relayed match records.
type ResultFeedConfig struct {
	Stream        stream.Config
	ConsumerName  string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
}

// DefaultResultFeedConfig returns default consumer configuration
func DefaultResultFeedConfig() ResultFeedConfig {
	return ResultFeedConfig{
		Stream:        stream.Default(),
		ConsumerName:  "match-gateway",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
	}
}

// ResultFeed consumes relayed match records from JetStream and tells the
// operator once a finalized or cancelled match has left the outbox.
type ResultFeed struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	js                jetstream.JetStream
	consumer          jetstream.Consumer
	config            ResultFeedConfig
}

// NewResultFeed connects to NATS and binds the durable consumer. The stream is
// owned by the outbox relay and must exist.
func NewResultFeed(ctx context.Context, cm *ConnectionManager, config ResultFeedConfig) (*ResultFeed, error) {
	nc, js, err := stream.Connect(config.Stream, config.ConsumerName)
	if err != nil {
		return nil, err
	}

	rf := &ResultFeed{
		connectionManager: cm,
		nc:                nc,
		js:                js,
		config:            config,
	}
	if err := rf.ensureConsumer(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return rf, nil
}

func (rf *ResultFeed) ensureConsumer(ctx context.Context) error {
	consumer, err := rf.js.CreateOrUpdateConsumer(ctx, rf.config.Stream.Name, jetstream.ConsumerConfig{
		Durable:       rf.config.ConsumerName,
		Description:   "Match gateway result notifications",
		FilterSubject: rf.config.Stream.Wildcard(),
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    rf.config.MaxDeliver,
		AckWait:       rf.config.AckWait,
		MaxAckPending: rf.config.MaxAckPending,
	})
	if err != nil {
		return fmt.Errorf("bind consumer %s on %s: %w", rf.config.ConsumerName, rf.config.Stream.Name, err)
	}
	log.Info().
		Str("consumer", rf.config.ConsumerName).
		Str("stream", rf.config.Stream.Name).
		Msg("match result consumer bound")

	rf.consumer = consumer
	return nil
}

// Start consumes until ctx is done.
func (rf *ResultFeed) Start(ctx context.Context) error {
	log.Info().Str("consumer", rf.config.ConsumerName).Msg("starting match result feed")

	messageCh := make(chan jetstream.Msg, 100)
	consumeCtx, err := rf.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("match result feed shutting down")
			return nil
		case msg := <-messageCh:
			if err := rf.processMessage(msg.Data()); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process message")
				// a malformed record never gets better on redelivery
				if termErr := msg.Term(); termErr != nil {
					log.Error().Err(termErr).Msg("failed to TERM message")
				}
				continue
			}
			if ackErr := msg.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ACK message")
			}
		}
	}
}

func (rf *ResultFeed) processMessage(data []byte) error {
	message, err := describeRecord(data)
	if err != nil {
		return err
	}
	ev, err := events.New(events.EventTypeNotify, events.NotifyPayload{Level: events.NotifyInfo, Message: message}, time.Now())
	if err != nil {
		return fmt.Errorf("build notify event: %w", err)
	}
	rf.connectionManager.Broadcast(events.OperatorAudience, ev)
	return nil
}

// describeRecord renders a relayed outbox envelope as an operator message.
func describeRecord(data []byte) (string, error) {
	var envelope events.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", fmt.Errorf("unmarshal event envelope: %w", err)
	}

	var record events.MatchFinalizedPayload
	if err := json.Unmarshal(envelope.Payload, &record); err != nil {
		return "", fmt.Errorf("unmarshal match record: %w", err)
	}

	switch envelope.EventType {
	case events.OutboxMatchFinalized:
		outcome := "unknown"
		if record.Outcome != nil {
			outcome = string(*record.Outcome)
		}
		return fmt.Sprintf("match %s recorded: %s (%g - %g)",
			envelope.MatchID, outcome, record.Score.PlayerA, record.Score.PlayerB), nil
	case events.OutboxMatchCancelled:
		return fmt.Sprintf("match %s recorded as cancelled", envelope.MatchID), nil
	default:
		return "", fmt.Errorf("unknown event type: %s", envelope.EventType)
	}
}

// Stop closes the NATS connection.
func (rf *ResultFeed) Stop() error {
	log.Info().Msg("stopping match result feed")
	if rf.nc != nil {
		rf.nc.Close()
	}
	return nil
}
