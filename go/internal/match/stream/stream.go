// Package stream defines the MATCH_EVENTS JetStream stream shared by the outbox
// relay, which publishes match records, and the gateway, which consumes them.
package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Config names the stream and the NATS connection used to reach it.
type Config struct {
	URL           string
	Name          string
	SubjectPrefix string

	MaxReconnects int
	ReconnectWait time.Duration

	// Retention. MaxMsgs of -1 keeps every message until MaxAge.
	MaxAge          time.Duration
	MaxMsgs         int64
	Replicas        int
	DuplicateWindow time.Duration
}

// Default returns the stream used in local development.
func Default() Config {
	return Config{
		URL:             nats.DefaultURL,
		Name:            "MATCH_EVENTS",
		SubjectPrefix:   "match.events",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          30 * 24 * time.Hour,
		MaxMsgs:         -1,
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

// Subject is the subject a match record of eventType is published on.
func (c Config) Subject(eventType string) string {
	return c.SubjectPrefix + "." + eventType
}

// Wildcard matches every match record subject.
func (c Config) Wildcard() string {
	return c.SubjectPrefix + ".>"
}

// StreamConfig is the JetStream definition of the stream.
func (c Config) StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        c.Name,
		Description: "Finalized and cancelled matches relayed from match_outbox",
		Subjects:    []string{c.Wildcard()},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      c.MaxAge,
		MaxMsgs:     c.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    c.Replicas,
		Duplicates:  c.DuplicateWindow,
	}
}

// Connect dials NATS with reconnect logging and opens a JetStream context.
// client names the connection on the server.
func Connect(c Config, client string) (*nats.Conn, jetstream.JetStream, error) {
	logger := log.With().Str("client", client).Logger()

	nc, err := nats.Connect(c.URL,
		nats.Name(client),
		nats.MaxReconnects(c.MaxReconnects),
		nats.ReconnectWait(c.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS connection lost")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS connection restored")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Error().Err(err).Msg("NATS async error")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS at %s: %w", c.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("open JetStream: %w", err)
	}
	return nc, js, nil
}

// Ensure creates the stream or brings an existing one in line with c.
func Ensure(ctx context.Context, js jetstream.JetStream, c Config) error {
	s, err := js.CreateOrUpdateStream(ctx, c.StreamConfig())
	if err != nil {
		return fmt.Errorf("create or update stream %s: %w", c.Name, err)
	}
	info := s.CachedInfo()
	log.Info().
		Str("stream", c.Name).
		Strs("subjects", info.Config.Subjects).
		Uint64("messages", info.State.Msgs).
		Msg("JetStream stream ready")
	return nil
}
