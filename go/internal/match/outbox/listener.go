package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ListenerConfig tunes the relay loop.
type ListenerConfig struct {
	// DatabaseURL is the DSN the LISTEN connection dials.
	DatabaseURL   string
	NotifyChannel string

	// FallbackInterval is how often unsent rows are swept regardless of
	// notifications.
	FallbackInterval time.Duration
	PingInterval     time.Duration
	BatchSize        int32

	// MaxRetries publish retries follow the first attempt, spaced by
	// RetryDelay times the attempt number.
	MaxRetries int
	RetryDelay time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel:    "match_outbox_events",
		FallbackInterval: 30 * time.Second,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
	}
}

// relayStore is the part of Repository the listener needs.
type relayStore interface {
	RelayByID(ctx context.Context, id uuid.UUID, publish func(OutboxEvent) error) error
	RelayUnsent(ctx context.Context, limit int32, publish func(OutboxEvent) error) (int, error)
}

// Listener relays match_outbox rows as soon as their NOTIFY arrives and sweeps
// up anything missed on a fallback ticker.
type Listener struct {
	repo      relayStore
	pq        *pq.Listener
	publisher Publisher
	metrics   MetricsCollector
	cfg       ListenerConfig
	clock     clockwork.Clock
	log       zerolog.Logger

	mu       sync.Mutex
	running  bool
	relayed  uint64
	lastSent time.Time
}

// NewListener opens the LISTEN connection on cfg.NotifyChannel.
func NewListener(repo *Repository, publisher Publisher, metrics MetricsCollector, cfg ListenerConfig) (*Listener, error) {
	logger := log.With().Str("component", "outbox_listener").Logger()

	conn := pq.NewListener(cfg.DatabaseURL, 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			switch ev {
			case pq.ListenerEventDisconnected:
				logger.Warn().Err(err).Msg("LISTEN connection lost")
			case pq.ListenerEventReconnected:
				logger.Info().Msg("LISTEN connection restored")
			case pq.ListenerEventConnectionAttemptFailed:
				logger.Error().Err(err).Msg("LISTEN reconnect attempt failed")
			}
		})
	if err := conn.Listen(cfg.NotifyChannel); err != nil {
		conn.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.NotifyChannel, err)
	}

	return newListener(repo, conn, publisher, metrics, cfg), nil
}

func newListener(repo relayStore, conn *pq.Listener, publisher Publisher, metrics MetricsCollector, cfg ListenerConfig) *Listener {
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &Listener{
		repo:      repo,
		pq:        conn,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
		clock:     clockwork.NewRealClock(),
		log:       log.With().Str("component", "outbox_listener").Logger(),
	}
}

// Start relays until ctx is done and then closes the LISTEN connection. Rows
// written while the relay was down are swept first.
func (l *Listener) Start(ctx context.Context) error {
	l.log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("outbox relay started")

	l.setRunning(true)
	defer l.setRunning(false)

	fallback := l.clock.NewTicker(l.cfg.FallbackInterval)
	defer fallback.Stop()
	ping := l.clock.NewTicker(l.cfg.PingInterval)
	defer ping.Stop()

	l.sweep(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("outbox relay stopping")
			return l.Stop()
		case note := <-l.pq.Notify:
			// nil follows a reconnect; notifications may have been lost
			if note == nil {
				l.sweep(ctx, "reconnect")
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				l.log.Error().Err(err).Str("payload", note.Extra).Msg("notification not relayed")
			}
		case <-fallback.Chan():
			l.sweep(ctx, "fallback")
		case <-ping.Chan():
			if err := l.pq.Ping(); err != nil {
				l.log.Warn().Err(err).Msg("LISTEN ping failed")
			}
		}
	}
}

// Stop closes the LISTEN connection.
func (l *Listener) Stop() error {
	if l.pq == nil {
		return nil
	}
	return l.pq.Close()
}

// Stats returns the number of relayed events and when the last one was sent.
func (l *Listener) Stats() (uint64, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.relayed, l.lastSent
}

// Running reports whether Start is looping.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Listener) setRunning(running bool) {
	l.mu.Lock()
	l.running = running
	l.mu.Unlock()
}

func (l *Listener) recordSent(n int) {
	if n == 0 {
		return
	}
	l.mu.Lock()
	l.relayed += uint64(n)
	l.lastSent = l.clock.Now()
	l.mu.Unlock()
}

// handleNotification relays the row whose id is the notification payload.
// A row another relay already sent is not an error.
func (l *Listener) handleNotification(ctx context.Context, payload string) error {
	id, err := uuid.Parse(payload)
	if err != nil {
		return fmt.Errorf("notification payload is not an event id: %w", err)
	}

	err = l.repo.RelayByID(ctx, id, func(event OutboxEvent) error {
		return l.publishWithRetry(ctx, event)
	})
	switch {
	case errors.Is(err, ErrAlreadySent):
		l.log.Debug().Str("event_id", id.String()).Msg("outbox row already relayed")
		return nil
	case err != nil:
		return fmt.Errorf("relay %s: %w", id, err)
	}

	l.recordSent(1)
	return nil
}

func (l *Listener) sweep(ctx context.Context, trigger string) {
	if err := l.processUnsent(ctx); err != nil {
		l.log.Error().Err(err).Str("trigger", trigger).Msg("outbox sweep failed")
	}
}

// processUnsent relays one batch of unsent rows. Rows that fail to publish stay
// unsent for the next sweep.
func (l *Listener) processUnsent(ctx context.Context) error {
	start := l.clock.Now()
	sent, err := l.repo.RelayUnsent(ctx, l.cfg.BatchSize, func(event OutboxEvent) error {
		return l.publishWithRetry(ctx, event)
	})
	if err != nil {
		return err
	}

	l.metrics.RecordBatchProcessed(sent, l.clock.Since(start))
	l.recordSent(sent)
	if sent > 0 {
		l.log.Info().Int("sent", sent).Msg("swept unsent outbox rows")
	}
	return nil
}

// publishWithRetry publishes event, retrying with a linear backoff.
func (l *Listener) publishWithRetry(ctx context.Context, event OutboxEvent) error {
	logger := l.log.With().Str("event_id", event.ID.String()).Str("event_type", event.EventType).Logger()

	var lastErr error
	for attempt := 1; attempt <= l.cfg.MaxRetries+1; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.clock.After(l.cfg.RetryDelay * time.Duration(attempt-1)):
			}
		}

		start := l.clock.Now()
		err := l.publisher.Publish(ctx, event)
		l.metrics.RecordPublishAttempt(event.EventType, attempt, err == nil)
		if err == nil {
			l.metrics.RecordEventProcessed(event.EventType, true, l.clock.Since(start))
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("publish recovered")
			}
			return nil
		}
		lastErr = err
		logger.Warn().Err(err).Int("attempt", attempt).Msg("publish failed")
	}

	l.metrics.RecordEventProcessed(event.EventType, false, 0)
	logger.Error().Err(lastErr).Msg("giving up on outbox row until next sweep")
	return fmt.Errorf("publish failed after %d attempts: %w", l.cfg.MaxRetries+1, lastErr)
}
