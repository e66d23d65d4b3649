package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// backlogWarning is the unsent row count above which health reports a warning.
const backlogWarning = 1000

// HealthStatus is the /health response body.
type HealthStatus struct {
	Healthy        bool      `json:"healthy"`
	Relayed        uint64    `json:"relayed"`
	LastSent       time.Time `json:"last_sent"`
	Backlog        int64     `json:"backlog"`
	Database       bool      `json:"database"`
	NATS           bool      `json:"nats"`
	ListenerActive bool      `json:"listener_active"`
	Problems       []string  `json:"problems"`
}

func (s *HealthStatus) fail(format string, args ...any) {
	s.Healthy = false
	s.warn(format, args...)
}

func (s *HealthStatus) warn(format string, args ...any) {
	s.Problems = append(s.Problems, fmt.Sprintf(format, args...))
}

type relayStatus interface {
	Stats() (uint64, time.Time)
	Running() bool
}

type pinger interface {
	PingContext(ctx context.Context) error
}

type connectionChecker interface {
	Connected() bool
}

type backlogCounter interface {
	CountUnsent(ctx context.Context) (int64, error)
}

// HealthChecker reports whether the relay is keeping up.
type HealthChecker struct {
	relay     relayStatus
	db        pinger
	backlog   backlogCounter
	publisher connectionChecker
	metrics   MetricsCollector
	// stall is how long a non-empty backlog may go without a relayed row.
	stall time.Duration
	now   func() time.Time
}

func NewHealthChecker(relay relayStatus, db pinger, backlog backlogCounter, publisher connectionChecker, metrics MetricsCollector, stall time.Duration) *HealthChecker {
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &HealthChecker{
		relay:     relay,
		db:        db,
		backlog:   backlog,
		publisher: publisher,
		metrics:   metrics,
		stall:     stall,
		now:       time.Now,
	}
}

// Check probes the database, NATS and the relay loop.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{Healthy: true, Problems: []string{}}
	status.Relayed, status.LastSent = h.relay.Stats()

	status.ListenerActive = h.relay.Running()
	if !status.ListenerActive {
		status.fail("listener not running")
	}

	if h.publisher != nil {
		if status.NATS = h.publisher.Connected(); !status.NATS {
			status.fail("NATS disconnected")
		}
	}

	if err := h.db.PingContext(ctx); err != nil {
		status.fail("database ping: %v", err)
		return status
	}
	status.Database = true

	pending, err := h.backlog.CountUnsent(ctx)
	if err != nil {
		status.warn("count unsent rows: %v", err)
		return status
	}
	status.Backlog = pending
	h.metrics.RecordOutboxLag(pending)
	if pending > backlogWarning {
		status.warn("backlog of %d unsent rows", pending)
	}
	if pending > 0 && !status.LastSent.IsZero() {
		if idle := h.now().Sub(status.LastSent); idle > h.stall {
			status.fail("backlog not draining, last row relayed %s ago", idle.Round(time.Second))
		}
	}
	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health response")
	}
}
