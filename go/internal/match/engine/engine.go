// Package engine owns the live match state and the three periodic drivers that
// mutate it: the broadcast tick scheduler, the match timer and the speed
// challenge controller. Every mutation happens under a single mutex; drivers and
// operator actions coordinate only through the state and the outbound Sink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/battlescore/go/internal/match/config"
	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/mcdev12/battlescore/go/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	ErrTimerNotRunning      = errors.New("timer is not running")
	ErrTimerStillRunning    = errors.New("timer is still running")
	ErrMatchNotStarted      = errors.New("match is not started")
	ErrChallengeRunning     = errors.New("speed challenge is already running")
	ErrChallengeNotRunning  = errors.New("speed challenge is not running")
	ErrMissionNotActive     = errors.New("mission is not running")
	ErrAutoStartEnabled     = errors.New("speed challenge starts automatically")
	ErrInvalidPlayer        = errors.New("invalid player")
	ErrInvalidValue         = errors.New("invalid value")
	ErrLastBonusUnavailable = errors.New("last bonus magnification is not configured")
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
	NewTimer(d time.Duration) clockwork.Timer
}

// Sink receives every outbound event. Implementations must not block.
type Sink interface {
	Broadcast(audiences []events.Audience, event *events.Event)
}

// ResultStore persists finalized and cancelled matches.
type ResultStore interface {
	SaveMatch(ctx context.Context, record models.MatchRecord) (uuid.UUID, error)
}

type noopSink struct{}

func (noopSink) Broadcast([]events.Audience, *events.Event) {}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the real clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithResultStore enables match persistence on finalize and reset.
func WithResultStore(s ResultStore) Option {
	return func(e *Engine) { e.store = s }
}

// Engine is the single owner of the match state.
type Engine struct {
	mu    sync.Mutex
	cfg   *config.Config
	state *State
	clock Clock
	sink  Sink
	store ResultStore

	sc          challengeControl
	autoStarted bool
	lastResult  *events.MatchResultPayload

	// baseCtx parents every background goroutine; cueCtx covers delayed hide cues
	// and is renewed on reset.
	baseCtx    context.Context
	baseCancel context.CancelFunc
	cueCtx     context.Context
	cueCancel  context.CancelFunc
	wg         sync.WaitGroup
}

// New creates the engine and its match state from cfg.
func New(cfg *config.Config, sink Sink, opts ...Option) *Engine {
	if sink == nil {
		sink = noopSink{}
	}
	e := &Engine{
		cfg:   cfg,
		state: newState(cfg),
		clock: clockwork.NewRealClock(),
		sink:  sink,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.baseCtx, e.baseCancel = context.WithCancel(context.Background())
	e.cueCtx, e.cueCancel = context.WithCancel(e.baseCtx)
	return e
}

// Run starts the tick scheduler and the match timer and blocks until ctx is done.
// On return every driver and pending delay has been stopped.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	interval := e.cfg.TickInterval()
	e.mu.Unlock()

	log.Info().Dur("tick_interval", interval).Msg("match engine started")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.runTickScheduler(ctx)
	}()
	go func() {
		defer wg.Done()
		e.runMatchTimer(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	e.shutdown()

	log.Info().Msg("match engine stopped")
	return nil
}

func (e *Engine) shutdown() {
	e.mu.Lock()
	if e.state.SC.Process {
		e.clearSpeedChallengeLocked()
		e.safeEmitLocked(events.DisplayAudiences, events.EventTypeSCEnd, nil)
	}
	e.baseCancel()
	e.mu.Unlock()

	e.wg.Wait()
}

// ApplyConfig swaps in a new configuration and re-derives dependent state: the
// gift baselines are rebased onto the new gift key set and queues are trimmed
// to the new capacity.
func (e *Engine) ApplyConfig(cfg *config.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg = cfg
	e.state.rebase(cfg)
	if !e.state.MatchActive && !e.state.Timer.Processing {
		e.state.Timer.Remaining = cfg.Timer.DefaultSeconds
	}

	log.Info().
		Int("gifts", len(cfg.GiftKeys())).
		Int("max_queue_length", cfg.EffectQueue.MaxQueueLength).
		Msg("runtime config applied")

	e.emitLocked(events.AllAudiences, events.EventTypeStateUpdate, e.state.project())
}

// Config returns the active configuration.
func (e *Engine) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// PublicState returns the current projection.
func (e *Engine) PublicState() events.PublicState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.project()
}

// emitLocked builds and broadcasts an event. Callers hold e.mu.
func (e *Engine) emitLocked(audiences []events.Audience, eventType events.EventType, payload any) {
	ev, err := events.New(eventType, payload, e.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	e.sink.Broadcast(audiences, ev)
}

func (e *Engine) notifyLocked(level, message string) {
	switch level {
	case events.NotifyWarn:
		log.Warn().Msg(message)
	case events.NotifyError:
		log.Error().Msg(message)
	default:
		log.Info().Msg(message)
	}
	e.emitLocked(events.OperatorAudience, events.EventTypeNotify, events.NotifyPayload{Level: level, Message: message})
}

// safeEmitLocked is emitLocked for fault and shutdown paths. A failing sink is
// logged and never re-raised.
func (e *Engine) safeEmitLocked(audiences []events.Audience, eventType events.EventType, payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("event_type", string(eventType)).Msg("event sink failed")
		}
	}()
	e.emitLocked(audiences, eventType, payload)
}

// reportFaultLocked records a recovered driver panic and tells the operator.
// Callers leave the engine in a safe state before calling it.
func (e *Engine) reportFaultLocked(driver, message string, r any) {
	driverFaults.WithLabelValues(driver).Inc()
	log.Error().Str("driver", driver).Interface("panic", r).Msg(message)
	e.safeEmitLocked(events.OperatorAudience, events.EventTypeNotify, events.NotifyPayload{
		Level:   events.NotifyError,
		Message: fmt.Sprintf("%s: %v", message, r),
	})
}

// recoverCue is deferred by one-shot cue goroutines. cleanup runs under the
// lock before the fault is reported.
func (e *Engine) recoverCue(driver string, cleanup func()) {
	r := recover()
	if r == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if cleanup != nil {
		cleanup()
	}
	e.reportFaultLocked(driver, "announcement failed", r)
}

// timerFrozenLocked reports whether a running match timer is paused. A pause
// flag left over after the timer stopped freezes nothing.
func (e *Engine) timerFrozenLocked() bool {
	return e.state.Timer.Processing && e.state.Timer.Paused
}

// warnLocked surfaces a precondition violation to the operator and returns err.
func (e *Engine) warnLocked(err error) error {
	e.notifyLocked(events.NotifyWarn, err.Error())
	return err
}

// sleep waits d on the engine clock. It returns false if ctx ended first.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := e.clock.NewTimer(d)
	select {
	case <-t.Chan():
		return true
	case <-ctx.Done():
		stopAndDrainTimer(t)
		return false
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent goroutine leaks.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

func validPlayer(p models.PlayerID) bool {
	return p == models.PlayerA || p == models.PlayerB
}
