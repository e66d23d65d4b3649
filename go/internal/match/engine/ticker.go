package engine

import (
	"context"
	"time"

	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/mcdev12/battlescore/go/internal/models"
	"github.com/rs/zerolog/log"
)

// runTickScheduler drains the pending snapshot and broadcasts the projection on
// every tick. A config swap that changes the interval resets the ticker.
func (e *Engine) runTickScheduler(ctx context.Context) {
	e.mu.Lock()
	interval := e.cfg.TickInterval()
	e.mu.Unlock()

	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if next := e.Tick(); next != interval {
				interval = next
				ticker.Reset(interval)
				log.Info().Dur("tick_interval", interval).Msg("tick interval changed")
			}
		}
	}
}

// Tick runs one scheduler step and returns the interval for the next one.
// While the match timer is paused the pending snapshot stays in its slot so no
// score or effect moves until play resumes.
func (e *Engine) Tick() (next time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			next = e.cfg.TickInterval()
			e.reportFaultLocked("tick", "tick failed", r)
		}
	}()

	ticksTotal.Inc()

	if snap := e.state.Pending; snap != nil && !e.timerFrozenLocked() {
		e.state.Pending = nil
		res := applySnapshot(e.state, e.cfg, *snap)
		snapshotsApplied.Inc()
		for _, p := range models.PlayerIDs {
			if n := res.pushed.Get(p); n > 0 {
				effectsQueued.WithLabelValues(string(p)).Add(float64(n))
			}
			if n := res.dropped.Get(p); n > 0 {
				effectsDropped.WithLabelValues(string(p)).Add(float64(n))
			}
		}
		if res.pushedAny() {
			e.emitLocked(events.DisplayAudiences, events.EventTypeEffectQueue, e.state.effectQueues())
		}
	}

	e.emitLocked(events.AllAudiences, events.EventTypeStateUpdate, e.state.project())
	return e.cfg.TickInterval()
}

// SubmitSnapshot stores snap as the pending input. The latest snapshot wins.
func (e *Engine) SubmitSnapshot(snap events.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Pending = &snap
}
