package engine

import (
	"context"
	"time"

	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/rs/zerolog/log"
)

const timerStep = time.Second

// runMatchTimer drives the match countdown at one step per second.
func (e *Engine) runMatchTimer(ctx context.Context) {
	ticker := e.clock.NewTicker(timerStep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			e.TimerStep()
		}
	}
}

// StartTimer arms the match timer with seconds, or with the configured default
// when seconds is not positive, and activates the match.
func (e *Engine) StartTimer(seconds int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if seconds <= 0 {
		seconds = e.cfg.Timer.DefaultSeconds
	}
	e.state.MatchActive = true
	e.state.Timer = TimerState{Processing: true, Remaining: seconds}
	e.autoStarted = false

	log.Info().Int("seconds", seconds).Msg("match timer started")

	e.emitLocked(events.DisplayAudiences, events.EventTypeTimerStart, events.CountPayload{Count: seconds})
	e.emitLocked(events.DisplayAudiences, events.EventTypeStatusAggregating, events.ShowPayload{Show: false})
}

// TogglePause flips the pause flag of a running timer.
func (e *Engine) TogglePause() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Timer.Processing {
		return false, e.warnLocked(ErrTimerNotRunning)
	}
	e.state.Timer.Paused = !e.state.Timer.Paused
	paused := e.state.Timer.Paused

	log.Info().Bool("paused", paused).Msg("match timer pause toggled")

	e.emitLocked(events.DisplayAudiences, events.EventTypeTimerPause, events.PausePayload{Pause: paused})
	return paused, nil
}

// TimerStep advances the match timer by one second.
func (e *Engine) TimerStep() {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			e.state.Timer.Processing = false
			e.reportFaultLocked("timer", "match timer stopped", r)
		}
	}()

	timer := &e.state.Timer
	if !timer.Processing {
		return
	}
	if timer.Paused {
		e.emitLocked(events.DisplayAudiences, events.EventTypePauseShow, nil)
		return
	}
	e.emitLocked(events.DisplayAudiences, events.EventTypePauseHide, nil)

	timer.Remaining = max(0, timer.Remaining-1)
	e.emitLocked(events.DisplayAudiences, events.EventTypeTimerTick, events.CountPayload{Count: timer.Remaining})

	sc := e.cfg.SpeedChallenge
	if sc.AutoStart && !e.autoStarted && !e.state.SC.Process &&
		timer.Remaining > 0 && timer.Remaining <= sc.AutoStartTime {
		e.autoStarted = true
		log.Info().Int("remaining", timer.Remaining).Msg("auto-starting speed challenge")
		_ = e.startSpeedChallengeLocked()
	}

	if timer.Remaining == 0 {
		timer.Processing = false
		log.Info().Msg("match timer finished")
		e.emitLocked(events.DisplayAudiences, events.EventTypeTimerDone, nil)
		e.emitLocked(events.DisplayAudiences, events.EventTypeStatusAggregating, events.ShowPayload{Show: true})
	}
}
