package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/mcdev12/battlescore/go/internal/models"
	"github.com/rs/zerolog/log"
)

// countdownWindow is the number of final notice seconds shown as a bare countdown.
const countdownWindow = 5

// challengeControl is the private side of the speed challenge: the driver
// generation, its cancellation and the multipliers saved for bonus windows.
type challengeControl struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc

	saved          models.PlayerValues[float64]
	savedLastBonus models.PlayerValues[bool]
	pending        models.PlayerValues[bool]
}

// StartSpeedChallenge is the operator entry point. It is refused while the
// challenge is configured to start automatically.
func (e *Engine) StartSpeedChallenge() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.SpeedChallenge.AutoStart {
		return e.warnLocked(ErrAutoStartEnabled)
	}
	return e.startSpeedChallengeLocked()
}

func (e *Engine) startSpeedChallengeLocked() error {
	sc := &e.state.SC
	if sc.Process {
		return e.warnLocked(ErrChallengeRunning)
	}

	settings := e.cfg.SpeedChallenge
	e.sc.gen++
	e.sc.ctx, e.sc.cancel = context.WithCancel(e.baseCtx)
	e.sc.pending = models.Both(false)

	*sc = SpeedChallengeState{
		Process:          true,
		NoticeProcess:    true,
		NoticeRemaining:  settings.NoticeSeconds,
		MissionRemaining: settings.MissionSeconds,
		BonusSeconds:     settings.BonusSeconds,
		Magnification:    effectiveMultiplier(settings.Magnification),
		AutoStart:        settings.AutoStart,
		AutoStartTime:    settings.AutoStartTime,
	}

	log.Info().
		Int("notice_sec", sc.NoticeRemaining).
		Int("mission_sec", sc.MissionRemaining).
		Int("bonus_sec", sc.BonusSeconds).
		Float64("magnification", sc.Magnification).
		Msg("speed challenge started")

	e.emitLocked(events.DisplayAudiences, events.EventTypeSCStart, events.SpeedChallengeStartPayload{
		NoticeSec:     sc.NoticeRemaining,
		MissionSec:    sc.MissionRemaining,
		BonusSec:      sc.BonusSeconds,
		Magnification: sc.Magnification,
	})
	e.viewNotifyLocked(events.PositionTop, "notice", fmt.Sprintf(
		"Speed challenge! | Send the mission gift within %ds to earn x%g for %ds",
		sc.MissionRemaining, sc.Magnification, sc.BonusSeconds))

	e.wg.Add(1)
	go e.runSpeedChallenge(e.sc.ctx, e.sc.gen)
	return nil
}

func (e *Engine) runSpeedChallenge(ctx context.Context, gen uint64) {
	defer e.wg.Done()

	ticker := e.clock.NewTicker(timerStep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if done := e.speedChallengeStep(gen); done {
				return
			}
		}
	}
}

// speedChallengeStep advances the challenge by one second. It reports whether
// the driver for gen should exit.
func (e *Engine) speedChallengeStep(gen uint64) (done bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.sc.gen {
		return true
	}
	sc := &e.state.SC
	if !sc.Process {
		return true
	}

	defer func() {
		if r := recover(); r != nil {
			e.clearSpeedChallengeLocked()
			e.safeEmitLocked(events.DisplayAudiences, events.EventTypeSCEnd, nil)
			e.reportFaultLocked("speed_challenge", "speed challenge stopped", r)
			done = true
		}
	}()

	if e.timerFrozenLocked() {
		return false
	}

	switch {
	case sc.NoticeProcess:
		e.noticeSecondLocked()
	case sc.MissionProcess:
		e.missionSecondLocked()
	}
	for _, p := range models.PlayerIDs {
		if sc.BonusActive.Get(p) {
			e.bonusSecondLocked(p)
		}
	}

	if e.challengeIdleLocked() {
		e.finishSpeedChallengeLocked()
		return true
	}
	return false
}

func (e *Engine) challengeIdleLocked() bool {
	sc := &e.state.SC
	return !sc.NoticeProcess && !sc.MissionProcess &&
		!sc.BonusActive.PlayerA && !sc.BonusActive.PlayerB &&
		!e.sc.pending.PlayerA && !e.sc.pending.PlayerB
}

func (e *Engine) noticeSecondLocked() {
	sc := &e.state.SC
	current := max(0, sc.NoticeRemaining)
	e.emitLocked(events.DisplayAudiences, events.EventTypeSCNotice, events.RemainingPayload{Remaining: current})
	if current <= countdownWindow {
		e.viewNotifyLocked(events.PositionTop, "countdown", fmt.Sprintf("Starting in | %d", current))
	}

	sc.NoticeRemaining = max(0, current-1)
	if sc.NoticeRemaining > 0 {
		return
	}
	sc.NoticeProcess = false
	sc.MissionProcess = true
	e.emitLocked(events.DisplayAudiences, events.EventTypeSCMissionStart, events.RemainingPayload{Remaining: sc.MissionRemaining})
}

func (e *Engine) missionSecondLocked() {
	sc := &e.state.SC
	current := max(0, sc.MissionRemaining)
	e.emitLocked(events.DisplayAudiences, events.EventTypeSCMissionTick, events.RemainingPayload{Remaining: current})
	e.viewNotifyLocked(events.PositionTop, "mission", fmt.Sprintf("Mission in progress | %ds left", current))

	sc.MissionRemaining = max(0, current-1)
	if sc.MissionRemaining > 0 {
		return
	}
	sc.MissionProcess = false

	if sc.Success.PlayerA && sc.Success.PlayerB {
		e.emitLocked(events.DisplayAudiences, events.EventTypeHideNotify, events.HideNotifyPayload{Position: events.PositionTop})
	}
	for _, p := range models.PlayerIDs {
		if sc.Success.Get(p) {
			continue
		}
		e.emitLocked(events.DisplayAudiences, events.EventTypeSCFail, events.PlayerPayload{Player: p})
		e.viewNotifyLocked(p.Side(), "fail", "Mission failed")
	}
	e.emitLocked(events.DisplayAudiences, events.EventTypeSCMissionEnd, nil)
}

// MarkSuccess records that p completed the mission. The bonus window opens after
// the announcement delays.
func (e *Engine) MarkSuccess(p models.PlayerID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !validPlayer(p) {
		return ErrInvalidPlayer
	}
	sc := &e.state.SC
	if !sc.Process {
		return e.warnLocked(ErrChallengeNotRunning)
	}
	if !sc.MissionProcess {
		return e.warnLocked(ErrMissionNotActive)
	}
	if sc.Success.Get(p) {
		return nil
	}

	*sc.Success.At(p) = true
	*e.sc.pending.At(p) = true

	log.Info().Str("player", string(p)).Msg("speed challenge mission succeeded")

	e.emitLocked(events.DisplayAudiences, events.EventTypeSCSuccess, events.PlayerPayload{Player: p})
	e.viewNotifyLocked(p.Side(), "success", "Mission complete!")

	e.wg.Add(1)
	go e.announceBonus(e.sc.ctx, e.sc.gen, p, e.cfg.Announce.SuccessDelay, e.cfg.Announce.BonusDelay)
	return nil
}

// announceBonus waits out the success and bonus announcement delays and then
// opens the bonus window for p, unless the challenge ended in between.
func (e *Engine) announceBonus(ctx context.Context, gen uint64, p models.PlayerID, successDelay, bonusDelay time.Duration) {
	defer e.wg.Done()
	defer e.recoverCue("bonus_announce", func() {
		if gen == e.sc.gen {
			*e.sc.pending.At(p) = false
		}
	})

	if !e.sleep(ctx, successDelay) {
		return
	}
	announced := e.withChallenge(gen, func() {
		e.viewNotifyLocked(p.Side(), "bonus", fmt.Sprintf("Bonus time | x%g", e.state.SC.Magnification))
	})
	if !announced || !e.sleep(ctx, bonusDelay) {
		return
	}
	e.withChallenge(gen, func() {
		*e.sc.pending.At(p) = false
		e.startPlayerBonusLocked(p)
	})
}

// withChallenge runs fn under the lock if gen is still the current challenge.
func (e *Engine) withChallenge(gen uint64, fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.sc.gen {
		return false
	}
	fn()
	return true
}

func (e *Engine) startPlayerBonusLocked(p models.PlayerID) {
	sc := &e.state.SC
	if sc.BonusActive.Get(p) {
		return
	}
	*e.sc.saved.At(p) = e.state.Multiplier.Get(p)
	*e.sc.savedLastBonus.At(p) = e.state.LastBonus.Get(p)

	*sc.BonusActive.At(p) = true
	*sc.BonusRemaining.At(p) = sc.BonusSeconds
	*e.state.Multiplier.At(p) = sc.Magnification

	log.Info().Str("player", string(p)).Int("seconds", sc.BonusSeconds).Msg("speed challenge bonus started")

	e.emitLocked(events.DisplayAudiences, events.EventTypeSCBonusStart, events.BonusPayload{
		Player:        p,
		Remaining:     sc.BonusSeconds,
		Magnification: sc.Magnification,
	})
}

func (e *Engine) bonusSecondLocked(p models.PlayerID) {
	sc := &e.state.SC
	current := max(0, sc.BonusRemaining.Get(p))
	e.emitLocked(events.DisplayAudiences, events.EventTypeSCBonusTick, events.BonusPayload{
		Player:        p,
		Remaining:     current,
		Magnification: sc.Magnification,
	})
	e.viewNotifyLocked(p.Side(), "bonus", fmt.Sprintf("x%g bonus | %ds left", sc.Magnification, current))

	*sc.BonusRemaining.At(p) = max(0, current-1)
	if sc.BonusRemaining.Get(p) > 0 {
		return
	}

	*sc.BonusActive.At(p) = false
	e.restoreMultiplierLocked(p)

	log.Info().Str("player", string(p)).Msg("speed challenge bonus ended")

	e.emitLocked(events.DisplayAudiences, events.EventTypeSCBonusEnd, events.PlayerPayload{Player: p})
	e.viewNotifyLocked(p.Side(), "bonus", "Bonus time is over")
	e.hideLaterLocked(p.Side())
}

// restoreMultiplierLocked ends the bonus override for p. The last bonus takes
// precedence if it is active now; if it was active when the bonus began and has
// ended since, the player falls back to 1.
func (e *Engine) restoreMultiplierLocked(p models.PlayerID) {
	switch {
	case e.state.LastBonus.Get(p):
		*e.state.Multiplier.At(p) = effectiveMultiplier(e.cfg.LastBonusMagnification)
	case e.sc.savedLastBonus.Get(p):
		*e.state.Multiplier.At(p) = 1
	default:
		*e.state.Multiplier.At(p) = effectiveMultiplier(e.sc.saved.Get(p))
	}
}

// StopSpeedChallenge ends a running challenge immediately.
func (e *Engine) StopSpeedChallenge() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.SC.Process {
		e.finishSpeedChallengeLocked()
	}
}

func (e *Engine) finishSpeedChallengeLocked() {
	e.clearSpeedChallengeLocked()
	log.Info().Msg("speed challenge finished")
	e.emitLocked(events.DisplayAudiences, events.EventTypeSCEnd, nil)
}

// clearSpeedChallengeLocked restores overridden multipliers, zeroes the
// challenge counters and stops its driver and announcements. It emits nothing.
func (e *Engine) clearSpeedChallengeLocked() {
	sc := &e.state.SC
	for _, p := range models.PlayerIDs {
		if sc.BonusActive.Get(p) {
			e.restoreMultiplierLocked(p)
		}
	}

	if e.sc.cancel != nil {
		e.sc.cancel()
	}
	e.sc.gen++
	e.sc.pending = models.Both(false)

	sc.Process = false
	sc.NoticeProcess = false
	sc.MissionProcess = false
	sc.NoticeRemaining = 0
	sc.MissionRemaining = 0
	sc.BonusActive = models.Both(false)
	sc.BonusRemaining = models.Both(0)
}

func (e *Engine) viewNotifyLocked(position, theme, message string) {
	e.emitLocked(events.DisplayAudiences, events.EventTypeViewNotify, events.ViewNotifyPayload{
		Position: position,
		Kind:     "sc",
		Theme:    theme,
		Message:  message,
	})
}

// hideLaterLocked hides the message at position after the configured delay.
func (e *Engine) hideLaterLocked(position string) {
	ctx, delay := e.cueCtx, e.cfg.Announce.HideNotifyDelay

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.recoverCue("hide_cue", nil)
		if !e.sleep(ctx, delay) {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		e.emitLocked(events.DisplayAudiences, events.EventTypeHideNotify, events.HideNotifyPayload{Position: position})
	}()
}
