package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/mcdev12/battlescore/go/internal/models"
	"github.com/rs/zerolog/log"
)

const cancelledReason = "reset"

// Finalize closes the active match, decides the outcome and persists it when a
// store is configured. Calling it again after a finalize re-sends the last
// result. Finalize is refused while any clock is moving.
func (e *Engine) Finalize(ctx context.Context, reason string) (*events.MatchResultPayload, error) {
	e.mu.Lock()

	if e.clocksMovingLocked() {
		err := e.warnLocked(ErrTimerStillRunning)
		e.mu.Unlock()
		return nil, err
	}
	if !e.state.MatchActive {
		if e.lastResult != nil {
			result := *e.lastResult
			e.emitResultLocked(&result)
			e.notifyLocked(events.NotifyInfo, "match result re-sent")
			e.mu.Unlock()
			return &result, nil
		}
		err := e.warnLocked(ErrMatchNotStarted)
		e.mu.Unlock()
		return nil, err
	}

	if e.state.SC.Process {
		e.finishSpeedChallengeLocked()
	}
	e.state.MatchActive = false
	e.state.Timer.Processing = false

	outcome, winner, loser := models.DecideOutcome(e.state.Score)
	projection := e.state.project()
	result := events.MatchResultPayload{
		Reason:        reason,
		Outcome:       outcome,
		Winner:        winner,
		Loser:         loser,
		Score:         models.PlayerValues[float64]{PlayerA: e.state.Score.PlayerA, PlayerB: e.state.Score.PlayerB},
		MatchSettings: projection.MatchSettings,
		EndedAt:       e.clock.Now().UTC(),
	}
	record := models.MatchRecord{
		Status:         models.MatchStatusFinished,
		Outcome:        &outcome,
		Winner:         winner,
		Loser:          loser,
		Score:          result.Score,
		MatchFormat:    e.state.MatchFormat,
		MatchPlayers:   projection.MatchSettings.MatchPlayers,
		RemainingCount: e.state.Timer.Remaining,
		Reason:         reason,
		EndedAt:        result.EndedAt,
	}
	store := e.store
	e.mu.Unlock()

	var saveErr error
	if store != nil {
		var id uuid.UUID
		id, saveErr = store.SaveMatch(ctx, record)
		if saveErr == nil {
			matchID := id.String()
			result.MatchID = &matchID
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastResult = &result
	if saveErr != nil {
		log.Error().Err(saveErr).Msg("failed to persist match result")
		e.notifyLocked(events.NotifyError, fmt.Sprintf("failed to save match result: %v", saveErr))
	}

	log.Info().
		Str("outcome", string(outcome)).
		Float64("score_a", result.Score.PlayerA).
		Float64("score_b", result.Score.PlayerB).
		Msg("match finalized")

	e.emitResultLocked(&result)
	e.emitLocked(events.AllAudiences, events.EventTypeStateUpdate, e.state.project())
	e.notifyLocked(events.NotifyInfo, "match finalized")
	return &result, nil
}

// clocksMovingLocked reports whether the match timer or the speed challenge is
// still counting. A paused running timer freezes both.
func (e *Engine) clocksMovingLocked() bool {
	if e.timerFrozenLocked() {
		return false
	}
	return e.state.Timer.Processing || e.state.SC.Process
}

func (e *Engine) emitResultLocked(result *events.MatchResultPayload) {
	e.emitLocked(events.DisplayAudiences, events.EventTypeMatchResult, result)
	e.emitLocked(events.DisplayAudiences, events.EventTypeResultShow, result)
}

// ResetMatch stops every clock and zeroes the match. An active match is
// recorded as cancelled when a store is configured.
func (e *Engine) ResetMatch(ctx context.Context) {
	e.mu.Lock()

	var record *models.MatchRecord
	if e.state.MatchActive && e.store != nil {
		record = &models.MatchRecord{
			Status:         models.MatchStatusCancelled,
			Score:          e.state.Score,
			MatchFormat:    e.state.MatchFormat,
			MatchPlayers:   e.state.project().MatchSettings.MatchPlayers,
			RemainingCount: e.state.Timer.Remaining,
			Reason:         cancelledReason,
			EndedAt:        e.clock.Now().UTC(),
		}
	}

	if e.state.SC.Process {
		e.finishSpeedChallengeLocked()
	}
	e.cueCancel()
	e.cueCtx, e.cueCancel = context.WithCancel(e.baseCtx)

	e.state.reset(e.cfg)
	e.lastResult = nil
	e.autoStarted = false

	log.Info().Msg("match reset")

	e.emitLocked(events.AllAudiences, events.EventTypeStateInit, e.state.project())
	store := e.store
	e.mu.Unlock()

	if record == nil {
		return
	}
	id, err := store.SaveMatch(ctx, *record)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Msg("failed to persist cancelled match")
		e.notifyLocked(events.NotifyError, fmt.Sprintf("failed to save cancelled match: %v", err))
		return
	}
	log.Info().Str("match_id", id.String()).Msg("cancelled match recorded")
}
