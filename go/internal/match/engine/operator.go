package engine

import (
	"math"

	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/mcdev12/battlescore/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ResetScore zeroes both scores.
func (e *Engine) ResetScore() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Score = models.Both(0.0)
	log.Info().Msg("scores reset")
}

// AdjustScore adds delta to the score of p.
func (e *Engine) AdjustScore(p models.PlayerID, delta float64) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !validPlayer(p) {
		return 0, ErrInvalidPlayer
	}
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return 0, ErrInvalidValue
	}
	score := e.state.Score.At(p)
	*score += delta

	log.Info().Str("player", string(p)).Float64("delta", delta).Float64("score", *score).Msg("score adjusted")
	return *score, nil
}

// SetMultiplier overrides the score multiplier of p for the active match.
func (e *Engine) SetMultiplier(p models.PlayerID, value float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !validPlayer(p) {
		return ErrInvalidPlayer
	}
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return ErrInvalidValue
	}
	if !e.state.MatchActive {
		return e.warnLocked(ErrMatchNotStarted)
	}
	*e.state.Multiplier.At(p) = value

	log.Info().Str("player", string(p)).Float64("magnification", value).Msg("multiplier set")
	return nil
}

// StartLastBonus applies the configured last bonus magnification to p.
func (e *Engine) StartLastBonus(p models.PlayerID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !validPlayer(p) {
		return ErrInvalidPlayer
	}
	magnification := e.cfg.LastBonusMagnification
	if magnification <= 0 || math.IsNaN(magnification) || math.IsInf(magnification, 0) {
		return e.warnLocked(ErrLastBonusUnavailable)
	}
	*e.state.LastBonus.At(p) = true
	*e.state.Multiplier.At(p) = magnification

	log.Info().Str("player", string(p)).Float64("magnification", magnification).Msg("last bonus started")
	return nil
}

// EndLastBonus clears the last bonus of p and resets its multiplier to 1, even
// inside a speed challenge bonus window.
func (e *Engine) EndLastBonus(p models.PlayerID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !validPlayer(p) {
		return ErrInvalidPlayer
	}
	*e.state.LastBonus.At(p) = false
	*e.state.Multiplier.At(p) = 1

	log.Info().Str("player", string(p)).Msg("last bonus ended")
	return nil
}

// ConsumeEffect pops the head of the effect queue of p once the display has
// played it.
func (e *Engine) ConsumeEffect(p models.PlayerID) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !validPlayer(p) {
		return "", false
	}
	queue := e.state.EffectQueue.At(p)
	if len(*queue) == 0 {
		return "", false
	}
	head := (*queue)[0]
	*queue = (*queue)[1:]
	return head, true
}

// EffectQueues returns a copy of both effect queues.
func (e *Engine) EffectQueues() events.EffectQueuePayload {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.effectQueues()
}
