package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PlayerID identifies one of the two contestants of a match.
type PlayerID string

const (
	PlayerA PlayerID = "playerA"
	PlayerB PlayerID = "playerB"
)

// PlayerIDs lists both contestants in display order (left, right).
var PlayerIDs = [2]PlayerID{PlayerA, PlayerB}

// ParsePlayerID accepts the canonical ids and the legacy player01/player02 aliases.
func ParsePlayerID(s string) (PlayerID, error) {
	switch s {
	case string(PlayerA), "player01":
		return PlayerA, nil
	case string(PlayerB), "player02":
		return PlayerB, nil
	default:
		return "", fmt.Errorf("unknown player %q", s)
	}
}

// Side returns the screen side a player's notifications are shown on.
func (p PlayerID) Side() string {
	if p == PlayerB {
		return "right"
	}
	return "left"
}

// Opponent returns the other contestant.
func (p PlayerID) Opponent() PlayerID {
	if p == PlayerA {
		return PlayerB
	}
	return PlayerA
}

// PlayerValues holds one value per contestant.
type PlayerValues[T any] struct {
	PlayerA T `json:"playerA"`
	PlayerB T `json:"playerB"`
}

// At returns a pointer to the value for p. Unknown ids resolve to PlayerA's slot,
// callers validate ids before mutating.
func (v *PlayerValues[T]) At(p PlayerID) *T {
	if p == PlayerB {
		return &v.PlayerB
	}
	return &v.PlayerA
}

// Get returns the value for p.
func (v PlayerValues[T]) Get(p PlayerID) T {
	return *v.At(p)
}

// Both builds a PlayerValues with the same value on both sides.
func Both[T any](v T) PlayerValues[T] {
	return PlayerValues[T]{PlayerA: v, PlayerB: v}
}

// PlayerSlot describes who is shown in a match slot.
type PlayerSlot struct {
	ID       *string `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	ImageURL string  `json:"image_url,omitempty" yaml:"image_url"`
}

// MatchOutcome is the result of comparing final scores.
type MatchOutcome string

const (
	OutcomePlayerAWin MatchOutcome = "playerA_win"
	OutcomePlayerBWin MatchOutcome = "playerB_win"
	OutcomeDraw       MatchOutcome = "draw"
)

// MatchStatus is the terminal state a match was recorded with.
type MatchStatus string

const (
	MatchStatusFinished  MatchStatus = "FINISHED"
	MatchStatusCancelled MatchStatus = "CANCELLED"
)

// MatchRecord is a persisted match.
type MatchRecord struct {
	ID             uuid.UUID             `json:"id"`
	Status         MatchStatus           `json:"status"`
	Outcome        *MatchOutcome         `json:"outcome,omitempty"`
	Winner         *PlayerID             `json:"winner,omitempty"`
	Loser          *PlayerID             `json:"loser,omitempty"`
	Score          PlayerValues[float64] `json:"score"`
	MatchFormat    int                   `json:"match_format"`
	MatchPlayers   map[string]PlayerSlot `json:"match_players"`
	RemainingCount int                   `json:"remaining_count"`
	Reason         string                `json:"reason,omitempty"`
	EndedAt        time.Time             `json:"ended_at"`
	CreatedAt      time.Time             `json:"created_at"`
}

// DecideOutcome compares two scores.
func DecideOutcome(score PlayerValues[float64]) (MatchOutcome, *PlayerID, *PlayerID) {
	a, b := PlayerA, PlayerB
	switch {
	case score.PlayerA > score.PlayerB:
		return OutcomePlayerAWin, &a, &b
	case score.PlayerB > score.PlayerA:
		return OutcomePlayerBWin, &b, &a
	default:
		return OutcomeDraw, nil, nil
	}
}

// ErrMatchNotFound is returned when a match id has no record.
var ErrMatchNotFound = errors.New("match not found")
