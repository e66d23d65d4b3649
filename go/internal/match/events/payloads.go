package events

import (
	"encoding/json"
	"time"

	"github.com/mcdev12/battlescore/go/internal/models"
)

// Event payload types shared by the engine, the gateway and the outbox relay

// CountPayload carries the match clock for timer:start / timer:tick.
type CountPayload struct {
	Count int `json:"count"`
}

// PausePayload is the payload for timer:pause.
type PausePayload struct {
	Pause bool `json:"pause"`
}

// ShowPayload toggles a renderer cue such as status:aggregating.
type ShowPayload struct {
	Show bool `json:"show"`
}

// SpeedChallengeStartPayload is the payload for sc:start.
type SpeedChallengeStartPayload struct {
	NoticeSec     int     `json:"notice_sec"`
	MissionSec    int     `json:"mission_sec"`
	BonusSec      int     `json:"bonus_sec"`
	Magnification float64 `json:"magnification"`
}

// RemainingPayload is the payload for sc:notice and sc:missionTick.
type RemainingPayload struct {
	Remaining int `json:"remaining"`
}

// PlayerPayload names the player an sc:success / sc:fail / sc:bonusEnd refers to.
type PlayerPayload struct {
	Player models.PlayerID `json:"player"`
}

// BonusPayload is the payload for sc:bonusStart and sc:bonusTick.
type BonusPayload struct {
	Player        models.PlayerID `json:"player"`
	Remaining     int             `json:"remaining"`
	Magnification float64         `json:"magnification"`
}

// Notify positions for viewnotify / hidenotify.
const (
	PositionTop   = "top"
	PositionLeft  = "left"
	PositionRight = "right"
)

// ViewNotifyPayload is an on-screen message for the display renderer.
type ViewNotifyPayload struct {
	Position string `json:"position"`
	Kind     string `json:"kind"`
	Theme    string `json:"theme"`
	Message  string `json:"message"`
}

// HideNotifyPayload hides the message shown at Position.
type HideNotifyPayload struct {
	Position string `json:"position"`
}

// Notify levels.
const (
	NotifyInfo  = "info"
	NotifyWarn  = "warn"
	NotifyError = "error"
)

// NotifyPayload is an operator toast.
type NotifyPayload struct {
	Level   string `json:"type"`
	Message string `json:"message"`
}

// EffectQueuePayload carries the current per-player effect queues.
type EffectQueuePayload = models.PlayerValues[[]string]

// MatchResultPayload is the payload for match:result / result:show.
type MatchResultPayload struct {
	MatchID       *string                      `json:"match_id"`
	Reason        string                       `json:"reason"`
	Outcome       models.MatchOutcome          `json:"outcome"`
	Winner        *models.PlayerID             `json:"winner"`
	Loser         *models.PlayerID             `json:"loser"`
	Score         models.PlayerValues[float64] `json:"score"`
	MatchSettings MatchSettingsView            `json:"matchsettings"`
	EndedAt       time.Time                    `json:"ended_at"`
}

// MatchFinalizedPayload is the outbox payload for a persisted match.
type MatchFinalizedPayload struct {
	MatchID string                       `json:"match_id"`
	Status  models.MatchStatus           `json:"status"`
	Outcome *models.MatchOutcome         `json:"outcome,omitempty"`
	Winner  *models.PlayerID             `json:"winner,omitempty"`
	Score   models.PlayerValues[float64] `json:"score"`
	Reason  string                       `json:"reason,omitempty"`
	EndedAt time.Time                    `json:"ended_at"`
}

// Outbox event types.
const (
	OutboxMatchFinalized = "MatchFinalized"
	OutboxMatchCancelled = "MatchCancelled"
)

// Envelope is the message the outbox relay publishes for each outbox row.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	MatchID   string          `json:"matchId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}
