package control

import (
	"github.com/mcdev12/battlescore/go/internal/match/config"
	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/mcdev12/battlescore/go/internal/models"
)

// Empty is used by procedures that take or return nothing.
type Empty struct{}

// PlayerRequest names the player an operator action applies to. Both the
// canonical ids and the player01/player02 aliases are accepted.
type PlayerRequest struct {
	Player string `json:"player"`
}

type SubmitSnapshotRequest struct {
	Snapshot events.Snapshot `json:"snapshot"`
}

type StartTimerRequest struct {
	// Seconds <= 0 starts the configured default.
	Seconds int `json:"seconds"`
}

type StartTimerResponse struct {
	Count int `json:"count"`
}

type TogglePauseResponse struct {
	Paused bool `json:"paused"`
}

type AdjustScoreRequest struct {
	Player string  `json:"player"`
	Delta  float64 `json:"delta"`
}

type AdjustScoreResponse struct {
	Score float64 `json:"score"`
}

type SetMultiplierRequest struct {
	Player        string  `json:"player"`
	Magnification float64 `json:"magnification"`
}

type FinalizeRequest struct {
	Reason string `json:"reason"`
}

type FinalizeResponse struct {
	Result *events.MatchResultPayload `json:"result"`
}

type StateResponse struct {
	State events.PublicState `json:"state"`
}

type SaveSettingsRequest struct {
	Settings config.Settings `json:"settings"`
}

type SaveSettingsResponse struct {
	Settings config.Settings `json:"settings"`
}

type ListMatchesRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type ListMatchesResponse struct {
	Matches []models.MatchRecord `json:"matches"`
}

type GetMatchRequest struct {
	ID string `json:"id"`
}

type GetMatchResponse struct {
	Match *models.MatchRecord `json:"match"`
}
