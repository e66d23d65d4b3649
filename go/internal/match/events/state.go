package events

import (
	"encoding/json"
	"math"

	"github.com/mcdev12/battlescore/go/internal/models"
)

// PublicState is the read-only projection of the match delivered to every audience
// on connect and on every scheduler tick.
type PublicState struct {
	MatchActive    bool                      `json:"matchProcess"`
	Timer          TimerView                 `json:"timer"`
	MatchSettings  MatchSettingsView         `json:"matchsettings"`
	Score          ScoreView                 `json:"score"`
	Effects        EffectsView               `json:"effects"`
	SpeedChallenge SpeedChallengeView        `json:"sc"`
	LastBonus      models.PlayerValues[bool] `json:"lastbonus"`
}

type TimerView struct {
	Processing bool `json:"processing"`
	Pause      bool `json:"pause"`
	Count      int  `json:"count"`
}

type MatchSettingsView struct {
	MatchFormat  int                          `json:"matchformat"`
	MatchPlayers map[string]models.PlayerSlot `json:"matchplayers"`
}

type ScoreView struct {
	PlayerA       float64                      `json:"playerA"`
	PlayerB       float64                      `json:"playerB"`
	Magnification models.PlayerValues[float64] `json:"magnification"`
}

type EffectsView struct {
	PlayerAQueueLen int `json:"playerAQueueLen"`
	PlayerBQueueLen int `json:"playerBQueueLen"`
}

// SpeedChallengeView mirrors the speed challenge sub-state.
type SpeedChallengeView struct {
	Process        bool                      `json:"process"`
	NoticeProcess  bool                      `json:"noticeProcess"`
	MissionProcess bool                      `json:"missionProcess"`
	NoticeSec      int                       `json:"noticeSec"`
	MissionSec     int                       `json:"missionSec"`
	BonusSec       int                       `json:"bonusSec"`
	BonusRemaining models.PlayerValues[int]  `json:"bonusRemaining"`
	BonusActive    models.PlayerValues[bool] `json:"bonusActive"`
	Success        models.PlayerValues[bool] `json:"success"`
	Magnification  float64                   `json:"magnification"`
	AutoStart      bool                      `json:"autoStart"`
	AutoStartTime  int                       `json:"autoStartTime"`
}

// Snapshot is the latest cumulative gift count per player reported by the input feed.
// A nil map means the feed said nothing about that player.
type Snapshot struct {
	PlayerA map[string]int `json:"playerA"`
	PlayerB map[string]int `json:"playerB"`
}

// For returns the counts reported for p.
func (s Snapshot) For(p models.PlayerID) map[string]int {
	if p == models.PlayerB {
		return s.PlayerB
	}
	return s.PlayerA
}

// UnmarshalJSON accepts canonical and legacy player keys and sanitizes counts:
// non-finite or negative numbers become 0 and fractions are floored.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Snapshot{}
	for key, counts := range raw {
		player, err := models.ParsePlayerID(key)
		if err != nil {
			continue
		}
		clean := make(map[string]int, len(counts))
		for gift, v := range counts {
			clean[gift] = sanitizeCount(v)
		}
		if player == models.PlayerA {
			s.PlayerA = clean
		} else {
			s.PlayerB = clean
		}
	}
	return nil
}

func sanitizeCount(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	if v >= float64(math.MaxInt) {
		return math.MaxInt
	}
	return int(math.Floor(v))
}
