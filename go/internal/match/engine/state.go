package engine

import (
	"github.com/mcdev12/battlescore/go/internal/match/config"
	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/mcdev12/battlescore/go/internal/models"
)

// State is the mutable match record. It is created once and reset in place.
type State struct {
	MatchActive bool
	Timer       TimerState
	Score       models.PlayerValues[float64]
	Multiplier  models.PlayerValues[float64]
	Baseline    models.PlayerValues[map[string]int]
	Pending     *events.Snapshot
	EffectQueue models.PlayerValues[[]string]
	SC          SpeedChallengeState
	LastBonus   models.PlayerValues[bool]

	MatchFormat  int
	MatchPlayers map[string]models.PlayerSlot
}

type TimerState struct {
	Processing bool
	Paused     bool
	Remaining  int
}

// SpeedChallengeState is the public part of the speed challenge sub-machine.
type SpeedChallengeState struct {
	Process          bool
	NoticeProcess    bool
	MissionProcess   bool
	NoticeRemaining  int
	MissionRemaining int
	BonusSeconds     int
	BonusRemaining   models.PlayerValues[int]
	BonusActive      models.PlayerValues[bool]
	Success          models.PlayerValues[bool]
	Magnification    float64
	AutoStart        bool
	AutoStartTime    int
}

func newState(cfg *config.Config) *State {
	st := &State{}
	st.reset(cfg)
	return st
}

// reset zeroes the match while keeping the same record.
func (st *State) reset(cfg *config.Config) {
	st.MatchActive = false
	st.Timer = TimerState{Remaining: cfg.Timer.DefaultSeconds}
	st.Score = models.Both(0.0)
	st.Multiplier = models.Both(1.0)
	st.Baseline = models.PlayerValues[map[string]int]{
		PlayerA: zeroCounts(cfg.GiftKeys()),
		PlayerB: zeroCounts(cfg.GiftKeys()),
	}
	st.Pending = nil
	st.EffectQueue = models.PlayerValues[[]string]{PlayerA: []string{}, PlayerB: []string{}}
	st.SC = SpeedChallengeState{
		NoticeRemaining:  cfg.SpeedChallenge.NoticeSeconds,
		MissionRemaining: cfg.SpeedChallenge.MissionSeconds,
		BonusSeconds:     cfg.SpeedChallenge.BonusSeconds,
		Magnification:    cfg.SpeedChallenge.Magnification,
		AutoStart:        cfg.SpeedChallenge.AutoStart,
		AutoStartTime:    cfg.SpeedChallenge.AutoStartTime,
	}
	st.LastBonus = models.Both(false)
	st.MatchFormat = cfg.MatchFormat
	st.MatchPlayers = cfg.MatchPlayers
}

// rebase moves the baselines onto cfg's gift key set and trims the queues.
// Kept keys retain their counts, new keys start at 0.
func (st *State) rebase(cfg *config.Config) {
	for _, p := range models.PlayerIDs {
		old := st.Baseline.Get(p)
		next := zeroCounts(cfg.GiftKeys())
		for key := range next {
			next[key] = old[key]
		}
		*st.Baseline.At(p) = next

		queue := st.EffectQueue.At(p)
		if limit := cfg.EffectQueue.MaxQueueLength; len(*queue) > limit {
			*queue = (*queue)[:limit]
		}
	}
	st.MatchFormat = cfg.MatchFormat
	st.MatchPlayers = cfg.MatchPlayers
	st.SC.AutoStart = cfg.SpeedChallenge.AutoStart
	st.SC.AutoStartTime = cfg.SpeedChallenge.AutoStartTime
	if !st.SC.Process {
		st.SC.NoticeRemaining = cfg.SpeedChallenge.NoticeSeconds
		st.SC.MissionRemaining = cfg.SpeedChallenge.MissionSeconds
		st.SC.BonusSeconds = cfg.SpeedChallenge.BonusSeconds
		st.SC.Magnification = cfg.SpeedChallenge.Magnification
	}
}

func zeroCounts(keys []string) map[string]int {
	m := make(map[string]int, len(keys))
	for _, k := range keys {
		m[k] = 0
	}
	return m
}

// project builds the public projection. The result shares no memory with st.
func (st *State) project() events.PublicState {
	players := make(map[string]models.PlayerSlot, len(st.MatchPlayers))
	for k, v := range st.MatchPlayers {
		players[k] = v
	}
	return events.PublicState{
		MatchActive: st.MatchActive,
		Timer: events.TimerView{
			Processing: st.Timer.Processing,
			Pause:      st.Timer.Paused,
			Count:      st.Timer.Remaining,
		},
		MatchSettings: events.MatchSettingsView{
			MatchFormat:  st.MatchFormat,
			MatchPlayers: players,
		},
		Score: events.ScoreView{
			PlayerA:       st.Score.PlayerA,
			PlayerB:       st.Score.PlayerB,
			Magnification: st.Multiplier,
		},
		Effects: events.EffectsView{
			PlayerAQueueLen: len(st.EffectQueue.PlayerA),
			PlayerBQueueLen: len(st.EffectQueue.PlayerB),
		},
		SpeedChallenge: events.SpeedChallengeView{
			Process:        st.SC.Process,
			NoticeProcess:  st.SC.NoticeProcess,
			MissionProcess: st.SC.MissionProcess,
			NoticeSec:      st.SC.NoticeRemaining,
			MissionSec:     st.SC.MissionRemaining,
			BonusSec:       st.SC.BonusSeconds,
			BonusRemaining: st.SC.BonusRemaining,
			BonusActive:    st.SC.BonusActive,
			Success:        st.SC.Success,
			Magnification:  st.SC.Magnification,
			AutoStart:      st.SC.AutoStart,
			AutoStartTime:  st.SC.AutoStartTime,
		},
		LastBonus: st.LastBonus,
	}
}

// effectQueues copies the queues for broadcast.
func (st *State) effectQueues() events.EffectQueuePayload {
	return events.EffectQueuePayload{
		PlayerA: append([]string(nil), st.EffectQueue.PlayerA...),
		PlayerB: append([]string(nil), st.EffectQueue.PlayerB...),
	}
}
