package engine

import (
	"math"

	"github.com/mcdev12/battlescore/go/internal/match/config"
	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/mcdev12/battlescore/go/internal/models"
)

type diffResult struct {
	pushed  models.PlayerValues[int]
	dropped models.PlayerValues[int]
}

func (r diffResult) pushedAny() bool {
	return r.pushed.PlayerA > 0 || r.pushed.PlayerB > 0
}

// applySnapshot diffs snap against the stored baselines. Baselines always
// resync to the reported counts; score and effects only move while the match
// is active. Gifts or players missing from snap keep their baseline.
func applySnapshot(st *State, cfg *config.Config, snap events.Snapshot) diffResult {
	var res diffResult
	keys := cfg.GiftKeys()

	for _, p := range models.PlayerIDs {
		counts := snap.For(p)
		if counts == nil {
			continue
		}
		baseline := st.Baseline.Get(p)
		if baseline == nil {
			baseline = zeroCounts(keys)
			*st.Baseline.At(p) = baseline
		}
		magnification := effectiveMultiplier(st.Multiplier.Get(p))
		budget := cfg.EffectQueue.MaxPushPerTick

		for _, key := range keys {
			current, ok := counts[key]
			if !ok {
				continue
			}
			delta := current - baseline[key]
			baseline[key] = current
			if delta <= 0 || !st.MatchActive {
				continue
			}

			gift := cfg.Gift(key)
			*st.Score.At(p) += float64(delta) * gift.UnitScore * magnification

			effect, ok := gift.PrimaryEffect()
			if !ok {
				continue
			}
			queue := st.EffectQueue.At(p)
			push := max(0, min(delta, budget, cfg.EffectQueue.MaxQueueLength-len(*queue)))
			for i := 0; i < push; i++ {
				*queue = append(*queue, effect)
			}
			budget -= push
			*res.pushed.At(p) += push
			*res.dropped.At(p) += delta - push
		}
	}
	return res
}

func effectiveMultiplier(v float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	return v
}
