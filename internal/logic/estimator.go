package logic

import (
	"math"
	"sort"

	"github.com/lolfu/winrate-engine/internal/models"
	"github.com/lolfu/winrate-engine/internal/stats"
)

// NeutralPrior is the prior of a population estimate.
const NeutralPrior = 0.5

// Expected shrinks the empirical win rate towards prior:
//
//	(k*prior + wins) / (k + wins + losses)
//
// The result is always within [0, 1]. With no samples it is prior.
func Expected(wins, losses uint64, prior, k float64) float64 {
	prior = clamp(prior)
	if k < 0 || math.IsNaN(k) {
		k = 0
	}
	n := float64(wins) + float64(losses)
	if n+k == 0 {
		return prior
	}
	return clamp((k*prior + float64(wins)) / (k + n))
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return NeutralPrior
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Estimator turns counters into estimates with a fixed smoothing constant.
type Estimator struct {
	K float64
}

// Estimate builds the estimate for one counter against prior.
func (e Estimator) Estimate(key stats.FeatureKey, c stats.Counter, prior float64) models.WinrateEstimate {
	est := models.WinrateEstimate{
		Key:          []string(key),
		Wins:         c.Wins,
		Losses:       c.Losses,
		Samples:      c.Samples(),
		PriorRate:    clamp(prior),
		ExpectedRate: Expected(c.Wins, c.Losses, prior, e.K),
	}
	if est.Samples > 0 {
		r := float64(c.Wins) / float64(est.Samples)
		est.EmpiricalRate = &r
	}
	return est
}

// Blend composes two levels: the population counter is estimated against a
// neutral prior with popK, and that estimate is the prior of the player
// counter at playerK.
func Blend(player, population stats.Counter, playerK, popK float64) float64 {
	return Expected(player.Wins, player.Losses, Expected(population.Wins, population.Losses, NeutralPrior, popK), playerK)
}

// Rank orders estimates by expected rate, then by samples, both descending.
func Rank(estimates []models.WinrateEstimate) {
	sort.SliceStable(estimates, func(i, j int) bool {
		return less(estimates[i], estimates[j])
	})
}

// RankChampions is Rank for player-level estimates.
func RankChampions(estimates []models.ChampionEstimate) {
	sort.SliceStable(estimates, func(i, j int) bool {
		return less(estimates[i].Estimate, estimates[j].Estimate)
	})
}

func less(a, b models.WinrateEstimate) bool {
	if a.ExpectedRate != b.ExpectedRate {
		return a.ExpectedRate > b.ExpectedRate
	}
	return a.Samples > b.Samples
}
