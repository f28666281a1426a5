package logic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lolfu/winrate-engine/internal/models"
	"github.com/lolfu/winrate-engine/internal/riot"
	"github.com/lolfu/winrate-engine/internal/stats"
)

const (
	climbMinSamples = 10
	climbPicks      = 5
)

// RecommendationConfig holds the smoothing constants.
type RecommendationConfig struct {
	PlayerSmoothing     float64
	PopulationSmoothing float64
	Policy              stats.PositionPolicy
}

// population is an immutable snapshot swapped in after a recompute.
type population struct {
	counts  *stats.Population
	matches uint64
}

// Recommender implements RecommendationService over a population snapshot
// that can be replaced while serving.
type Recommender struct {
	source PlayerSource
	cfg    RecommendationConfig
	pop    atomic.Pointer[population]
	logger *zap.SugaredLogger
}

func NewRecommender(source PlayerSource, cfg RecommendationConfig, logger *zap.Logger) *Recommender {
	if cfg.PlayerSmoothing <= 0 {
		cfg.PlayerSmoothing = 10
	}
	if cfg.PopulationSmoothing <= 0 {
		cfg.PopulationSmoothing = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Policy.Carry == nil {
		cfg.Policy = stats.DefaultPositionPolicy()
	}
	s := &Recommender{source: source, cfg: cfg, logger: logger.Sugar()}
	s.SetPopulation(stats.NewPopulation(), 0)
	return s
}

// SetPopulation replaces the population counters used as priors.
func (s *Recommender) SetPopulation(p *stats.Population, matches uint64) {
	s.pop.Store(&population{counts: p, matches: matches})
}

func (s *Recommender) MatchCount() uint64 {
	return s.pop.Load().matches
}

func (s *Recommender) populationPrior(pop *stats.Population, tier string, pos models.Position, championID int) float64 {
	c := pop.Counter(tier, pos, championID)
	return Expected(c.Wins, c.Losses, NeutralPrior, s.cfg.PopulationSmoothing)
}

// Rankings estimates every champion observed for tier and position against
// the neutral prior.
func (s *Recommender) Rankings(tier string, position models.Position, minSamples uint64) []models.ChampionEstimate {
	est := Estimator{K: s.cfg.PopulationSmoothing}
	var out []models.ChampionEstimate
	for _, e := range s.pop.Load().counts.Counters().Filter(tier, string(position)) {
		if e.Samples() < minSamples {
			continue
		}
		championID, err := strconv.Atoi(e.Key[2])
		if err != nil {
			continue
		}
		out = append(out, models.ChampionEstimate{
			Position:   position,
			ChampionID: championID,
			Estimate:   est.Estimate(e.Key, e.Counter, NeutralPrior),
		})
	}
	RankChampions(out)
	return out
}

// Recommend looks the player up by name, tallies their results per position
// and champion from their match history, and ranks every candidate champion
// by its player estimate blended with the population estimate of the
// player's tier.
func (s *Recommender) Recommend(ctx context.Context, playerName string) (*models.Recommendations, error) {
	summoner, err := s.source.FetchPlayerByName(ctx, playerName)
	if err != nil {
		return nil, err
	}
	playerID := int64(summoner.ID)

	tiers, err := s.source.FetchPlayerTiers(ctx, []int64{playerID})
	if err != nil {
		return nil, fmt.Errorf("tier of %d: %w", playerID, err)
	}
	tier := tiers[playerID]

	player, err := s.playerChampions(ctx, playerID)
	if err != nil {
		return nil, err
	}

	pop := s.pop.Load().counts
	// Candidates are collected in key order so ties rank the same way on
	// every request.
	var candidates []models.ChampionEstimate
	seen := map[string]bool{}
	add := func(pos models.Position, championID int) {
		key := stats.PlayerKey(pos, championID)
		if seen[key.String()] {
			return
		}
		seen[key.String()] = true
		prior := s.populationPrior(pop, tier, pos, championID)
		candidates = append(candidates, models.ChampionEstimate{
			Position:   pos,
			ChampionID: championID,
			Estimate:   Estimator{K: s.cfg.PlayerSmoothing}.Estimate(key, player.Counter(pos, championID), prior),
		})
	}
	for _, e := range player.Counters().Snapshot() {
		pos, _ := models.ParsePosition(e.Key[0])
		id, _ := strconv.Atoi(e.Key[1])
		add(pos, id)
	}
	for _, pos := range models.Positions {
		for _, e := range pop.Counters().Filter(tier, string(pos)) {
			id, _ := strconv.Atoi(e.Key[2])
			add(pos, id)
		}
	}

	recs := &models.Recommendations{
		PlayerID:   playerID,
		PlayerName: summoner.Name,
		Tier:       tier,
		Ranked:     candidates,
	}
	if recs.Ranked == nil {
		recs.Ranked = []models.ChampionEstimate{}
	}
	RankChampions(recs.Ranked)

	var experienced, practice []models.ChampionEstimate
	for _, c := range recs.Ranked {
		if c.Estimate.Samples >= climbMinSamples {
			experienced = append(experienced, c)
			if c.Estimate.ExpectedRate > NeutralPrior && len(recs.Climb) < climbPicks {
				recs.Climb = append(recs.Climb, c)
			}
		} else if c.Estimate.ExpectedRate > NeutralPrior {
			practice = append(practice, c)
		}
	}
	recs.ByPosition = bestPerPosition(experienced)
	recs.Practice = bestPerPosition(practice)
	return recs, nil
}

// playerChampions tallies the player's results. Games whose position cannot
// be inferred or whose match is gone are skipped. The listing's lane and role
// are checked first so unresolvable games are never fetched.
func (s *Recommender) playerChampions(ctx context.Context, playerID int64) (*stats.PlayerChampions, error) {
	agg := stats.NewPlayerChampions()
	list, err := s.source.FetchMatchList(ctx, playerID)
	if errors.Is(err, riot.ErrNotFound) {
		return agg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("match list of %d: %w", playerID, err)
	}

	for _, ref := range list.Matches {
		if _, err := s.cfg.Policy.Infer(ref.Lane, ref.Role, ref.Champion); err != nil {
			continue
		}
		m, err := s.source.FetchMatch(ctx, ref.MatchID)
		if errors.Is(err, riot.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("match %d: %w", ref.MatchID, err)
		}
		if err := agg.ObserveMatch(m, playerID, s.cfg.Policy); err != nil {
			s.logger.Debugw("Game skipped", "player_id", playerID, "match_id", ref.MatchID, "error", err)
		}
	}
	return agg, nil
}

// bestPerPosition picks the first estimate of each position from a ranked
// list, with nil for positions without one. It returns nil when no position
// has a pick.
func bestPerPosition(ranked []models.ChampionEstimate) []*models.ChampionEstimate {
	out := make([]*models.ChampionEstimate, len(models.Positions))
	found := false
	for i, pos := range models.Positions {
		for j := range ranked {
			if ranked[j].Position == pos {
				out[i] = &ranked[j]
				found = true
				break
			}
		}
	}
	if !found {
		return nil
	}
	return out
}
