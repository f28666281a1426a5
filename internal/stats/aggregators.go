package stats

import (
	"errors"
	"fmt"

	"github.com/lolfu/winrate-engine/internal/models"
)

// Population counts wins and losses per (tier, position, champion) across
// every resolved match. Slots with an unknown tier are not counted.
type Population struct {
	counters *Counters
}

func NewPopulation() *Population {
	return &Population{counters: NewCounters()}
}

func PopulationKey(tier string, pos models.Position, championID int) FeatureKey {
	return Key(tier, string(pos), championID)
}

func (p *Population) ObserveRow(row models.LedgerRow) {
	for side, slots := range [2][5]models.LedgerSlot{row.Winners, row.Losers} {
		for i, s := range slots {
			if !s.Present || s.Tier == "" || s.Tier == models.UnknownTier {
				continue
			}
			p.counters.Observe(PopulationKey(s.Tier, models.Positions[i], s.ChampionID), side == 0)
		}
	}
}

func (p *Population) Counter(tier string, pos models.Position, championID int) Counter {
	return p.counters.Get(PopulationKey(tier, pos, championID))
}

func (p *Population) Counters() *Counters { return p.counters }

// PlayerChampions counts one player's results per (position, champion).
type PlayerChampions struct {
	counters *Counters
}

func NewPlayerChampions() *PlayerChampions {
	return &PlayerChampions{counters: NewCounters()}
}

func PlayerKey(pos models.Position, championID int) FeatureKey {
	return Key(string(pos), championID)
}

func (a *PlayerChampions) Observe(pos models.Position, championID int, win bool) {
	a.counters.Observe(PlayerKey(pos, championID), win)
}

// ObserveMatch records playerID's result in rec. A participant whose
// position cannot be inferred is excluded and reported as malformed.
func (a *PlayerChampions) ObserveMatch(rec *models.MatchRecord, playerID int64, policy PositionPolicy) error {
	p, ok := rec.Participant(playerID)
	if !ok {
		return fmt.Errorf("match %d: player %d did not participate", rec.MatchID, playerID)
	}
	pos, err := policy.Infer(p.Lane, p.Role, p.ChampionID)
	if err != nil {
		return fmt.Errorf("%w: match %d: %w", ErrMalformedData, rec.MatchID, err)
	}
	a.Observe(pos, p.ChampionID, rec.WinnerTeams[p.TeamID])
	return nil
}

func (a *PlayerChampions) Counter(pos models.Position, championID int) Counter {
	return a.counters.Get(PlayerKey(pos, championID))
}

func (a *PlayerChampions) Counters() *Counters { return a.counters }

// Matchup counts every (champion, enemy champion) pairing, mirrored for the
// winning and losing side.
type Matchup struct {
	counters *Counters
}

func NewMatchup() *Matchup {
	return &Matchup{counters: NewCounters()}
}

func (m *Matchup) ObserveMatch(rec *models.MatchRecord) error {
	var winners, losers []int
	for _, p := range rec.Participants {
		win, ok := rec.WinnerTeams[p.TeamID]
		if !ok {
			return malformed(ErrImpossibleState, "match %d: participant %d on unknown team %d", rec.MatchID, p.ParticipantID, p.TeamID)
		}
		if win {
			winners = append(winners, p.ChampionID)
		} else {
			losers = append(losers, p.ChampionID)
		}
	}
	if len(winners) == 0 || len(losers) == 0 {
		return malformed(ErrImpossibleState, "match %d: cannot split winners and losers", rec.MatchID)
	}
	m.observe(winners, losers)
	return nil
}

func (m *Matchup) ObserveRow(row models.LedgerRow) {
	var winners, losers []int
	for i := range row.Winners {
		if row.Winners[i].Present {
			winners = append(winners, row.Winners[i].ChampionID)
		}
		if row.Losers[i].Present {
			losers = append(losers, row.Losers[i].ChampionID)
		}
	}
	m.observe(winners, losers)
}

func (m *Matchup) observe(winners, losers []int) {
	for _, w := range winners {
		for _, l := range losers {
			m.counters.Observe(Key(w, l), true)
			m.counters.Observe(Key(l, w), false)
		}
	}
}

func (m *Matchup) Counter(championID, enemyID int) Counter {
	return m.counters.Get(Key(championID, enemyID))
}

func (m *Matchup) Counters() *Counters { return m.counters }

// Observation is one resolved match. Match is nil when the observation was
// read back from the ledger.
type Observation struct {
	Match *models.MatchRecord
	Row   models.LedgerRow
}

// Suite feeds each observation to every aggregator. A rejection by one
// aggregator does not affect the others.
type Suite struct {
	Population *Population
	Matchup    *Matchup
	Timeline   *Timeline
}

func NewSuite() *Suite {
	return &Suite{
		Population: NewPopulation(),
		Matchup:    NewMatchup(),
		Timeline:   NewTimeline(),
	}
}

func (s *Suite) Observe(obs Observation) error {
	s.Population.ObserveRow(obs.Row)

	if obs.Match == nil {
		s.Matchup.ObserveRow(obs.Row)
		return nil
	}

	var errs []error
	if err := s.Matchup.ObserveMatch(obs.Match); err != nil {
		errs = append(errs, err)
	}
	if obs.Match.HasTimeline {
		if err := s.Timeline.ObserveMatch(obs.Match); err != nil {
			errs = append(errs, err)
		}
	}
	for _, err := range errs {
		matchesRejected.WithLabelValues(rejectReason(err)).Inc()
	}
	return errors.Join(errs...)
}
