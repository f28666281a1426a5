package stats

import (
	"github.com/lolfu/winrate-engine/internal/models"
)

const (
	maxInhibitors = 3
	maxTowers     = 11
)

// Timeline replays a match's event stream and, at every building or champion
// kill, records the running state of both sides. Each snapshot is counted as
// a win from the eventual winner's perspective and as a loss from the
// loser's, under mirrored keys.
//
//	Towers: (inhibitors, towers, enemy inhibitors, enemy towers)
//	Kills:  (kills, enemy kills)
//	Joint:  (inhibitors, towers, kills, enemy inhibitors, enemy towers, enemy kills)
type Timeline struct {
	Towers *Counters
	Kills  *Counters
	Joint  *Counters
}

func NewTimeline() *Timeline {
	return &Timeline{Towers: NewCounters(), Kills: NewCounters(), Joint: NewCounters()}
}

// sideState is what one side has destroyed so far.
type sideState struct {
	inhibs map[string]bool // by lane; a respawned inhibitor is not recounted
	towers int
	kills  int
}

func (s *sideState) inhibitors() int { return len(s.inhibs) }

type observation struct {
	table *Counters
	key   FeatureKey
	win   bool
}

// replay buffers a match's observations until the whole stream validates.
type replay struct {
	t       *Timeline
	matchID int64
	winner  sideState
	loser   sideState
	pending []observation
}

// ObserveMatch replays rec. If any event is out of order or describes an
// impossible state, none of the match's observations are recorded.
func (t *Timeline) ObserveMatch(rec *models.MatchRecord) error {
	if !rec.HasTimeline {
		return nil
	}
	r := &replay{
		t:       t,
		matchID: rec.MatchID,
		winner:  sideState{inhibs: map[string]bool{}},
		loser:   sideState{inhibs: map[string]bool{}},
	}
	if err := r.run(rec); err != nil {
		return err
	}
	for _, o := range r.pending {
		o.table.Observe(o.key, o.win)
	}
	return nil
}

func (r *replay) run(rec *models.MatchRecord) error {
	r.mirror(r.t.Towers, Key(0, 0, 0, 0), Key(0, 0, 0, 0))
	r.mirror(r.t.Kills, Key(0, 0), Key(0, 0))
	r.joint()

	last := int64(-1)
	for _, e := range rec.Events {
		if e.Timestamp < last {
			return malformed(ErrEventOutOfOrder, "match %d: event at %d after %d", rec.MatchID, e.Timestamp, last)
		}
		last = e.Timestamp

		switch e.Type {
		case "BUILDING_KILL":
			if err := r.building(rec, e); err != nil {
				return err
			}
			if err := r.snapshotBuildings(); err != nil {
				return err
			}
		case "CHAMPION_KILL":
			if err := r.kill(rec, e); err != nil {
				return err
			}
			r.snapshotKills()
		}
	}
	return nil
}

// building credits the side opposing the building's owner.
func (r *replay) building(rec *models.MatchRecord, e models.Event) error {
	ownerWon, ok := rec.WinnerTeams[e.TeamID]
	if !ok {
		return malformed(ErrImpossibleState, "match %d: building of unknown team %d", rec.MatchID, e.TeamID)
	}
	destroyer := &r.winner
	if ownerWon {
		destroyer = &r.loser
	}

	switch e.BuildingType {
	case "INHIBITOR_BUILDING":
		switch e.LaneType {
		case "TOP_LANE", "MID_LANE", "BOT_LANE":
			destroyer.inhibs[e.LaneType] = true
		default:
			return malformed(ErrImpossibleState, "match %d: inhibitor in lane %q", rec.MatchID, e.LaneType)
		}
	case "TOWER_BUILDING":
		if e.TowerType != "FOUNTAIN_TURRET" {
			destroyer.towers++
		}
	default:
		return malformed(ErrImpossibleState, "match %d: unknown building %q", rec.MatchID, e.BuildingType)
	}
	return nil
}

// kill credits the killer's side. Kills by or of a non-player (id 0) are
// not counted but still produce a snapshot.
func (r *replay) kill(rec *models.MatchRecord, e models.Event) error {
	if e.KillerID == 0 || e.VictimID == 0 {
		return nil
	}
	won, ok := rec.WinnerTeams[rec.TeamOf(e.KillerID)]
	if !ok {
		return malformed(ErrImpossibleState, "match %d: killer %d not a participant", rec.MatchID, e.KillerID)
	}
	if won {
		r.winner.kills++
	} else {
		r.loser.kills++
	}
	return nil
}

func (r *replay) snapshotBuildings() error {
	w, l := &r.winner, &r.loser
	if w.inhibitors() > maxInhibitors || l.inhibitors() > maxInhibitors {
		return malformed(ErrImpossibleState, "match %d: %d inhibitors destroyed", r.matchID, max(w.inhibitors(), l.inhibitors()))
	}
	if w.towers > maxTowers || l.towers > maxTowers {
		return malformed(ErrImpossibleState, "match %d: %d towers destroyed", r.matchID, max(w.towers, l.towers))
	}
	r.mirror(r.t.Towers,
		Key(w.inhibitors(), w.towers, l.inhibitors(), l.towers),
		Key(l.inhibitors(), l.towers, w.inhibitors(), w.towers))
	r.joint()
	return nil
}

func (r *replay) snapshotKills() {
	w, l := &r.winner, &r.loser
	r.mirror(r.t.Kills, Key(w.kills, l.kills), Key(l.kills, w.kills))
	r.joint()
}

func (r *replay) joint() {
	w, l := &r.winner, &r.loser
	r.mirror(r.t.Joint,
		Key(w.inhibitors(), w.towers, w.kills, l.inhibitors(), l.towers, l.kills),
		Key(l.inhibitors(), l.towers, l.kills, w.inhibitors(), w.towers, w.kills))
}

func (r *replay) mirror(table *Counters, winnerKey, loserKey FeatureKey) {
	r.pending = append(r.pending,
		observation{table: table, key: winnerKey, win: true},
		observation{table: table, key: loserKey, win: false})
}
