package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Position is a player's role within a team.
type Position string

const (
	PositionTop     Position = "TOP"
	PositionJungle  Position = "JUNGLE"
	PositionMid     Position = "MID"
	PositionADC     Position = "ADC"
	PositionSupport Position = "SUPPORT"
)

// Positions is the canonical ordering used by the ledger and rankings.
var Positions = []Position{PositionTop, PositionJungle, PositionMid, PositionADC, PositionSupport}

func (p Position) Index() int {
	for i, q := range Positions {
		if q == p {
			return i
		}
	}
	return -1
}

// ParsePosition accepts the canonical names case-insensitively.
func ParsePosition(s string) (Position, error) {
	for _, p := range Positions {
		if strings.EqualFold(string(p), s) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown position %q", s)
}

// UnknownTier marks a player without a ranked placement.
const UnknownTier = "?"

var ErrIncompleteMatch = errors.New("incomplete match record")

// Participant is one player slot within a normalized match.
type Participant struct {
	ParticipantID int    `json:"participant_id"`
	PlayerID      int64  `json:"player_id"`
	ChampionID    int    `json:"champion_id"`
	TeamID        int    `json:"team_id"`
	Winner        bool   `json:"winner"`
	Lane          string `json:"lane"`
	Role          string `json:"role"`
	Tier          string `json:"tier"`
}

// Event is one entry of the flattened, ordered match timeline.
type Event struct {
	Timestamp    int64  `json:"timestamp"`
	Type         string `json:"type"`
	TeamID       int    `json:"team_id,omitempty"`
	LaneType     string `json:"lane_type,omitempty"`
	BuildingType string `json:"building_type,omitempty"`
	TowerType    string `json:"tower_type,omitempty"`
	KillerID     int    `json:"killer_id,omitempty"`
	VictimID     int    `json:"victim_id,omitempty"`
}

// MatchRecord is the normalized view of a fetched match.
type MatchRecord struct {
	MatchID      int64         `json:"match_id"`
	CreatedAt    time.Time     `json:"created_at"`
	Version      string        `json:"version"`
	QueueType    string        `json:"queue_type"`
	Season       string        `json:"season"`
	WinnerTeams  map[int]bool  `json:"winner_teams"`
	Participants []Participant `json:"participants"`
	Identities   map[int]int64 `json:"identities"`
	Events       []Event       `json:"events,omitempty"`
	HasTimeline  bool          `json:"has_timeline"`
}

// NormalizeMatch flattens a remote payload. Events keep the order in which
// the remote service delivered them; ordering is validated by consumers.
func NormalizeMatch(p *MatchPayload) (*MatchRecord, error) {
	if p == nil {
		return nil, ErrIncompleteMatch
	}
	if len(p.Participants) == 0 || len(p.Teams) == 0 {
		return nil, fmt.Errorf("match %d: %w", p.MatchID, ErrIncompleteMatch)
	}

	rec := &MatchRecord{
		MatchID:     p.MatchID,
		CreatedAt:   time.UnixMilli(p.MatchCreation).UTC(),
		Version:     p.MatchVersion,
		QueueType:   p.QueueType,
		Season:      p.Season,
		WinnerTeams: make(map[int]bool, len(p.Teams)),
		Identities:  make(map[int]int64, len(p.ParticipantIdentities)),
	}
	for _, t := range p.Teams {
		rec.WinnerTeams[t.TeamID] = t.Winner
	}
	for _, id := range p.ParticipantIdentities {
		rec.Identities[id.ParticipantID] = int64(id.Player.SummonerID)
	}

	rec.Participants = make([]Participant, 0, len(p.Participants))
	for _, mp := range p.Participants {
		rec.Participants = append(rec.Participants, Participant{
			ParticipantID: mp.ParticipantID,
			PlayerID:      rec.Identities[mp.ParticipantID],
			ChampionID:    mp.ChampionID,
			TeamID:        mp.TeamID,
			Winner:        mp.Stats.Winner,
			Lane:          mp.Timeline.Lane,
			Role:          mp.Timeline.Role,
			Tier:          UnknownTier,
		})
	}
	sort.Slice(rec.Participants, func(i, j int) bool {
		return rec.Participants[i].ParticipantID < rec.Participants[j].ParticipantID
	})

	if p.Timeline != nil {
		rec.HasTimeline = true
		for _, f := range p.Timeline.Frames {
			for _, e := range f.Events {
				rec.Events = append(rec.Events, Event{
					Timestamp:    e.Timestamp,
					Type:         e.EventType,
					TeamID:       e.TeamID,
					LaneType:     e.LaneType,
					BuildingType: e.BuildingType,
					TowerType:    e.TowerType,
					KillerID:     e.KillerID,
					VictimID:     e.VictimID,
				})
			}
		}
	}

	return rec, nil
}

// PlayerIDs returns the distinct, non-zero player ids of the match.
func (m *MatchRecord) PlayerIDs() []int64 {
	seen := make(map[int64]struct{}, len(m.Participants))
	ids := make([]int64, 0, len(m.Participants))
	for _, p := range m.Participants {
		if p.PlayerID == 0 {
			continue
		}
		if _, ok := seen[p.PlayerID]; ok {
			continue
		}
		seen[p.PlayerID] = struct{}{}
		ids = append(ids, p.PlayerID)
	}
	return ids
}

// Participant returns the slot played by playerID.
func (m *MatchRecord) Participant(playerID int64) (Participant, bool) {
	for _, p := range m.Participants {
		if p.PlayerID == playerID {
			return p, true
		}
	}
	return Participant{}, false
}

// TeamOf returns the team of a participant id, or zero when unknown.
func (m *MatchRecord) TeamOf(participantID int) int {
	for _, p := range m.Participants {
		if p.ParticipantID == participantID {
			return p.TeamID
		}
	}
	return 0
}
