package stats

import (
	"time"

	"github.com/lolfu/winrate-engine/internal/models"
)

var standardRoles = [5][2]string{
	{"TOP", "SOLO"},
	{"JUNGLE", "NONE"},
	{"MIDDLE", "SOLO"},
	{"BOTTOM", "DUO_CARRY"},
	{"BOTTOM", "DUO_SUPPORT"},
}

// testMatch builds a ten player match in which team 100 wins. Participant
// ids 1-5 play for team 100 and 6-10 for team 200, in position order, with
// player id 1000+participant and champion id participant.
func testMatch(id int64, events ...models.Event) *models.MatchRecord {
	rec := &models.MatchRecord{
		MatchID:     id,
		CreatedAt:   time.UnixMilli(1436000000000).UTC(),
		Version:     "5.13.0.1",
		QueueType:   "RANKED_SOLO_5x5",
		WinnerTeams: map[int]bool{100: true, 200: false},
		Identities:  map[int]int64{},
		Events:      events,
		HasTimeline: events != nil,
	}
	for pid := 1; pid <= 10; pid++ {
		team := 100
		if pid > 5 {
			team = 200
		}
		role := standardRoles[(pid-1)%5]
		rec.Identities[pid] = int64(1000 + pid)
		rec.Participants = append(rec.Participants, models.Participant{
			ParticipantID: pid,
			PlayerID:      int64(1000 + pid),
			ChampionID:    pid,
			TeamID:        team,
			Winner:        team == 100,
			Lane:          role[0],
			Role:          role[1],
			Tier:          models.UnknownTier,
		})
	}
	return rec
}
