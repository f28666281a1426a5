package stats

import (
	"github.com/lolfu/winrate-engine/internal/models"
)

// BuildLedgerRow assigns every participant of rec to its side and position.
// Participants whose position is ambiguous, or who share a position with a
// teammate, leave their slot empty and are reported in excluded.
func BuildLedgerRow(rec *models.MatchRecord, tiers map[int64]string, policy PositionPolicy) (row models.LedgerRow, excluded int, err error) {
	row = models.LedgerRow{
		MatchID:   rec.MatchID,
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt.UnixMilli(),
	}

	winners := 0
	for _, w := range rec.WinnerTeams {
		if w {
			winners++
		}
	}
	if winners != 1 || len(rec.WinnerTeams) != 2 {
		return row, 0, malformed(ErrImpossibleState, "match %d has %d winning teams of %d", rec.MatchID, winners, len(rec.WinnerTeams))
	}

	var taken [2][5]int
	for _, p := range rec.Participants {
		pos, err := policy.Infer(p.Lane, p.Role, p.ChampionID)
		if err != nil {
			excluded++
			continue
		}
		side := 1
		if rec.WinnerTeams[p.TeamID] {
			side = 0
		}
		i := pos.Index()
		taken[side][i]++

		tier := models.UnknownTier
		if t, ok := tiers[p.PlayerID]; ok && t != "" {
			tier = t
		}
		slot := models.LedgerSlot{Present: true, PlayerID: p.PlayerID, ChampionID: p.ChampionID, Tier: tier}
		if side == 0 {
			row.Winners[i] = slot
		} else {
			row.Losers[i] = slot
		}
	}

	for side := range taken {
		for i, n := range taken[side] {
			if n < 2 {
				continue
			}
			excluded += n
			if side == 0 {
				row.Winners[i] = models.LedgerSlot{}
			} else {
				row.Losers[i] = models.LedgerSlot{}
			}
		}
	}
	return row, excluded, nil
}
