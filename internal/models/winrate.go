package models

// WinrateEstimate is a smoothed win probability for one feature key.
// EmpiricalRate is nil when there are no samples.
type WinrateEstimate struct {
	Key           []string `json:"key"`
	Wins          uint64   `json:"wins"`
	Losses        uint64   `json:"losses"`
	Samples       uint64   `json:"samples"`
	EmpiricalRate *float64 `json:"empirical_rate"`
	PriorRate     float64  `json:"prior_rate"`
	ExpectedRate  float64  `json:"expected_rate"`
}

// ChampionEstimate is a player-level estimate for one position and champion.
type ChampionEstimate struct {
	Position   Position        `json:"position"`
	ChampionID int             `json:"champion_id"`
	Estimate   WinrateEstimate `json:"estimate"`
}

// Recommendations groups ranked estimates for one player.
type Recommendations struct {
	PlayerID   int64               `json:"player_id"`
	PlayerName string              `json:"player_name"`
	Tier       string              `json:"tier"`
	Ranked     []ChampionEstimate  `json:"ranked"`
	Climb      []ChampionEstimate  `json:"climb"`
	ByPosition []*ChampionEstimate `json:"by_position"`
	Practice   []*ChampionEstimate `json:"practice"`
}
