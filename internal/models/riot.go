package models

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// MatchPayload is the remote match document, optionally including its timeline.
type MatchPayload struct {
	MatchID               int64                 `json:"matchId"`
	MatchCreation         int64                 `json:"matchCreation"`
	MatchVersion          string                `json:"matchVersion"`
	QueueType             string                `json:"queueType"`
	Season                string                `json:"season"`
	Teams                 []MatchTeam           `json:"teams"`
	Participants          []MatchParticipant    `json:"participants"`
	ParticipantIdentities []ParticipantIdentity `json:"participantIdentities"`
	Timeline              *MatchTimeline        `json:"timeline,omitempty"`
}

type MatchTeam struct {
	TeamID int  `json:"teamId"`
	Winner bool `json:"winner"`
}

type MatchParticipant struct {
	ParticipantID             int    `json:"participantId"`
	ChampionID                int    `json:"championId"`
	TeamID                    int    `json:"teamId"`
	HighestAchievedSeasonTier string `json:"highestAchievedSeasonTier"`
	Stats                     struct {
		Winner bool `json:"winner"`
	} `json:"stats"`
	Timeline struct {
		Lane string `json:"lane"`
		Role string `json:"role"`
	} `json:"timeline"`
}

type ParticipantIdentity struct {
	ParticipantID int `json:"participantId"`
	Player        struct {
		SummonerID   FlexInt64 `json:"summonerId"`
		SummonerName string    `json:"summonerName"`
	} `json:"player"`
}

type MatchTimeline struct {
	FrameInterval int64           `json:"frameInterval"`
	Frames        []TimelineFrame `json:"frames"`
}

type TimelineFrame struct {
	Timestamp int64           `json:"timestamp"`
	Events    []TimelineEvent `json:"events"`
}

type TimelineEvent struct {
	EventType    string `json:"eventType"`
	Timestamp    int64  `json:"timestamp"`
	TeamID       int    `json:"teamId,omitempty"`
	LaneType     string `json:"laneType,omitempty"`
	BuildingType string `json:"buildingType,omitempty"`
	TowerType    string `json:"towerType,omitempty"`
	KillerID     int    `json:"killerId,omitempty"`
	VictimID     int    `json:"victimId,omitempty"`
}

// MatchList is a player's match history.
type MatchList struct {
	Matches    []MatchReference `json:"matches"`
	TotalGames int              `json:"totalGames"`
}

type MatchReference struct {
	MatchID   int64  `json:"matchId"`
	Champion  int    `json:"champion"`
	Lane      string `json:"lane"`
	Role      string `json:"role"`
	Queue     string `json:"queue"`
	Season    string `json:"season"`
	Timestamp int64  `json:"timestamp"`
}

// Summoner is a player profile as returned by a by-name lookup.
type Summoner struct {
	ID            FlexInt64 `json:"id"`
	Name          string    `json:"name"`
	ProfileIconID int       `json:"profileIconId"`
	SummonerLevel int       `json:"summonerLevel"`
	RevisionDate  int64     `json:"revisionDate"`
}

// LeagueEntry is one queue placement of a player.
type LeagueEntry struct {
	Queue   string `json:"queue"`
	Tier    string `json:"tier"`
	Name    string `json:"name"`
	Entries []struct {
		PlayerOrTeamID FlexInt64 `json:"playerOrTeamId"`
		Division       string    `json:"division"`
		LeaguePoints   int       `json:"leaguePoints"`
	} `json:"entries"`
}

// Tier is a player's placement in the ranked queue.
type Tier struct {
	PlayerID int64  `json:"player_id"`
	Tier     string `json:"tier"`
	Division string `json:"division"`
}

func DecodeMatch(data []byte) (*MatchPayload, error) {
	var m MatchPayload
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode match: %w", err)
	}
	return &m, nil
}

func DecodeMatchList(data []byte) (*MatchList, error) {
	var l MatchList
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode match list: %w", err)
	}
	return &l, nil
}

// DecodeSummoners decodes a by-name response keyed by normalized name.
func DecodeSummoners(data []byte) (map[string]Summoner, error) {
	var m map[string]Summoner
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode summoners: %w", err)
	}
	return m, nil
}

// DecodeTiers decodes a league-entry response and keeps the entry for queue.
// Players without an entry for that queue are absent from the result.
func DecodeTiers(data []byte, queue string) (map[int64]Tier, error) {
	var raw map[string][]LeagueEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode tiers: %w", err)
	}
	tiers := make(map[int64]Tier, len(raw))
	for _, entries := range raw {
		for _, e := range entries {
			if e.Queue != queue {
				continue
			}
			for _, pe := range e.Entries {
				id := int64(pe.PlayerOrTeamID)
				tiers[id] = Tier{PlayerID: id, Tier: e.Tier, Division: pe.Division}
			}
		}
	}
	return tiers, nil
}

func EncodeTier(t Tier) ([]byte, error) {
	return json.Marshal(t)
}

func DecodeTier(data []byte) (Tier, error) {
	var t Tier
	if err := json.Unmarshal(data, &t); err != nil {
		return Tier{}, fmt.Errorf("decode tier: %w", err)
	}
	return t, nil
}
