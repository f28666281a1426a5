package riot

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MaxIDsPerLookup bounds batched by-id and by-name lookups.
const MaxIDsPerLookup = 10

func MatchPath(region string, matchID int64) string {
	return fmt.Sprintf("/api/lol/%s/v2.2/match/%d", region, matchID)
}

// MatchParams requests the event timeline along with the match.
func MatchParams(includeTimeline bool) url.Values {
	v := url.Values{}
	if includeTimeline {
		v.Set("includeTimeline", "true")
	}
	return v
}

func MatchListPath(region string, playerID int64) string {
	return fmt.Sprintf("/api/lol/%s/v2.2/matchlist/by-summoner/%d", region, playerID)
}

func SummonerByNamePath(region string, names ...string) string {
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = url.PathEscape(n)
	}
	return fmt.Sprintf("/api/lol/%s/v1.4/summoner/by-name/%s", region, strings.Join(escaped, ","))
}

func LeagueEntryPath(region string, playerIDs ...int64) string {
	ids := make([]string, len(playerIDs))
	for i, id := range playerIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("/api/lol/%s/v2.5/league/by-summoner/%s/entry", region, strings.Join(ids, ","))
}
