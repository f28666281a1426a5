package fetcher

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lolfu/winrate-engine/internal/cache"
	"github.com/lolfu/winrate-engine/internal/riot"
)

type fakeCaller struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (f *fakeCaller) Call(ctx context.Context, path string, params url.Values) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	if err, ok := f.errs[path]; ok {
		return nil, err
	}
	if body, ok := f.responses[path]; ok {
		return []byte(body), nil
	}
	return nil, riot.ErrNotFound
}

func (f *fakeCaller) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func newTestFetcher(t *testing.T, api Caller) *Fetcher {
	t.Helper()
	store, err := cache.NewStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	mem, err := cache.NewMemory(16, store)
	if err != nil {
		t.Fatal(err)
	}
	return New(api, mem, cache.NewExpirableTTL(64, time.Hour), Config{
		Region:       "na",
		QueueType:    "RANKED_SOLO_5x5",
		MatchListTTL: time.Minute,
	}, zap.NewNop())
}

const matchBody = `{
	"matchId": 7, "matchCreation": 1436000000000, "matchVersion": "5.13.0.1", "queueType": "RANKED_SOLO_5x5",
	"teams": [{"teamId": 100, "winner": true}, {"teamId": 200, "winner": false}],
	"participants": [
		{"participantId": 2, "championId": 99, "teamId": 200, "stats": {"winner": false}, "timeline": {"lane": "TOP", "role": "SOLO"}},
		{"participantId": 1, "championId": 51, "teamId": 100, "stats": {"winner": true}, "timeline": {"lane": "TOP", "role": "SOLO"}}
	],
	"participantIdentities": [
		{"participantId": 1, "player": {"summonerId": 11}},
		{"participantId": 2, "player": {"summonerId": "12"}}
	],
	"timeline": {"frames": [{"timestamp": 0, "events": [{"eventType": "CHAMPION_KILL", "timestamp": 100, "killerId": 1, "victimId": 2}]}]}
}`

func TestFetchMatchCachesForever(t *testing.T) {
	api := &fakeCaller{responses: map[string]string{riot.MatchPath("na", 7): matchBody}}
	f := newTestFetcher(t, api)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m, err := f.FetchMatch(ctx, 7)
		if err != nil {
			t.Fatalf("FetchMatch: %v", err)
		}
		if m.MatchID != 7 || len(m.Participants) != 2 || m.Participants[0].PlayerID != 11 {
			t.Fatalf("unexpected record: %+v", m)
		}
		if !m.HasTimeline || len(m.Events) != 1 {
			t.Errorf("timeline not decoded: %+v", m.Events)
		}
	}
	if n := api.count(riot.MatchPath("na", 7)); n != 1 {
		t.Errorf("remote called %d times, want 1", n)
	}
}

func TestFetchMatchNotFound(t *testing.T) {
	f := newTestFetcher(t, &fakeCaller{})
	_, err := f.FetchMatch(context.Background(), 42)
	if !errors.Is(err, riot.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFetchMatchListRefreshesAfterTTL(t *testing.T) {
	path := riot.MatchListPath("na", 5)
	api := &fakeCaller{responses: map[string]string{path: `{"matches":[{"matchId":1},{"matchId":2}],"totalGames":2}`}}
	f := newTestFetcher(t, api)
	ctx := context.Background()

	l, err := f.FetchMatchList(ctx, 5)
	if err != nil || len(l.Matches) != 2 {
		t.Fatalf("FetchMatchList = %+v, %v", l, err)
	}
	if _, err := f.FetchMatchList(ctx, 5); err != nil {
		t.Fatal(err)
	}
	if n := api.count(path); n != 1 {
		t.Fatalf("remote called %d times within ttl, want 1", n)
	}

	f.cfg.MatchListTTL = time.Nanosecond
	f.ttl = nil
	time.Sleep(time.Millisecond)
	if _, err := f.FetchMatchList(ctx, 5); err != nil {
		t.Fatal(err)
	}
	if n := api.count(path); n != 2 {
		t.Errorf("remote called %d times after expiry, want 2", n)
	}
}

func TestFetchPlayerByName(t *testing.T) {
	api := &fakeCaller{responses: map[string]string{
		riot.SummonerByNamePath("na", "wudini"): `{"wudini":{"id":43669030,"name":"Wu Dini"}}`,
	}}
	f := newTestFetcher(t, api)

	s, err := f.FetchPlayerByName(context.Background(), " Wu Dini")
	if err != nil {
		t.Fatalf("FetchPlayerByName: %v", err)
	}
	if int64(s.ID) != 43669030 {
		t.Errorf("id = %d", s.ID)
	}

	if _, err := f.FetchPlayerByName(context.Background(), "nobody"); !errors.Is(err, riot.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFetchPlayerTiersBatchesAndCaches(t *testing.T) {
	ids := make([]int64, 12)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	first := riot.LeagueEntryPath("na", ids[:10]...)
	api := &fakeCaller{
		responses: map[string]string{
			first: `{
				"3": [{"queue": "RANKED_SOLO_5x5", "tier": "GOLD", "entries": [{"playerOrTeamId": "3", "division": "II"}]}],
				"4": [{"queue": "RANKED_TEAM_5x5", "tier": "PLATINUM", "entries": [{"playerOrTeamId": "4", "division": "I"}]}]
			}`,
		},
	}
	f := newTestFetcher(t, api)
	ctx := context.Background()

	tiers, err := f.FetchPlayerTiers(ctx, append(ids, 3))
	if err != nil {
		t.Fatalf("FetchPlayerTiers: %v", err)
	}
	if tiers[3] != "GOLD" {
		t.Errorf("tier[3] = %q, want GOLD", tiers[3])
	}
	if tiers[4] != "?" || tiers[12] != "?" {
		t.Errorf("unranked players should be unknown: %q %q", tiers[4], tiers[12])
	}
	if n := api.count("/api/lol/na/v2.5/league"); n != 2 {
		t.Errorf("league lookups = %d, want 2 batches", n)
	}

	if _, err := f.FetchPlayerTiers(ctx, ids); err != nil {
		t.Fatal(err)
	}
	if n := api.count("/api/lol/na/v2.5/league"); n != 2 {
		t.Errorf("cached tiers were fetched again: %d lookups", n)
	}
}

func TestFetchPlayerTiersFatal(t *testing.T) {
	path := riot.LeagueEntryPath("na", 1)
	api := &fakeCaller{errs: map[string]error{path: &riot.StatusError{StatusCode: 403, Path: path}}}
	f := newTestFetcher(t, api)
	if _, err := f.FetchPlayerTiers(context.Background(), []int64{1}); !errors.Is(err, riot.ErrFatal) {
		t.Errorf("err = %v, want ErrFatal", err)
	}
}
