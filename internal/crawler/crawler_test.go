package crawler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lolfu/winrate-engine/internal/models"
	"github.com/lolfu/winrate-engine/internal/riot"
	"github.com/lolfu/winrate-engine/internal/stats"
)

var roles = [5][2]string{{"TOP", "SOLO"}, {"JUNGLE", "NONE"}, {"MIDDLE", "SOLO"}, {"BOTTOM", "DUO_CARRY"}, {"BOTTOM", "DUO_SUPPORT"}}

// graphSource serves a closed graph of matches and players from memory.
type graphSource struct {
	mu          sync.Mutex
	matches     map[int64]*models.MatchRecord
	playerGames map[int64][]int64
	matchCalls  map[int64]int
	listCalls   map[int64]int
	delay       time.Duration
	failOnce    map[int64]error
}

func newGraphSource() *graphSource {
	return &graphSource{
		matches:     map[int64]*models.MatchRecord{},
		playerGames: map[int64][]int64{},
		matchCalls:  map[int64]int{},
		listCalls:   map[int64]int{},
	}
}

// addMatch creates a match between ten players; team 100 wins.
func (g *graphSource) addMatch(id int64, players [10]int64) {
	rec := &models.MatchRecord{
		MatchID:     id,
		Version:     "5.13.0.1",
		QueueType:   "RANKED_SOLO_5x5",
		WinnerTeams: map[int]bool{100: true, 200: false},
		Identities:  map[int]int64{},
		HasTimeline: true,
		Events:      []models.Event{{Timestamp: 10, Type: "CHAMPION_KILL", KillerID: 1, VictimID: 6}},
	}
	for i, pid := range players {
		team := 100
		if i >= 5 {
			team = 200
		}
		rec.Identities[i+1] = pid
		rec.Participants = append(rec.Participants, models.Participant{
			ParticipantID: i + 1,
			PlayerID:      pid,
			ChampionID:    int(pid % 50),
			TeamID:        team,
			Lane:          roles[i%5][0],
			Role:          roles[i%5][1],
		})
		g.playerGames[pid] = append(g.playerGames[pid], id)
	}
	g.matches[id] = rec
}

func (g *graphSource) FetchMatch(ctx context.Context, id int64) (*models.MatchRecord, error) {
	g.mu.Lock()
	g.matchCalls[id]++
	m, ok := g.matches[id]
	failErr := g.failOnce[id]
	delete(g.failOnce, id)
	g.mu.Unlock()
	if failErr != nil {
		return nil, failErr
	}
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, fmt.Errorf("match %d: %w", id, riot.ErrNotFound)
	}
	return m, nil
}

func (g *graphSource) FetchMatchList(ctx context.Context, playerID int64) (*models.MatchList, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls[playerID]++
	l := &models.MatchList{}
	for _, id := range g.playerGames[playerID] {
		l.Matches = append(l.Matches, models.MatchReference{MatchID: id, Queue: "RANKED_SOLO_5x5"})
	}
	return l, nil
}

func (g *graphSource) FetchPlayerTiers(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := map[int64]string{}
	for _, id := range ids {
		out[id] = "GOLD"
	}
	return out, nil
}

// CachedMatch serves the graph as a local cache without counting a fetch.
func (g *graphSource) CachedMatch(id int64) (*models.MatchRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.matches[id]
	return m, ok
}

type rowRecorder struct {
	mu   sync.Mutex
	rows []models.LedgerRow
}

func (r *rowRecorder) Enqueue(row models.LedgerRow) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
	return true
}

func players(base int64) [10]int64 {
	var p [10]int64
	for i := range p {
		p[i] = base + int64(i)
	}
	return p
}

func newTestCrawler(src Source, ledger Ledger, width int) (*Crawler, *stats.Suite) {
	suite := stats.NewSuite()
	return New(src, ledger, suite, Config{Width: width, QueueType: "RANKED_SOLO_5x5", Logger: zap.NewNop()}), suite
}

func TestDiscoveredPlayerFetchedOnce(t *testing.T) {
	g := newGraphSource()
	a := players(100)
	b := players(200)
	a[0], b[0] = 99, 99
	g.addMatch(1, a)
	g.addMatch(2, b)

	c, _ := newTestCrawler(g, &rowRecorder{}, 8)
	c.Seed(nil, []int64{1, 2})
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if n := g.listCalls[99]; n != 1 {
		t.Errorf("player 99 fetched %d times, want 1", n)
	}
	for id, n := range g.matchCalls {
		if n != 1 {
			t.Errorf("match %d fetched %d times", id, n)
		}
	}
	if s := c.Status().Players; s.Known != 19 || s.DoneOK != 19 {
		t.Errorf("players = %+v, want 19 known and done", s)
	}
}

func TestNotFoundMatchDoesNotHaltBatch(t *testing.T) {
	g := newGraphSource()
	g.addMatch(1, players(100))
	ledger := &rowRecorder{}

	c, suite := newTestCrawler(g, ledger, 4)
	c.Seed(nil, []int64{42, 1})
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if s := c.Frontier().State(models.MatchKey(42)); s != StateDoneError {
		t.Errorf("match 42 state = %s, want done_error", s)
	}
	if s := c.Frontier().State(models.MatchKey(1)); s != StateDoneOK {
		t.Errorf("match 1 state = %s, want done_ok", s)
	}
	if len(ledger.rows) != 1 || ledger.rows[0].MatchID != 1 {
		t.Errorf("ledger rows = %+v", ledger.rows)
	}
	if g.matchCalls[42] != 1 {
		t.Errorf("match 42 fetched %d times, want 1", g.matchCalls[42])
	}
	if suite.Population.Counters().Len() != 10 {
		t.Errorf("population keys = %d, want 10", suite.Population.Counters().Len())
	}
}

func buildGraph() *graphSource {
	g := newGraphSource()
	// overlapping rosters link the matches into one component
	for m := int64(0); m < 12; m++ {
		g.addMatch(1000+m, players(10+m*5))
	}
	return g
}

func TestCrawlIsConfluent(t *testing.T) {
	var snapshots [2][]stats.Entry
	for run, width := range []int{1, 16} {
		g := buildGraph()
		c, suite := newTestCrawler(g, &rowRecorder{}, width)
		c.Seed([]int64{10}, nil)
		if err := c.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		if s := c.Status().Matches; s.DoneOK != 12 {
			t.Fatalf("run %d processed %d matches, want 12", run, s.DoneOK)
		}
		snapshots[run] = append(suite.Population.Counters().Snapshot(), suite.Timeline.Kills.Snapshot()...)
	}

	if len(snapshots[0]) != len(snapshots[1]) {
		t.Fatalf("runs differ: %d vs %d keys", len(snapshots[0]), len(snapshots[1]))
	}
	for i := range snapshots[0] {
		a, b := snapshots[0][i], snapshots[1][i]
		if a.Key.String() != b.Key.String() || a.Counter != b.Counter {
			t.Errorf("entry %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func TestFilteredMatchProducesNoRow(t *testing.T) {
	g := newGraphSource()
	g.addMatch(1, players(100))
	g.matches[1].QueueType = "NORMAL_5x5_BLIND"
	ledger := &rowRecorder{}

	c, _ := newTestCrawler(g, ledger, 2)
	c.Seed(nil, []int64{1})
	c.Run(context.Background())

	if c.Frontier().State(models.MatchKey(1)) != StateDoneOK {
		t.Error("filtered match should be done")
	}
	if len(ledger.rows) != 0 {
		t.Errorf("filtered match wrote %d rows", len(ledger.rows))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	g := buildGraph()
	g.delay = 50 * time.Millisecond
	c, _ := newTestCrawler(g, &rowRecorder{}, 2)
	c.Seed(nil, []int64{1000, 1001, 1002, 1003})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Run(ctx); err == nil {
		t.Fatal("expected context error")
	}

	s := c.Status().Matches
	if s.InProgress != 0 {
		t.Errorf("in progress after Run returned: %d", s.InProgress)
	}
	if s.DoneError != 0 {
		t.Errorf("interrupted matches marked failed: %d", s.DoneError)
	}
	if s.Queued != 4 {
		t.Errorf("queued = %d, want 4", s.Queued)
	}
}

func TestResumeFromLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match.csv")
	row := models.LedgerRow{MatchID: 1, Version: "5.13", CreatedAt: 1}
	for i := range row.Winners {
		row.Winners[i] = models.LedgerSlot{Present: true, PlayerID: int64(10 + i), ChampionID: 51, Tier: "GOLD"}
	}
	content := "match_id,version,creation\n" + row.Format() + "\n2,garbage\n"
	os.WriteFile(path, []byte(content), 0o644)

	g := newGraphSource()
	g.addMatch(1, players(10))
	c, suite := newTestCrawler(g, &rowRecorder{}, 4)

	n, err := c.Resume(path)
	if err != nil || n != 2 {
		t.Fatalf("Resume = %d, %v; want 2 matches", n, err)
	}
	if c.Frontier().State(models.MatchKey(2)) != StateDoneOK {
		t.Error("unparseable row should still mark its match known")
	}
	if _, players := c.Frontier().Pending(); players != 5 {
		t.Errorf("queued players = %d, want 5", players)
	}
	if suite.Population.Counter("GOLD", models.PositionTop, 51).Wins != 1 {
		t.Error("resumed row not aggregated")
	}

	// a second resume neither restores nor aggregates again
	if n, _ := c.Resume(path); n != 0 {
		t.Errorf("second Resume restored %d", n)
	}
	if suite.Population.Counter("GOLD", models.PositionTop, 51).Wins != 1 {
		t.Error("resumed row aggregated twice")
	}

	c.Run(context.Background())
	if g.matchCalls[1] != 0 {
		t.Error("resumed match was fetched again")
	}
}

func TestTransientFailureIsRequeued(t *testing.T) {
	g := newGraphSource()
	g.addMatch(1, players(10))
	g.failOnce = map[int64]error{
		1: fmt.Errorf("match 1: %w: %w", riot.ErrServiceUnavailable, context.Canceled),
	}

	c, _ := newTestCrawler(g, &rowRecorder{}, 4)
	c.Seed(nil, []int64{1})
	if err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st := c.Frontier().State(models.MatchKey(1)); st != StateDoneOK {
		t.Errorf("match state = %v, want done_ok", st)
	}
	if g.matchCalls[1] != 2 {
		t.Errorf("match fetched %d times, want 2", g.matchCalls[1])
	}
}

func TestResumeMatchesFreshCrawl(t *testing.T) {
	g := newGraphSource()
	g.addMatch(1, players(10))

	ledger := &rowRecorder{}
	fresh, freshSuite := newTestCrawler(g, ledger, 4)
	fresh.Seed(nil, []int64{1})
	if err := fresh.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ledger.rows) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(ledger.rows))
	}
	if freshSuite.Timeline.Kills.Len() == 0 {
		t.Fatal("fresh crawl recorded no kill observations")
	}

	path := filepath.Join(t.TempDir(), "match.csv")
	if err := os.WriteFile(path, []byte(ledger.rows[0].Format()+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	resumed, resumedSuite := newTestCrawler(g, &rowRecorder{}, 4)
	resumed.cfg.Matches = g
	if n, err := resumed.Resume(path); err != nil || n != 1 {
		t.Fatalf("Resume = %d, %v", n, err)
	}

	freshTables, resumedTables := freshSuite.Tables(), resumedSuite.Tables()
	for name, want := range freshTables {
		if got := resumedTables[name].Snapshot(); !reflect.DeepEqual(got, want.Snapshot()) {
			t.Errorf("%s after resume = %v, want %v", name, got, want.Snapshot())
		}
	}

	var kills bytes.Buffer
	if err := stats.WriteCSV(&kills, resumedSuite.Timeline.Kills, 0); err != nil {
		t.Fatal(err)
	}
	if kills.Len() == 0 {
		t.Error("kill table export empty after resume")
	}
}

type fakeIndex []int64

func (f fakeIndex) Walk(bucket string, kind models.EntityKind, fn func(models.EntityKey) error) error {
	for _, id := range f {
		if err := fn(models.MatchKey(id)); err != nil {
			return err
		}
	}
	return nil
}

func TestRunContinuous(t *testing.T) {
	g := buildGraph()
	c, _ := newTestCrawler(g, &rowRecorder{}, 4)
	c.cfg.CycleInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cycles := 0
	err := c.RunContinuous(ctx, func(ctx context.Context) error {
		cycles++
		if cycles == 3 {
			cancel()
		}
		_, err := c.SeedFromCache(fakeIndex{1000})
		c.Seed([]int64{10}, nil)
		return err
	})
	if err != nil {
		t.Fatalf("RunContinuous: %v", err)
	}
	if cycles != 3 {
		t.Errorf("cycles = %d", cycles)
	}
	for id, n := range g.matchCalls {
		if n != 1 {
			t.Errorf("match %d fetched %d times across cycles", id, n)
		}
	}
	if g.listCalls[10] != 2 {
		t.Errorf("player 10 match list fetched %d times, want once per completed cycle", g.listCalls[10])
	}
}
