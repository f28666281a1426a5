// Package crawler expands the frontier of known matches and players
// breadth-first, feeding resolved matches to the ledger and the aggregators.
package crawler

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/lolfu/winrate-engine/internal/cache"
	"github.com/lolfu/winrate-engine/internal/models"
	"github.com/lolfu/winrate-engine/internal/riot"
	"github.com/lolfu/winrate-engine/internal/stats"
)

// Source resolves the entities the crawler expands. *fetcher.Fetcher
// implements it.
type Source interface {
	FetchMatch(ctx context.Context, matchID int64) (*models.MatchRecord, error)
	FetchMatchList(ctx context.Context, playerID int64) (*models.MatchList, error)
	FetchPlayerTiers(ctx context.Context, playerIDs []int64) (map[int64]string, error)
}

// Ledger receives every resolved match. *worker.Pool implements it.
type Ledger interface {
	Enqueue(row models.LedgerRow) bool
}

// MatchIndex lists cached matches. *cache.Store implements it.
type MatchIndex interface {
	Walk(bucket string, kind models.EntityKind, fn func(models.EntityKey) error) error
}

// Config configures a Crawler.
type Config struct {
	Width         int
	QueueType     string
	VersionPrefix string
	CycleInterval time.Duration
	Policy        stats.PositionPolicy
	// Matches supplies the cached records of resumed matches so their
	// timelines are replayed. Without it only ledger rows are aggregated.
	Matches MatchCache
	Logger  *zap.Logger
}

// Status is a point-in-time view of a crawl.
type Status struct {
	RunID     string     `json:"run_id"`
	StartedAt time.Time  `json:"started_at"`
	Cycle     uint64     `json:"cycle"`
	Matches   KindStatus `json:"matches"`
	Players   KindStatus `json:"players"`
}

// Crawler processes the frontier in bounded batches. Each batch runs with at
// most Width concurrent workers and is awaited before the next is taken, so
// entities discovered by a batch are processed in the following ones.
type Crawler struct {
	source   Source
	ledger   Ledger
	suite    *stats.Suite
	frontier *Frontier
	cfg      Config
	runID    uuid.UUID
	started  time.Time
	cycle    atomic.Uint64
	logger   *zap.SugaredLogger
}

func New(source Source, ledger Ledger, suite *stats.Suite, cfg Config) *Crawler {
	if cfg.Width <= 0 {
		cfg.Width = 100
	}
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = time.Minute
	}
	if cfg.Policy.Carry == nil {
		cfg.Policy = stats.DefaultPositionPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	id := uuid.New()
	return &Crawler{
		source:   source,
		ledger:   ledger,
		suite:    suite,
		frontier: NewFrontier(),
		cfg:      cfg,
		runID:    id,
		started:  time.Now(),
		logger:   cfg.Logger.Sugar().With("run_id", id.String()),
	}
}

func (c *Crawler) Frontier() *Frontier { return c.frontier }

func (c *Crawler) Status() Status {
	return Status{
		RunID:     c.runID.String(),
		StartedAt: c.started,
		Cycle:     c.cycle.Load(),
		Matches:   c.frontier.Status(models.KindMatch),
		Players:   c.frontier.Status(models.KindPlayer),
	}
}

// Seed queues players and matches that are not yet known.
func (c *Crawler) Seed(playerIDs, matchIDs []int64) {
	for _, id := range playerIDs {
		c.frontier.DiscoverPlayer(id)
	}
	for _, id := range matchIDs {
		c.frontier.DiscoverMatch(id)
	}
}

// Resume restores the matches recorded in the ledger at path as processed
// and queues their players. Rows of matches not previously known are fed to
// the aggregators. It returns the number of restored matches.
func (c *Crawler) Resume(path string) (int, error) {
	restored := 0
	err := ScanLedger(path, func(matchID int64, row *models.LedgerRow) error {
		if c.frontier.Restore(models.MatchKey(matchID)) {
			restored++
			if row != nil {
				c.observeRestored(matchID, *row)
			}
		}
		if row != nil {
			for _, id := range row.PlayerIDs() {
				c.frontier.DiscoverPlayer(id)
			}
		}
		return nil
	})
	return restored, err
}

// observeRestored aggregates a ledger row, replaying the cached match when
// one is available so the timeline tables match a fresh crawl.
func (c *Crawler) observeRestored(matchID int64, row models.LedgerRow) {
	obs := stats.Observation{Row: row}
	if c.cfg.Matches != nil {
		if m, ok := c.cfg.Matches.CachedMatch(matchID); ok {
			obs.Match = m
		}
	}
	if err := c.suite.Observe(obs); err != nil {
		c.logger.Debugw("Restored match partially rejected", "match_id", matchID, "error", err)
	}
}

// SeedFromCache queues every cached match that is not yet known.
func (c *Crawler) SeedFromCache(index MatchIndex) (int, error) {
	n := 0
	err := index.Walk(cache.BucketMatch, models.KindMatch, func(k models.EntityKey) error {
		if c.frontier.Discover(k) {
			n++
		}
		return nil
	})
	return n, err
}

// Run processes batches until the queue is empty or ctx is done. On
// cancellation no new batch is started and the current one is awaited.
func (c *Crawler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := c.frontier.TakeBatch(c.cfg.Width)
		if len(batch) == 0 {
			return nil
		}

		p := pool.New().WithMaxGoroutines(c.cfg.Width)
		for _, key := range batch {
			p.Go(func() { c.process(ctx, key) })
		}
		p.Wait()

		c.reportProgress()
	}
}

// RunContinuous crawls in cycles until ctx is done. Each cycle forgets the
// known players, calls reseed to rediscover work, and crawls the resulting
// closure. Matches stay known for the life of the process.
func (c *Crawler) RunContinuous(ctx context.Context, reseed func(context.Context) error) error {
	for {
		cycle := c.cycle.Add(1)
		if cycle > 1 {
			c.frontier.ForgetPlayers()
		}
		if err := reseed(ctx); err != nil {
			return err
		}
		c.logger.Infow("Crawl cycle started", "cycle", cycle)

		if err := c.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.CycleInterval):
		}
	}
}

func (c *Crawler) process(ctx context.Context, key models.EntityKey) {
	var outcome string
	switch key.Kind {
	case models.KindMatch:
		outcome = c.processMatch(ctx, key.ID)
	case models.KindPlayer:
		outcome = c.processPlayer(ctx, key.ID)
	default:
		outcome = "unsupported"
	}

	switch outcome {
	case "interrupted":
		c.frontier.Requeue(key)
		return
	case "ok", "filtered":
		c.frontier.Finish(key, true)
	default:
		c.frontier.Finish(key, false)
	}
	crawlEntities.WithLabelValues(key.Kind.String(), outcome).Inc()
}

// failure classifies a fetch error and logs it. A transient error means the
// retries were cut off, possibly by another caller sharing the fetch, so the
// entity is requeued rather than failed.
func (c *Crawler) failure(ctx context.Context, key models.EntityKey, err error) string {
	switch {
	case ctx.Err() != nil:
		return "interrupted"
	case riot.IsTransient(err):
		c.logger.Infow("Entity fetch interrupted, requeueing", "key", key.String(), "error", err)
		return "interrupted"
	case errors.Is(err, riot.ErrNotFound):
		c.logger.Debugw("Entity not found", "key", key.String())
		return "not_found"
	default:
		c.logger.Warnw("Entity failed", "key", key.String(), "error", err)
		return "error"
	}
}

func (c *Crawler) processMatch(ctx context.Context, matchID int64) string {
	key := models.MatchKey(matchID)
	rec, err := c.source.FetchMatch(ctx, matchID)
	if err != nil {
		return c.failure(ctx, key, err)
	}

	players := rec.PlayerIDs()
	for _, id := range players {
		c.frontier.DiscoverPlayer(id)
	}

	if !c.accepts(rec) {
		return "filtered"
	}

	tiers, err := c.source.FetchPlayerTiers(ctx, players)
	if err != nil {
		return c.failure(ctx, key, err)
	}

	row, excluded, err := stats.BuildLedgerRow(rec, tiers, c.cfg.Policy)
	if err != nil {
		c.logger.Warnw("Match rejected", "match_id", matchID, "error", err)
		return "malformed"
	}
	if excluded > 0 {
		c.logger.Debugw("Participants excluded", "match_id", matchID, "excluded", excluded)
	}

	if c.ledger != nil {
		c.ledger.Enqueue(row)
	}
	if err := c.suite.Observe(stats.Observation{Match: rec, Row: row}); err != nil {
		c.logger.Infow("Match partially rejected", "match_id", matchID, "error", err)
	}
	return "ok"
}

func (c *Crawler) accepts(rec *models.MatchRecord) bool {
	if c.cfg.QueueType != "" && rec.QueueType != c.cfg.QueueType {
		return false
	}
	return c.cfg.VersionPrefix == "" || strings.HasPrefix(rec.Version, c.cfg.VersionPrefix)
}

func (c *Crawler) processPlayer(ctx context.Context, playerID int64) string {
	list, err := c.source.FetchMatchList(ctx, playerID)
	if err != nil {
		return c.failure(ctx, models.PlayerKey(playerID), err)
	}
	for _, ref := range list.Matches {
		if c.cfg.QueueType != "" && ref.Queue != "" && ref.Queue != c.cfg.QueueType {
			continue
		}
		c.frontier.DiscoverMatch(ref.MatchID)
	}
	return "ok"
}

func (c *Crawler) reportProgress() {
	s := c.Status()
	frontierDepth.WithLabelValues("match").Set(float64(s.Matches.Queued))
	frontierDepth.WithLabelValues("player").Set(float64(s.Players.Queued))
	c.logger.Infow("Batch complete",
		"cycle", s.Cycle,
		"matches_known", s.Matches.Known,
		"matches_queued", s.Matches.Queued,
		"matches_ok", s.Matches.DoneOK,
		"matches_failed", s.Matches.DoneError,
		"players_known", s.Players.Known,
		"players_queued", s.Players.Queued,
		"players_failed", s.Players.DoneError,
	)
}
