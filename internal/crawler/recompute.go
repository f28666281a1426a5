package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lolfu/winrate-engine/internal/cache"
	"github.com/lolfu/winrate-engine/internal/models"
	"github.com/lolfu/winrate-engine/internal/stats"
)

// RecordReader reads cached entities without touching the network.
// *cache.Store implements it.
type RecordReader interface {
	Read(bucket string, key models.EntityKey) (cache.Record, bool, error)
}

// MatchCache returns matches held locally without touching the network.
type MatchCache interface {
	CachedMatch(matchID int64) (*models.MatchRecord, bool)
}

// StoreMatches decodes cached match payloads from a RecordReader.
type StoreMatches struct {
	records RecordReader
	logger  *zap.SugaredLogger
}

func NewStoreMatches(records RecordReader, logger *zap.Logger) *StoreMatches {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreMatches{records: records, logger: logger.Sugar()}
}

// CachedMatch returns the normalized match, or false when it is not cached
// or cannot be decoded.
func (s *StoreMatches) CachedMatch(matchID int64) (*models.MatchRecord, bool) {
	rec, ok, err := s.records.Read(cache.BucketMatch, models.MatchKey(matchID))
	if err != nil {
		s.logger.Warnw("Cached match unreadable", "match_id", matchID, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	payload, err := models.DecodeMatch(rec.Payload)
	if err != nil {
		s.logger.Warnw("Cached match undecodable", "match_id", matchID, "error", err)
		return nil, false
	}
	m, err := models.NormalizeMatch(payload)
	if err != nil {
		s.logger.Debugw("Cached match rejected", "match_id", matchID, "error", err)
		return nil, false
	}
	return m, true
}

// Recompute rebuilds every table from the ledger at path. Each row feeds the
// population and matchup tables; when records is set and holds the match,
// its timeline is replayed too. Duplicate ledger lines count once. It
// returns the suite and the number of distinct matches.
func Recompute(ctx context.Context, path string, records RecordReader, workers int, logger *zap.Logger) (*stats.Suite, int, error) {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Sugar()
	suite := stats.NewSuite()
	var matches MatchCache
	if records != nil {
		matches = NewStoreMatches(records, logger)
	}

	g, ctx := errgroup.WithContext(ctx)
	rows := make(chan models.LedgerRow, workers)

	g.Go(func() error {
		defer close(rows)
		seen := make(map[int64]struct{})
		return ScanLedger(path, func(matchID int64, row *models.LedgerRow) error {
			if row == nil {
				return nil
			}
			if _, dup := seen[matchID]; dup {
				return nil
			}
			seen[matchID] = struct{}{}
			select {
			case rows <- *row:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	counts := make([]int, workers)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for row := range rows {
				obs := stats.Observation{Row: row}
				if matches != nil {
					obs.Match, _ = matches.CachedMatch(row.MatchID)
				}
				if err := suite.Observe(obs); err != nil {
					log.Debugw("Match rejected", "match_id", row.MatchID, "error", err)
				}
				counts[i]++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("recompute: %w", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	log.Infow("Recompute finished", "matches", total, "population_keys", suite.Population.Counters().Len())
	return suite, total, nil
}
