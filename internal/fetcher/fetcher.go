// Package fetcher composes the remote client and the cache layers into typed
// accessors, applying a caching policy per entity.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lolfu/winrate-engine/internal/cache"
	"github.com/lolfu/winrate-engine/internal/models"
	"github.com/lolfu/winrate-engine/internal/riot"
)

// Caller issues one remote call. *riot.Client implements it.
type Caller interface {
	Call(ctx context.Context, path string, params url.Values) ([]byte, error)
}

// Config holds the per-entity caching policy.
type Config struct {
	Region       string
	QueueType    string
	MatchListTTL time.Duration
	PlayerTTL    time.Duration
	TierTTL      time.Duration
}

// Fetcher resolves entities from memory, then disk, then the network.
// Matches are immutable and cached forever; match lists, players and tiers
// are refreshed once their time-to-live elapses.
type Fetcher struct {
	api    Caller
	memory *cache.Memory
	store  *cache.Store
	ttl    cache.TTLStore
	cfg    Config
	group  singleflight.Group
	logger *zap.SugaredLogger
}

func New(api Caller, memory *cache.Memory, ttl cache.TTLStore, cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.MatchListTTL <= 0 {
		cfg.MatchListTTL = time.Minute
	}
	if cfg.PlayerTTL <= 0 {
		cfg.PlayerTTL = time.Hour
	}
	if cfg.TierTTL <= 0 {
		cfg.TierTTL = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		api:    api,
		memory: memory,
		store:  memory.Store(),
		ttl:    ttl,
		cfg:    cfg,
		logger: logger.Sugar(),
	}
}

// FetchMatch returns the normalized match including its timeline.
// A missing match is reported as riot.ErrNotFound.
func (f *Fetcher) FetchMatch(ctx context.Context, matchID int64) (*models.MatchRecord, error) {
	key := models.MatchKey(matchID)
	rec, ok, err := f.memory.Read(cache.BucketMatch, key)
	if err != nil {
		f.logger.Warnw("Cached match unreadable, refetching", "match_id", matchID, "error", err)
	}

	payload := rec.Payload
	if !ok {
		v, err, _ := f.group.Do(key.String(), func() (interface{}, error) {
			data, err := f.api.Call(ctx, riot.MatchPath(f.cfg.Region, matchID), riot.MatchParams(true))
			if err != nil {
				return nil, err
			}
			if _, err := f.memory.Write(cache.BucketMatch, key, data); err != nil {
				f.logger.Warnw("Failed to cache match", "match_id", matchID, "error", err)
			}
			return data, nil
		})
		if err != nil {
			return nil, err
		}
		payload = v.([]byte)
	}

	m, err := models.DecodeMatch(payload)
	if err != nil {
		return nil, fmt.Errorf("match %d: %w", matchID, err)
	}
	return models.NormalizeMatch(m)
}

// FetchMatchList returns the player's match history, cached for MatchListTTL.
func (f *Fetcher) FetchMatchList(ctx context.Context, playerID int64) (*models.MatchList, error) {
	key := models.PlayerKey(playerID)
	data, err := f.refreshable(ctx, cache.BucketMatchList, key, f.cfg.MatchListTTL, func() ([]byte, error) {
		return f.api.Call(ctx, riot.MatchListPath(f.cfg.Region, playerID), nil)
	})
	if err != nil {
		return nil, err
	}
	return models.DecodeMatchList(data)
}

// FetchPlayerByName resolves a display name to a player profile.
func (f *Fetcher) FetchPlayerByName(ctx context.Context, name string) (models.Summoner, error) {
	key := models.PlayerNameKey(name)
	if key.Name == "" {
		return models.Summoner{}, fmt.Errorf("empty player name: %w", riot.ErrNotFound)
	}
	data, err := f.refreshable(ctx, cache.BucketSummoner, key, f.cfg.PlayerTTL, func() ([]byte, error) {
		return f.api.Call(ctx, riot.SummonerByNamePath(f.cfg.Region, key.Name), nil)
	})
	if err != nil {
		return models.Summoner{}, err
	}

	byName, err := models.DecodeSummoners(data)
	if err != nil {
		return models.Summoner{}, err
	}
	for n, s := range byName {
		if models.NormalizeName(n) == key.Name {
			return s, nil
		}
	}
	return models.Summoner{}, fmt.Errorf("player %q: %w", name, riot.ErrNotFound)
}

// FetchPlayerTiers returns the ranked tier of each player. Players without a
// placement in the configured queue map to models.UnknownTier. Uncached
// players are looked up in batches of riot.MaxIDsPerLookup.
func (f *Fetcher) FetchPlayerTiers(ctx context.Context, playerIDs []int64) (map[int64]string, error) {
	tiers := make(map[int64]string, len(playerIDs))
	var missing []int64
	for _, id := range playerIDs {
		if _, seen := tiers[id]; seen {
			continue
		}
		if t, ok := f.cachedTier(ctx, id); ok {
			tiers[id] = t.Tier
			continue
		}
		tiers[id] = models.UnknownTier
		missing = append(missing, id)
	}

	for start := 0; start < len(missing); start += riot.MaxIDsPerLookup {
		end := min(start+riot.MaxIDsPerLookup, len(missing))
		chunk := missing[start:end]

		found := map[int64]models.Tier{}
		data, err := f.api.Call(ctx, riot.LeagueEntryPath(f.cfg.Region, chunk...), nil)
		switch {
		case errors.Is(err, riot.ErrNotFound):
			// none of the chunk is ranked
		case err != nil:
			return nil, err
		default:
			if found, err = models.DecodeTiers(data, f.cfg.QueueType); err != nil {
				return nil, err
			}
		}

		for _, id := range chunk {
			t, ok := found[id]
			if !ok {
				t = models.Tier{PlayerID: id, Tier: models.UnknownTier}
			}
			tiers[id] = t.Tier
			f.storeTier(ctx, t)
		}
	}
	return tiers, nil
}

func (f *Fetcher) cachedTier(ctx context.Context, playerID int64) (models.Tier, bool) {
	key := models.PlayerKey(playerID)
	data, ok := f.lookupTTL(ctx, cache.BucketTier, key, f.cfg.TierTTL)
	if !ok {
		return models.Tier{}, false
	}
	t, err := models.DecodeTier(data)
	if err != nil {
		return models.Tier{}, false
	}
	return t, true
}

func (f *Fetcher) storeTier(ctx context.Context, t models.Tier) {
	data, err := models.EncodeTier(t)
	if err != nil {
		return
	}
	f.save(ctx, cache.BucketTier, models.PlayerKey(t.PlayerID), data, f.cfg.TierTTL)
}

// refreshable serves a refresh-on-expiry entity from the TTL store or disk,
// falling back to fetch and caching the result.
func (f *Fetcher) refreshable(ctx context.Context, bucket string, key models.EntityKey, ttl time.Duration, fetch func() ([]byte, error)) ([]byte, error) {
	if data, ok := f.lookupTTL(ctx, bucket, key, ttl); ok {
		return data, nil
	}
	v, err, _ := f.group.Do(bucket+"/"+key.String(), func() (interface{}, error) {
		data, err := fetch()
		if err != nil {
			return nil, err
		}
		f.save(ctx, bucket, key, data, ttl)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (f *Fetcher) lookupTTL(ctx context.Context, bucket string, key models.EntityKey, ttl time.Duration) ([]byte, bool) {
	tk := ttlKey(bucket, key)
	if f.ttl != nil {
		data, ok, err := f.ttl.Get(ctx, tk)
		if err != nil {
			f.logger.Warnw("TTL store lookup failed", "key", tk, "error", err)
		} else if ok {
			return data, true
		}
	}

	rec, ok, err := f.store.ReadFresh(bucket, key, ttl)
	if err != nil {
		f.logger.Warnw("Cached record unreadable", "key", tk, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if f.ttl != nil {
		remaining := ttl - time.Since(rec.FetchedAt)
		if remaining > 0 {
			_ = f.ttl.Set(ctx, tk, rec.Payload, remaining)
		}
	}
	return rec.Payload, true
}

func (f *Fetcher) save(ctx context.Context, bucket string, key models.EntityKey, data []byte, ttl time.Duration) {
	tk := ttlKey(bucket, key)
	if err := f.store.Replace(bucket, key, data); err != nil {
		f.logger.Warnw("Failed to cache record", "key", tk, "error", err)
	}
	if f.ttl != nil {
		if err := f.ttl.Set(ctx, tk, data, ttl); err != nil {
			f.logger.Warnw("TTL store write failed", "key", tk, "error", err)
		}
	}
}

func ttlKey(bucket string, key models.EntityKey) string {
	if key.Numeric() {
		return bucket + ":" + strconv.FormatInt(key.ID, 10)
	}
	return bucket + ":" + key.Name
}
