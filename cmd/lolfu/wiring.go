package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lolfu/winrate-engine/internal/cache"
	"github.com/lolfu/winrate-engine/internal/config"
	"github.com/lolfu/winrate-engine/internal/fetcher"
	"github.com/lolfu/winrate-engine/internal/riot"
)

// newTTLStore selects Redis when REDIS_URL is set and an in-process
// expirable LRU otherwise.
func newTTLStore(ctx context.Context, c *config.Config) (cache.TTLStore, error) {
	if c.RedisURL == "" {
		return cache.NewExpirableTTL(c.LRUSize, maxTTL(c)), nil
	}
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	ttl := cache.NewRedisTTL(redis.NewClient(opts), "lolfu:")
	if err := ttl.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return ttl, nil
}

func maxTTL(c *config.Config) time.Duration {
	return max(c.MatchListTTL, c.PlayerTTL, c.TierTTL)
}

func openStore(c *config.Config, log *zap.Logger) (*cache.Store, error) {
	return cache.NewStore(c.CacheDir(), log)
}

// newFetcher wires the remote client behind the cache layers.
func newFetcher(ctx context.Context, c *config.Config, log *zap.Logger) (*fetcher.Fetcher, *cache.Store, cache.TTLStore, error) {
	store, err := openStore(c, log)
	if err != nil {
		return nil, nil, nil, err
	}
	memory, err := cache.NewMemory(c.LRUSize, store)
	if err != nil {
		return nil, nil, nil, err
	}
	ttl, err := newTTLStore(ctx, c)
	if err != nil {
		return nil, nil, nil, err
	}

	client := riot.NewClient(riot.Config{
		BaseURL:           c.BaseURL,
		APIKey:            c.APIKey,
		RequestsPerSecond: c.RequestsPerSecond,
		RetryBaseInterval: c.RetryBaseInterval,
		RetryMaxInterval:  c.RetryMaxInterval,
		HTTPClient:        &http.Client{Timeout: c.HTTPTimeout},
		Logger:            log,
	})

	f := fetcher.New(client, memory, ttl, fetcher.Config{
		Region:       c.Region,
		QueueType:    c.QueueType,
		MatchListTTL: c.MatchListTTL,
		PlayerTTL:    c.PlayerTTL,
		TierTTL:      c.TierTTL,
	}, log)
	return f, store, ttl, nil
}

// serveHTTP runs srv until ctx is done, then shuts it down gracefully.
func serveHTTP(ctx context.Context, srv *http.Server, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
