package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// TTLStore holds refresh-on-expiry payloads such as match lists and tiers.
type TTLStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
}

type ttlEntry struct {
	value   []byte
	expires time.Time
}

// ExpirableTTL is a process-local TTLStore bounded in size. Entries carry
// their own deadline; maxTTL bounds how long any entry is retained.
type ExpirableTTL struct {
	lru *expirable.LRU[string, ttlEntry]
	now func() time.Time
}

func NewExpirableTTL(size int, maxTTL time.Duration) *ExpirableTTL {
	if size <= 0 {
		size = 1
	}
	return &ExpirableTTL{
		lru: expirable.NewLRU[string, ttlEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (e *ExpirableTTL) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := e.lru.Get(key)
	if !ok || !e.now().Before(entry.expires) {
		recordLookup("ttl", false)
		return nil, false, nil
	}
	recordLookup("ttl", true)
	return entry.value, true, nil
}

func (e *ExpirableTTL) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e.lru.Add(key, ttlEntry{value: value, expires: e.now().Add(ttl)})
	return nil
}

func (e *ExpirableTTL) Ping(context.Context) error { return nil }

// RedisTTL shares refresh-on-expiry payloads between processes.
type RedisTTL struct {
	client redis.Cmdable
	prefix string
}

func NewRedisTTL(client redis.Cmdable, prefix string) *RedisTTL {
	return &RedisTTL{client: client, prefix: prefix}
}

func (r *RedisTTL) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		recordLookup("redis", false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	recordLookup("redis", true)
	return val, true, nil
}

func (r *RedisTTL) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisTTL) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
