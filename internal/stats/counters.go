// Package stats accumulates win/loss counters keyed by feature tuples.
package stats

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 32

// keySep cannot appear in a feature value.
const keySep = "\x1f"

// FeatureKey is an ordered tuple of discrete features.
type FeatureKey []string

// Key builds a FeatureKey from strings and integers.
func Key(parts ...any) FeatureKey {
	k := make(FeatureKey, len(parts))
	for i, p := range parts {
		switch v := p.(type) {
		case string:
			k[i] = v
		case int:
			k[i] = strconv.Itoa(v)
		case int64:
			k[i] = strconv.FormatInt(v, 10)
		default:
			k[i] = fmt.Sprint(v)
		}
	}
	return k
}

func (k FeatureKey) String() string { return strings.Join(k, keySep) }

// Less orders keys element-wise, comparing integer elements numerically.
func (k FeatureKey) Less(o FeatureKey) bool {
	for i := 0; i < len(k) && i < len(o); i++ {
		if k[i] == o[i] {
			continue
		}
		a, errA := strconv.ParseInt(k[i], 10, 64)
		b, errB := strconv.ParseInt(o[i], 10, 64)
		if errA == nil && errB == nil {
			return a < b
		}
		return k[i] < o[i]
	}
	return len(k) < len(o)
}

// Counter is a monotonically increasing win/loss tally.
type Counter struct {
	Wins   uint64 `json:"wins"`
	Losses uint64 `json:"losses"`
}

func (c Counter) Samples() uint64 { return c.Wins + c.Losses }

// Entry is one key and its counter.
type Entry struct {
	Key FeatureKey `json:"key"`
	Counter
}

type entry struct {
	key FeatureKey
	c   Counter
}

type shard struct {
	mu sync.Mutex
	m  map[string]*entry
}

// Counters is a concurrency-safe table of counters, sharded by key hash.
type Counters struct {
	shards [shardCount]shard
}

func NewCounters() *Counters {
	c := &Counters{}
	for i := range c.shards {
		c.shards[i].m = make(map[string]*entry)
	}
	return c
}

func (c *Counters) shard(s string) *shard {
	return &c.shards[xxhash.Sum64String(s)%shardCount]
}

// Observe records one win or loss for key.
func (c *Counters) Observe(key FeatureKey, win bool) {
	if win {
		c.Add(key, 1, 0)
	} else {
		c.Add(key, 0, 1)
	}
}

func (c *Counters) Add(key FeatureKey, wins, losses uint64) {
	s := key.String()
	sh := c.shard(s)
	sh.mu.Lock()
	e, ok := sh.m[s]
	if !ok {
		e = &entry{key: append(FeatureKey(nil), key...)}
		sh.m[s] = e
	}
	e.c.Wins += wins
	e.c.Losses += losses
	sh.mu.Unlock()
}

// Merge adds every counter of other into c.
func (c *Counters) Merge(other *Counters) {
	for _, e := range other.Snapshot() {
		c.Add(e.Key, e.Wins, e.Losses)
	}
}

func (c *Counters) Get(key FeatureKey) Counter {
	s := key.String()
	sh := c.shard(s)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok := sh.m[s]; ok {
		return e.c
	}
	return Counter{}
}

func (c *Counters) Len() int {
	n := 0
	for i := range c.shards {
		c.shards[i].mu.Lock()
		n += len(c.shards[i].m)
		c.shards[i].mu.Unlock()
	}
	return n
}

// Snapshot copies every counter, sorted by key.
func (c *Counters) Snapshot() []Entry {
	var out []Entry
	for i := range c.shards {
		sh := &c.shards[i]
		sh.mu.Lock()
		for _, e := range sh.m {
			out = append(out, Entry{Key: e.key, Counter: e.c})
		}
		sh.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// Filter returns the entries whose key starts with prefix, sorted by key.
func (c *Counters) Filter(prefix ...string) []Entry {
	var out []Entry
	for _, e := range c.Snapshot() {
		if hasPrefix(e.Key, prefix) {
			out = append(out, e)
		}
	}
	return out
}

func hasPrefix(k FeatureKey, prefix []string) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}
