package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lolfu/winrate-engine/internal/models"
)

// Memory is a bounded least-recently-used layer in front of a Store for
// immutable records. When full, the least recently read record is evicted.
type Memory struct {
	lru  *lru.Cache[string, Record]
	next *Store
}

func NewMemory(size int, next *Store) (*Memory, error) {
	if size <= 0 {
		size = 1
	}
	c, err := lru.New[string, Record](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Memory{lru: c, next: next}, nil
}

func memoryKey(bucket string, key models.EntityKey) string {
	return bucket + "/" + key.String()
}

// Read consults memory first, then the store, populating memory on a store hit.
func (m *Memory) Read(bucket string, key models.EntityKey) (Record, bool, error) {
	mk := memoryKey(bucket, key)
	if rec, ok := m.lru.Get(mk); ok {
		recordLookup("memory", true)
		return rec, true, nil
	}
	recordLookup("memory", false)

	rec, ok, err := m.next.Read(bucket, key)
	recordLookup("disk", ok)
	if err != nil || !ok {
		return rec, ok, err
	}
	m.lru.Add(mk, rec)
	return rec, true, nil
}

// Write stores through to disk. Only a record this call created is kept in
// memory; when another writer won, the next Read loads the winning record.
func (m *Memory) Write(bucket string, key models.EntityKey, payload []byte) (bool, error) {
	at, created, err := m.next.create(bucket, key, payload)
	if err != nil {
		return false, err
	}
	mk := memoryKey(bucket, key)
	if created {
		m.lru.Add(mk, Record{Key: key, Bucket: bucket, Payload: payload, FetchedAt: at})
	} else {
		m.lru.Remove(mk)
	}
	return created, nil
}

func (m *Memory) Len() int { return m.lru.Len() }

func (m *Memory) Store() *Store { return m.next }
