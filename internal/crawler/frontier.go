package crawler

import (
	"sync"

	"github.com/lolfu/winrate-engine/internal/models"
)

// State is the processing state of a discovered entity.
type State uint8

const (
	StateUnknown State = iota
	StateQueued
	StateInProgress
	StateDoneOK
	StateDoneError
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateInProgress:
		return "in_progress"
	case StateDoneOK:
		return "done_ok"
	case StateDoneError:
		return "done_error"
	default:
		return "unknown"
	}
}

// KindStatus counts the entities of one kind by state.
type KindStatus struct {
	Known      int `json:"known"`
	Queued     int `json:"queued"`
	InProgress int `json:"in_progress"`
	DoneOK     int `json:"done_ok"`
	DoneError  int `json:"done_error"`
}

func (k *KindStatus) add(s State, delta int) {
	switch s {
	case StateQueued:
		k.Queued += delta
	case StateInProgress:
		k.InProgress += delta
	case StateDoneOK:
		k.DoneOK += delta
	case StateDoneError:
		k.DoneError += delta
	}
}

// Frontier is the set of known matches and players plus the FIFO queue of
// those not yet processed. Recording a key as known and queueing it happen
// under one lock, so a key is queued at most once.
type Frontier struct {
	mu     sync.Mutex
	states map[models.EntityKey]State
	queue  []models.EntityKey
	counts map[models.EntityKind]*KindStatus
}

func NewFrontier() *Frontier {
	return &Frontier{
		states: make(map[models.EntityKey]State),
		counts: map[models.EntityKind]*KindStatus{
			models.KindMatch:  {},
			models.KindPlayer: {},
		},
	}
}

// Discover queues key unless it is already known. It reports whether key
// was new.
func (f *Frontier) Discover(key models.EntityKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[key]; ok {
		return false
	}
	f.set(key, StateQueued)
	f.queue = append(f.queue, key)
	return true
}

func (f *Frontier) DiscoverMatch(id int64) bool  { return f.Discover(models.MatchKey(id)) }
func (f *Frontier) DiscoverPlayer(id int64) bool { return f.Discover(models.PlayerKey(id)) }

// Restore records key as already processed without queueing it. It reports
// whether key was new.
func (f *Frontier) Restore(key models.EntityKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[key]; ok {
		return false
	}
	f.set(key, StateDoneOK)
	return true
}

// TakeBatch dequeues up to n keys in discovery order and marks them in
// progress.
func (f *Frontier) TakeBatch(n int) []models.EntityKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > len(f.queue) {
		n = len(f.queue)
	}
	batch := make([]models.EntityKey, n)
	copy(batch, f.queue[:n])
	f.queue = f.queue[n:]
	for _, k := range batch {
		f.set(k, StateInProgress)
	}
	return batch
}

// Finish moves an in-progress key to its terminal state.
func (f *Frontier) Finish(key models.EntityKey, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ok {
		f.set(key, StateDoneOK)
	} else {
		f.set(key, StateDoneError)
	}
}

// Requeue returns an in-progress key to the front of the queue. It is used
// when processing was interrupted by shutdown rather than by the entity.
func (f *Frontier) Requeue(key models.EntityKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.states[key] != StateInProgress {
		return
	}
	f.set(key, StateQueued)
	f.queue = append([]models.EntityKey{key}, f.queue...)
}

func (f *Frontier) State(key models.EntityKey) State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[key]
}

// ForgetPlayers drops every player that is not in progress so they can be
// discovered again.
func (f *Frontier) ForgetPlayers() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, s := range f.states {
		if k.Kind == models.KindPlayer && s != StateInProgress {
			f.counts[k.Kind].add(s, -1)
			f.counts[k.Kind].Known--
			delete(f.states, k)
		}
	}
	kept := f.queue[:0]
	for _, k := range f.queue {
		if k.Kind != models.KindPlayer {
			kept = append(kept, k)
		}
	}
	f.queue = kept
}

// Pending returns the number of queued keys of each kind.
func (f *Frontier) Pending() (matches, players int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[models.KindMatch].Queued, f.counts[models.KindPlayer].Queued
}

func (f *Frontier) Status(kind models.EntityKind) KindStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.counts[kind]; ok {
		return *c
	}
	return KindStatus{}
}

// set must be called with mu held.
func (f *Frontier) set(key models.EntityKey, s State) {
	c, ok := f.counts[key.Kind]
	if !ok {
		c = &KindStatus{}
		f.counts[key.Kind] = c
	}
	prev, known := f.states[key]
	if known {
		c.add(prev, -1)
	} else {
		c.Known++
	}
	c.add(s, 1)
	f.states[key] = s
}
