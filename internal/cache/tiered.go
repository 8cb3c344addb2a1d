// Package cache holds the slot-based cache behind the product catalogue.
package cache

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Key names one cache slot.
type Key string

// All targets every slot in Invalidate.
const All Key = "all"

// Slot is one cache entry plus its freshness metadata. Slots are replaced
// wholesale and never mutated in place.
type Slot[T any] struct {
	Data      T
	Timestamp time.Time
	Valid     bool
}

// SlotState describes a slot for diagnostics without exposing its data.
type SlotState struct {
	Key       Key           `json:"key"`
	Populated bool          `json:"populated"`
	Valid     bool          `json:"valid"`
	Fresh     bool          `json:"fresh"`
	Timestamp time.Time     `json:"timestamp,omitempty"`
	TTL       time.Duration `json:"ttl"`
	Age       time.Duration `json:"age"`
}

// Tiered keeps independent slots with their own TTL. Invalidating any single
// slot also invalidates the union slot, which is a denormalized merge of the others.
// Every invalidation bumps the generation of the slots it targets, so data read
// before an invalidation can be rejected by PutIfCurrent.
type Tiered[T any] struct {
	mu     sync.RWMutex
	slots  map[Key]Slot[T]
	gens   map[Key]uint64
	ttls   map[Key]time.Duration
	union  Key
	now    func() time.Time
	logger *zap.Logger
}

// NewTiered builds a cache whose slots are the keys of ttls. union may be empty.
func NewTiered[T any](ttls map[Key]time.Duration, union Key, now func() time.Time, logger *zap.Logger) *Tiered[T] {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	copied := make(map[Key]time.Duration, len(ttls))
	for key, ttl := range ttls {
		copied[key] = ttl
	}

	return &Tiered[T]{
		slots:  make(map[Key]Slot[T], len(ttls)),
		gens:   make(map[Key]uint64, len(ttls)),
		ttls:   copied,
		union:  union,
		now:    now,
		logger: logger,
	}
}

// Get returns the slot for key, valid or not. The bool is false when the slot is absent.
func (c *Tiered[T]) Get(key Key) (Slot[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	slot, ok := c.slots[key]
	return slot, ok
}

// Put replaces the slot for key with fresh, valid data.
func (c *Tiered[T]) Put(key Key, data T) {
	slot := Slot[T]{Data: data, Timestamp: c.now(), Valid: true}

	c.mu.Lock()
	c.slots[key] = slot
	c.mu.Unlock()

	c.logger.Debug("cache slot populated", zap.String("slot", string(key)), zap.Time("timestamp", slot.Timestamp))
}

// Generation returns the current invalidation generation of key. Read it
// before fetching the data later passed to PutIfCurrent.
func (c *Tiered[T]) Generation(key Key) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[key]
}

// PutIfCurrent stores data only when key has not been invalidated since gen
// was read. It reports whether the slot was written.
func (c *Tiered[T]) PutIfCurrent(key Key, data T, gen uint64) bool {
	c.mu.Lock()
	if c.gens[key] != gen {
		c.mu.Unlock()
		c.logger.Debug("stale cache write dropped", zap.String("slot", string(key)), zap.Uint64("generation", gen))
		return false
	}
	slot := Slot[T]{Data: data, Timestamp: c.now(), Valid: true}
	c.slots[key] = slot
	c.mu.Unlock()

	c.logger.Debug("cache slot populated", zap.String("slot", string(key)), zap.Time("timestamp", slot.Timestamp))
	return true
}

// Targets lists the slots an invalidation of key reaches.
func (c *Tiered[T]) Targets(key Key) []Key {
	if key != All {
		targets := []Key{key}
		if c.union != "" && key != c.union {
			targets = append(targets, c.union)
		}
		return targets
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[Key]struct{}, len(c.ttls)+len(c.slots))
	var targets []Key
	for k := range c.ttls {
		seen[k] = struct{}{}
		targets = append(targets, k)
	}
	for k := range c.slots {
		if _, ok := seen[k]; !ok {
			targets = append(targets, k)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	return targets
}

// Invalidate flags key (and the union slot) as invalid, or every slot for All.
// Data is retained but never served. The generation of every target is bumped
// even when the slot is still absent. It returns the keys that were flipped.
func (c *Tiered[T]) Invalidate(key Key) []Key {
	targets := c.Targets(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	flipped := make([]Key, 0, len(targets))
	for _, k := range targets {
		c.gens[k]++
		slot, ok := c.slots[k]
		if !ok {
			continue
		}
		slot.Valid = false
		c.slots[k] = slot
		flipped = append(flipped, k)
	}

	c.logger.Debug("cache slots invalidated", zap.String("target", string(key)), zap.Int("flipped", len(flipped)))
	return flipped
}

// IsValid reports whether slot can be served under ttl. A nil slot is absent.
// A slot is stale once now - timestamp reaches ttl.
func (c *Tiered[T]) IsValid(slot *Slot[T], ttl time.Duration) bool {
	if slot == nil || !slot.Valid {
		return false
	}
	return c.now().Sub(slot.Timestamp) < ttl
}

// TTL returns the configured time-to-live of key.
func (c *Tiered[T]) TTL(key Key) time.Duration {
	return c.ttls[key]
}

// Fresh returns the data of key when the slot is present, valid and within its TTL.
func (c *Tiered[T]) Fresh(key Key) (T, bool) {
	slot, ok := c.Get(key)
	if !ok || !c.IsValid(&slot, c.TTL(key)) {
		var zero T
		return zero, false
	}
	return slot.Data, true
}

// Snapshot reports the state of every configured slot ordered by key.
func (c *Tiered[T]) Snapshot() []SlotState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	states := make([]SlotState, 0, len(c.ttls))
	for key, ttl := range c.ttls {
		state := SlotState{Key: key, TTL: ttl}
		if slot, ok := c.slots[key]; ok {
			state.Populated = true
			state.Valid = slot.Valid
			state.Timestamp = slot.Timestamp
			state.Age = now.Sub(slot.Timestamp)
			state.Fresh = slot.Valid && state.Age < ttl
		}
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Key < states[j].Key })
	return states
}
