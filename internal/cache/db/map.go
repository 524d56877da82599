// Package db implements the in-process TTL entry store: a sharded concurrent map
// with expiry-on-read semantics. Each shard is guarded by its own RWMutex and the
// read-expire-delete sequence is atomic per key. Global counters are atomics so
// they can be read without locks.
package db

import (
	"sync/atomic"
	"time"

	"github.com/magickit/go-magickit-cache/internal/cache/db/model"
	"github.com/zeebo/xxh3"
)

// Tunables.
const (
	NumOfShards = 256
	shardMask   = NumOfShards - 1 // faster than division
)

// Map is a sharded concurrent map with precise global counters.
type Map struct {
	len int64 // aggregated number of items (atomic)
	mem int64 // aggregated entries weight in bytes (atomic)

	shards [NumOfShards]*Shard
}

func NewMap() *Map {
	m := &Map{}
	for i := range m.shards {
		m.shards[i] = NewShard()
	}
	return m
}

// Set inserts/overwrites a value and adjusts global counters via per-shard deltas.
func (m *Map) Set(key string, value *model.Entry) {
	bytesDelta, lenDelta := m.Shard(key).Set(key, value)
	m.apply(bytesDelta, lenDelta)
}

// Get returns a live entry; an expired one is dropped as a side effect.
func (m *Map) Get(key string, now time.Time) (*model.Entry, bool) {
	value, hit, freedBytes, expired := m.Shard(key).Get(key, now)
	if expired {
		m.apply(-freedBytes, -1)
	}
	return value, hit
}

// Remove deletes a key and adjusts global counters. hit is false for a key that
// was missing or already expired at now, matching what Get would have reported.
func (m *Map) Remove(key string, now time.Time) (freedBytes int64, hit bool) {
	freedBytes, removed, live := m.Shard(key).Remove(key, now)
	if removed {
		m.apply(-freedBytes, -1)
	}
	return freedBytes, live
}

// RemoveMatching deletes every key accepted by match and returns how many were removed.
func (m *Map) RemoveMatching(match func(key string) bool) (removed int64) {
	return m.removeIf(func(e *model.Entry) bool { return match(e.Key()) })
}

// Sweep drops every entry expired at now, read or not.
func (m *Map) Sweep(now time.Time) (removed int64) {
	return m.removeIf(func(e *model.Entry) bool { return e.IsExpired(now) })
}

// Clear wipes all shards and fixes global counters.
func (m *Map) Clear() {
	for _, shard := range m.shards {
		freedBytes, items := shard.Clear()
		m.apply(-freedBytes, -items)
	}
}

// Keys snapshots the stored keys, expired-but-unswept ones included.
func (m *Map) Keys() []string {
	keys := make([]string, 0, m.Len())
	for _, shard := range m.shards {
		shard.WalkR(func(e *model.Entry) bool {
			keys = append(keys, e.Key())
			return true
		})
	}
	return keys
}

// Live snapshots keys and total weight of the entries not yet expired at now.
func (m *Map) Live(now time.Time) (keys []string, weight int64) {
	keys = make([]string, 0, m.Len())
	for _, shard := range m.shards {
		shard.WalkR(func(e *model.Entry) bool {
			if !e.IsExpired(now) {
				keys = append(keys, e.Key())
				weight += e.Weight()
			}
			return true
		})
	}
	return keys, weight
}

func (m *Map) Shard(key string) *Shard { return m.shards[xxh3.HashString(key)&shardMask] }
func (m *Map) Len() int64              { return atomic.LoadInt64(&m.len) }
func (m *Map) Mem() int64              { return atomic.LoadInt64(&m.mem) }

func (m *Map) removeIf(fn func(*model.Entry) bool) (removed int64) {
	for _, shard := range m.shards {
		freedBytes, items := shard.RemoveIf(fn)
		if items > 0 {
			m.apply(-freedBytes, -items)
			removed += items
		}
	}
	return removed
}

func (m *Map) apply(bytesDelta, lenDelta int64) {
	if bytesDelta != 0 {
		atomic.AddInt64(&m.mem, bytesDelta)
	}
	if lenDelta != 0 {
		atomic.AddInt64(&m.len, lenDelta)
	}
}
