package db

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/magickit/go-magickit-cache/internal/cache/db/model"
)

// Shard is an independent segment of the sharded map.
// It keeps per-shard counters read with atomics so global readers can avoid locks.
type Shard struct {
	sync.RWMutex
	items map[string]*model.Entry

	mem int64 // total entries weight in bytes (atomic)
	len int64 // number of items (atomic)
}

func NewShard() *Shard {
	return &Shard{items: make(map[string]*model.Entry)}
}

func (sh *Shard) Weight() int64 { return atomic.LoadInt64(&sh.mem) }
func (sh *Shard) Len() int64    { return atomic.LoadInt64(&sh.len) }

// Set inserts or overwrites a key. Returns deltas for global aggregations.
func (sh *Shard) Set(key string, new *model.Entry) (bytesDelta int64, lenDelta int64) {
	sh.Lock()
	if old, hit := sh.items[key]; hit {
		sh.items[key] = new
		bytesDelta = new.Weight() - old.Weight()
	} else {
		sh.items[key] = new
		lenDelta = 1
		bytesDelta = new.Weight()
		atomic.AddInt64(&sh.len, lenDelta)
	}
	atomic.AddInt64(&sh.mem, bytesDelta)
	sh.Unlock()
	return
}

// Get reads a live entry. An entry found expired is removed before returning;
// the removal re-checks under the write lock that the same entry is still stored,
// so a concurrent overwrite is never lost.
func (sh *Shard) Get(key string, now time.Time) (value *model.Entry, hit bool, freedBytes int64, expired bool) {
	sh.RLock()
	value, hit = sh.items[key]
	sh.RUnlock()
	if !hit {
		return nil, false, 0, false
	}
	if !value.IsExpired(now) {
		return value, true, 0, false
	}

	sh.Lock()
	if cur, ok := sh.items[key]; ok && cur == value {
		freedBytes, expired = sh.removeUnlocked(key)
	}
	sh.Unlock()
	return nil, false, freedBytes, expired
}

// Remove deletes a key under the write lock. removed reports whether an entry
// was dropped at all, live whether it was still readable at now.
func (sh *Shard) Remove(key string, now time.Time) (freedBytes int64, removed, live bool) {
	sh.Lock()
	if e, ok := sh.items[key]; ok {
		live = !e.IsExpired(now)
		freedBytes, removed = sh.removeUnlocked(key)
	}
	sh.Unlock()
	return
}

func (sh *Shard) removeUnlocked(key string) (freedBytes int64, hit bool) {
	var old *model.Entry
	if old, hit = sh.items[key]; hit {
		delete(sh.items, key)
		freedBytes = old.Weight()
		atomic.AddInt64(&sh.mem, -freedBytes)
		atomic.AddInt64(&sh.len, -1)
	}
	return
}

// RemoveIf deletes every entry accepted by fn and returns (freedBytes, itemsRemoved).
func (sh *Shard) RemoveIf(fn func(*model.Entry) bool) (freedBytes int64, items int64) {
	sh.Lock()
	for k, v := range sh.items {
		if fn(v) {
			freed, _ := sh.removeUnlocked(k)
			freedBytes += freed
			items++
		}
	}
	sh.Unlock()
	return
}

// Clear removes all entries and returns (freedBytes, itemsRemoved).
func (sh *Shard) Clear() (freedBytes int64, items int64) {
	sh.Lock()
	items = atomic.LoadInt64(&sh.len)
	freedBytes = atomic.LoadInt64(&sh.mem)

	sh.items = make(map[string]*model.Entry)

	atomic.StoreInt64(&sh.len, 0)
	atomic.StoreInt64(&sh.mem, 0)
	sh.Unlock()
	return
}

// WalkR iterates entries under a shared lock. The callback must be lightweight.
func (sh *Shard) WalkR(fn func(*model.Entry) bool) {
	sh.RLock()
	defer sh.RUnlock()
	for _, v := range sh.items {
		if !fn(v) {
			return
		}
	}
}
