package cache

import (
	"sync/atomic"

	"github.com/magickit/go-magickit-cache/internal/metrics"
)

type counters struct {
	hits   atomic.Int64 // getOrSet calls served from cache
	misses atomic.Int64 // getOrSet calls that invoked the loader
}

func newCounters() *counters {
	return &counters{
		hits:   atomic.Int64{},
		misses: atomic.Int64{},
	}
}

func (c *counters) hit() {
	c.hits.Add(1)
	metrics.CacheHits.Inc()
}

func (c *counters) miss() {
	c.misses.Add(1)
	metrics.CacheMisses.Inc()
}

func (c *counters) snapshot() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// hitRate is a percentage in [0,100]; zero when nothing was counted yet.
func (c *counters) hitRate() float64 {
	hits, misses := c.snapshot()
	if total := hits + misses; total > 0 {
		return float64(hits) / float64(total) * 100
	}
	return 0
}
