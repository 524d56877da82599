package telemetry

import "github.com/magickit/go-magickit-cache/internal/lifetimer"

type sampler struct {
	cache     Source
	lifetimer lifetimer.Lifetimer
}

func newSampler(c Source, lt lifetimer.Lifetimer) sampler {
	return sampler{cache: c, lifetimer: lt}
}

// snapshot holds cumulative counters (monotonic).
type snapshot struct {
	hits   uint64
	misses uint64

	sweepScans   uint64
	sweepRemoved uint64
}

func (s sampler) snapshot() snapshot {
	hits, misses := s.cache.Counters()
	scans, removed := s.lifetimer.LifetimerMetrics()

	return snapshot{
		hits:   uint64(max(hits, 0)),
		misses: uint64(max(misses, 0)),

		sweepScans:   uint64(max(scans, 0)),
		sweepRemoved: uint64(max(removed, 0)),
	}
}

// deltaSnapshot converts cumulative snapshots to per-interval deltas.
// If counters reset (cur < prev), it treats cur as the delta.
func deltaSnapshot(prev, cur snapshot) snapshot {
	return snapshot{
		hits:   delta(prev.hits, cur.hits),
		misses: delta(prev.misses, cur.misses),

		sweepScans:   delta(prev.sweepScans, cur.sweepScans),
		sweepRemoved: delta(prev.sweepRemoved, cur.sweepRemoved),
	}
}

func delta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}

// hitRate is a percentage of the interval's getOrSet calls served from cache.
func (s snapshot) hitRate() float64 {
	if total := s.hits + s.misses; total > 0 {
		return float64(s.hits) / float64(total) * 100
	}
	return 0
}
