package lifetimer

import "sync/atomic"

type lifetimerCounters struct {
	scans   atomic.Int64 // total sweeps number
	removed atomic.Int64 // expired entries dropped by sweeps
}

func newLifetimerCounters() *lifetimerCounters {
	return &lifetimerCounters{
		scans:   atomic.Int64{},
		removed: atomic.Int64{},
	}
}

func (c *lifetimerCounters) snapshot() (scans, removed int64) {
	return c.scans.Load(), c.removed.Load()
}
