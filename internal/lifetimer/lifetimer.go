// Package lifetimer runs the periodic sweep of expired in-process entries so that
// written-once never-read keys do not pile up in memory.
package lifetimer

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/magickit/go-magickit-cache/config"
	"github.com/magickit/go-magickit-cache/internal/metrics"
	"github.com/rs/zerolog"
)

type Sweeper interface {
	Sweep() (removed int64)
}

type Lifetimer interface {
	LifetimerMetrics() (scans, removed int64)
	Close() error
}

type LifetimeWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	cfg      *config.LifetimerCfg
	cache    Sweeper
	clock    clock.Clock
	logger   zerolog.Logger
	counters *lifetimerCounters
}

// New starts the sweep loop, or returns a NoOpLifetimer when sweeping is disabled.
// The loop stops when ctx is done or Close is called.
func New(ctx context.Context, cfg *config.LifetimerCfg, logger zerolog.Logger, cache Sweeper, clk clock.Clock) Lifetimer {
	if !cfg.Enabled() {
		return NoOpLifetimer{}
	}
	if clk == nil {
		clk = clock.New()
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&LifetimeWorker{
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		cfg:      cfg,
		cache:    cache,
		clock:    clk,
		logger:   logger.With().Str("component", "lifetimer").Logger(),
		counters: newLifetimerCounters(),
	}).run()
}

func (w *LifetimeWorker) LifetimerMetrics() (scans, removed int64) {
	return w.counters.snapshot()
}

// Close stops the loop and waits for an in-progress sweep to finish.
func (w *LifetimeWorker) Close() error {
	w.cancel()
	<-w.done
	return nil
}

func (w *LifetimeWorker) run() *LifetimeWorker {
	interval := w.cfg.SweepInterval
	if interval <= 0 {
		interval = config.DefaultSweepInterval
	}
	ticker := w.clock.Ticker(interval)
	w.logger.Info().Dur("interval", interval).Msg("sweeper is running")

	go func() {
		defer close(w.done)
		defer ticker.Stop()
		defer w.logger.Info().Msg("sweeper is stopped")

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.sweep()
			}
		}
	}()

	return w
}

func (w *LifetimeWorker) sweep() {
	removed := w.cache.Sweep()
	w.counters.scans.Add(1)
	if removed > 0 {
		w.counters.removed.Add(removed)
		metrics.CacheSweepRemoved.Add(float64(removed))
		w.logger.Debug().Int64("removed", removed).Msg("expired entries swept")
	}
}
