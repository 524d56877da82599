// Package telemetry periodically logs cache activity and refreshes the storage gauges.
package telemetry

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/magickit/go-magickit-cache/config"
	"github.com/magickit/go-magickit-cache/internal/lifetimer"
	"github.com/magickit/go-magickit-cache/internal/metrics"
	"github.com/rs/zerolog"
)

// Source is the part of the Cache Service telemetry reads.
type Source interface {
	Counters() (hits, misses int64)
	Len() int64
	Mem() int64
	BackendConnected() bool
}

type Logger interface {
	Interval() time.Duration
	Close() error
}

type Logs struct {
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	cfg       *config.Cache
	logger    zerolog.Logger
	cache     Source
	lifetimer lifetimer.Lifetimer
	clock     clock.Clock
	interval  time.Duration
}

func New(
	ctx context.Context,
	cfg *config.Cache,
	logger zerolog.Logger,
	cache Source,
	lifetimer lifetimer.Lifetimer,
	clk clock.Clock,
) *Logs {
	if clk == nil {
		clk = clock.New()
	}
	ctx, cancel := context.WithCancel(ctx)
	l := &Logs{
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		cfg:       cfg,
		logger:    logger.With().Str("component", "telemetry").Logger(),
		cache:     cache,
		lifetimer: lifetimer,
		clock:     clk,
	}
	if cfg.Telemetry.Enabled() {
		l.interval = cfg.Telemetry.LogsInterval
	}
	return l.run()
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	<-l.done
	return nil
}

func (l *Logs) run() *Logs {
	if l.interval > 0 {
		s := newSampler(l.cache, l.lifetimer)
		go l.loop(l.clock.Ticker(l.interval), s, s.snapshot())
	} else {
		close(l.done)
	}
	return l
}

func (l *Logs) loop(ticker *clock.Ticker, s sampler, prev snapshot) {
	defer close(l.done)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return

		case <-ticker.C:
			cur := s.snapshot()
			d := deltaSnapshot(prev, cur)
			prev = cur

			l.report(d)
		}
	}
}

func (l *Logs) report(d snapshot) {
	memBytes := l.cache.Mem()
	items := l.cache.Len()

	metrics.CacheEntries.Set(float64(items))
	metrics.CacheMemoryBytes.Set(float64(memBytes))

	l.logger.Info().
		Str("interval", l.interval.String()).
		Uint64("hits", d.hits).
		Uint64("misses", d.misses).
		Float64("hit_rate", d.hitRate()).
		Bool("backend_connected", l.cache.BackendConnected()).
		Msg("cache")

	if l.cfg.Lifetime.Enabled() {
		l.logger.Info().
			Str("interval", l.interval.String()).
			Uint64("scans", d.sweepScans).
			Uint64("removed", d.sweepRemoved).
			Msg("lifetime_manager")
	}

	l.logger.Info().
		Str("interval", l.interval.String()).
		Str("size", fmtMem(memBytes)).
		Int64("entries", items).
		Msg("storage")
}
