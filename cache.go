// Package magickit is the caching core of MagicKit: a dual-tier cache with TTL
// expiry, pattern invalidation and get-or-set memoization, plus the invalidation
// coordinator, performance monitor and CDN helper built on top of it.
//
// A Cache is constructed once at process start and passed to every consumer.
package magickit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/magickit/go-magickit-cache/config"
	"github.com/magickit/go-magickit-cache/internal/backend"
	"github.com/magickit/go-magickit-cache/internal/cache"
	"github.com/magickit/go-magickit-cache/internal/cdn"
	"github.com/magickit/go-magickit-cache/internal/invalidation"
	"github.com/magickit/go-magickit-cache/internal/lifetimer"
	"github.com/magickit/go-magickit-cache/internal/perf"
	"github.com/magickit/go-magickit-cache/internal/telemetry"
	"github.com/magickit/go-magickit-cache/model"
	"github.com/rs/zerolog"
)

type (
	Stats            = cache.Stats
	WarmUpEntry      = cache.WarmUpEntry
	EndOptions       = perf.EndOptions
	SSROptions       = perf.SSROptions
	PerformanceStats = perf.PerformanceStats
	RealTimeMetrics  = perf.RealTimeMetrics
	MediaOptions     = cdn.MediaOptions
	PurgeRequest     = cdn.PurgeRequest
	PurgeResult      = cdn.PurgeResult
)

type Cache struct {
	*cache.Service
	lifetimer.Lifetimer
	telemetry.Logger

	Invalidation *invalidation.Coordinator
	Monitor      *perf.Monitor
	CDN          *cdn.Helper

	backend backend.Backend
	samples *perf.GormStore
	cls     context.CancelFunc
	once    sync.Once
}

type options struct {
	clock   clock.Clock
	samples perf.SampleStore
}

type Option func(*options)

// WithClock replaces the wall clock of every component.
func WithClock(clk clock.Clock) Option { return func(o *options) { o.clock = clk } }

// WithSampleStore replaces the sqlite store of performance samples.
func WithSampleStore(s perf.SampleStore) Option { return func(o *options) { o.samples = s } }

// New wires all components. Background loops stop when ctx is done or Close is called.
func New(ctx context.Context, cfg *config.Cache, logger zerolog.Logger, opts ...Option) (*Cache, error) {
	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Cache{cls: cancel}

	store := o.samples
	if store == nil {
		db, err := perf.OpenSQLite(cfg.Monitor.DSN, logger)
		if err != nil {
			cancel()
			return nil, err
		}
		if c.samples, err = perf.NewGormStore(db); err != nil {
			cancel()
			return nil, err
		}
		store = c.samples
	}

	c.backend = backend.New(ctx, cfg.Backend, logger)
	c.Service = cache.New(cfg, c.backend, o.clock, logger)
	c.Lifetimer = lifetimer.New(ctx, cfg.Lifetime, logger, c.Service, o.clock)
	c.Logger = telemetry.New(ctx, cfg, logger, c.Service, c.Lifetimer, o.clock)
	c.Invalidation = invalidation.New(c.Service, logger)
	c.Monitor = perf.NewMonitor(cfg.Monitor, c.Service, store, o.clock, logger)
	c.CDN = cdn.New(cfg.CDN, c.Service, o.clock, logger)

	logger.Info().
		Bool("backend", cfg.Backend.Enabled).
		Bool("backend_connected", c.backend.Connected()).
		Dur("default_ttl", cfg.DB.DefaultTTL).
		Bool("sweep", cfg.Lifetime.Enabled()).
		Msg("magickit cache started")

	return c, nil
}

// Close stops background loops and releases connections. It is safe to call more than once.
func (c *Cache) Close() error {
	var err error
	c.once.Do(func() {
		c.cls()
		err = errors.Join(
			c.Lifetimer.Close(),
			c.Logger.Close(),
			c.backend.Close(),
		)
		if c.samples != nil {
			if cerr := c.samples.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("close sample store: %w", cerr))
			}
		}
	})
	return err
}

// GetAs returns the cached value typed as T.
func GetAs[T any](ctx context.Context, c *Cache, key model.Key) (T, bool) {
	return cache.GetAs[T](ctx, c.Service, key)
}

// GetOrSet returns the cached value or loads, caches and returns it.
// Loader errors are returned unchanged and nothing is cached.
func GetOrSet[T any](ctx context.Context, c *Cache, key model.Key, loader func(ctx context.Context) (T, error), ttl time.Duration) (T, error) {
	return cache.GetOrSet(ctx, c.Service, key, loader, ttl)
}

// MonitorSSRPage times a page render of key, serving it from cache when possible.
func MonitorSSRPage[T any](ctx context.Context, c *Cache, key string, loader func(ctx context.Context) (T, error), opts SSROptions) (T, error) {
	return perf.MonitorSSRPage(ctx, c.Monitor, key, loader, opts)
}
