// Package cache is the Cache Service: the single entry point combining the
// in-process TTL store and the optional external backend.
//
// Reads try the external tier first when it is connected and fall through to
// the in-process tier; writes always land in the in-process tier and, best
// effort, in the external one. A value found only in the external tier is not
// copied down. Backend failures never reach callers: they are logged, counted
// and turned into misses or no-ops by softly.
package cache

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/magickit/go-magickit-cache/config"
	"github.com/magickit/go-magickit-cache/internal/backend"
	"github.com/magickit/go-magickit-cache/internal/cache/db"
	entrymodel "github.com/magickit/go-magickit-cache/internal/cache/db/model"
	"github.com/magickit/go-magickit-cache/internal/metrics"
	"github.com/magickit/go-magickit-cache/model"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Cacher is the untyped surface other components depend on.
type Cacher interface {
	Get(ctx context.Context, key model.Key) (value any, found bool)
	Set(ctx context.Context, key model.Key, value any, ttl time.Duration)
	Delete(ctx context.Context, key model.Key) bool
	Clear(ctx context.Context)
	ClearByPattern(ctx context.Context, pattern model.Pattern) (removed int64)
	Stats(ctx context.Context) Stats
	HitRate() float64
	Counters() (hits, misses int64)
	Sweep() (removed int64)
	Len() int64
	Mem() int64
}

// Service respects given ctx on every backend round trip; loaders receive the caller's ctx.
type Service struct {
	cfg      *config.Cache
	db       *db.Map
	backend  backend.Backend
	clock    clock.Clock
	logger   zerolog.Logger
	counters *counters
	group    *singleflight.Group // nil unless coalescing is enabled
}

func New(cfg *config.Cache, b backend.Backend, clk clock.Clock, logger zerolog.Logger) *Service {
	if b == nil {
		b = backend.NoOp{}
	}
	if clk == nil {
		clk = clock.New()
	}
	s := &Service{
		cfg:      cfg,
		db:       db.NewMap(),
		backend:  b,
		clock:    clk,
		logger:   logger.With().Str("component", "cache").Logger(),
		counters: newCounters(),
	}
	if cfg.DB.Coalesce {
		s.group = &singleflight.Group{}
	}
	return s
}

// Get returns the cached value. External hits are decoded from their transport
// form, so structured values come back as generic maps and slices.
func (s *Service) Get(ctx context.Context, key model.Key) (any, bool) {
	return lookup[any](ctx, s, key)
}

// Set writes the in-process tier unconditionally and the external tier when it
// is connected. A non-positive ttl means the configured default.
func (s *Service) Set(ctx context.Context, key model.Key, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.cfg.DB.DefaultTTL
	}
	k := key.String()

	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", k).Msg("value is not serializable, stored in memory only")
	}
	s.db.Set(k, entrymodel.NewEntry(k, value, s.clock.Now(), ttl, int64(len(data))))

	if err == nil && s.backend.Connected() {
		s.softly("set", k, s.backend.Set(ctx, k, data, ttl))
	}
}

// Delete removes key from both tiers and reports whether either tier had it.
func (s *Service) Delete(ctx context.Context, key model.Key) bool {
	k := key.String()
	_, local := s.db.Remove(k, s.clock.Now())

	var remote bool
	if s.backend.Connected() {
		deleted, err := s.backend.Delete(ctx, k)
		remote = s.softly("delete", k, err) && deleted
	}
	return local || remote
}

func (s *Service) Clear(ctx context.Context) {
	s.db.Clear()
	if s.backend.Connected() {
		s.softly("clear", "", s.backend.Clear(ctx))
	}
}

// ClearByPattern deletes every key matching pattern from both tiers and returns
// the number of in-process entries removed. A failure in the external tier
// leaves its remaining matches to expire on their own.
func (s *Service) ClearByPattern(ctx context.Context, pattern model.Pattern) (removed int64) {
	removed = s.db.RemoveMatching(pattern.Match)

	if s.backend.Connected() {
		deleted, err := s.backend.DeleteByPattern(ctx, pattern.BackendGlob(), pattern.Match)
		if s.softly("delete_by_pattern", pattern.String(), err) {
			s.logger.Debug().Str("pattern", pattern.String()).Int64("local", removed).Int64("remote", deleted).Msg("pattern cleared")
		}
	}
	return removed
}

// WarmUpEntry is one value to preload.
type WarmUpEntry struct {
	Key    model.Key
	Loader func(ctx context.Context) (any, error)
	TTL    time.Duration
}

// WarmUp runs all loaders concurrently (bounded by DB.WarmUpConcurrency) and caches
// successful results. Failed loaders are logged and skipped; the number of
// loaded entries is returned.
func (s *Service) WarmUp(ctx context.Context, entries []WarmUpEntry) (loaded int) {
	var (
		g    errgroup.Group
		done = make([]bool, len(entries))
	)
	g.SetLimit(max(s.cfg.DB.WarmUpConcurrency, 1))

	for i, e := range entries {
		g.Go(func() error {
			value, err := e.Loader(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Str("key", e.Key.String()).Msg("warm-up loader failed")
				return nil
			}
			s.Set(ctx, e.Key, value, e.TTL)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	for _, ok := range done {
		if ok {
			loaded++
		}
	}
	s.logger.Info().Int("requested", len(entries)).Int("loaded", loaded).Msg("cache warm-up finished")
	return loaded
}

// MemoryStats describes the in-process tier. Sizes are approximate:
// key length plus serialized value length per entry.
type MemoryStats struct {
	Size        int      `json:"size"`
	Keys        []string `json:"keys"`
	ApproxBytes int64    `json:"approxBytes"`
}

type Stats struct {
	Memory  MemoryStats    `json:"memory"`
	Backend *backend.Stats `json:"backend,omitempty"` // nil when the external tier is unavailable
	Hits    int64          `json:"hits"`
	Misses  int64          `json:"misses"`
	HitRate float64        `json:"hitRate"`
}

// Stats is a read-only snapshot; expired entries not swept yet are not counted.
func (s *Service) Stats(ctx context.Context) Stats {
	keys, weight := s.db.Live(s.clock.Now())
	hits, misses := s.counters.snapshot()

	stats := Stats{
		Memory:  MemoryStats{Size: len(keys), Keys: keys, ApproxBytes: weight},
		Hits:    hits,
		Misses:  misses,
		HitRate: s.counters.hitRate(),
	}
	if s.backend.Connected() {
		if bs, err := s.backend.Stats(ctx); s.softly("stats", "", err) {
			stats.Backend = &bs
		}
	}
	return stats
}

// Sweep drops every expired in-process entry, read or not.
func (s *Service) Sweep() int64 { return s.db.Sweep(s.clock.Now()) }

func (s *Service) HitRate() float64               { return s.counters.hitRate() }
func (s *Service) Counters() (hits, misses int64) { return s.counters.snapshot() }
func (s *Service) Len() int64                     { return s.db.Len() }
func (s *Service) Mem() int64                     { return s.db.Mem() }
func (s *Service) Clock() clock.Clock             { return s.clock }
func (s *Service) BackendConnected() bool         { return s.backend.Connected() }

// softly is the one place where backend errors become misses and no-ops.
func (s *Service) softly(op, key string, err error) bool {
	if err == nil {
		return true
	}
	metrics.BackendErrors.WithLabelValues(op).Inc()
	s.logger.Warn().Err(err).Str("op", op).Str("key", key).Msg("cache backend operation failed, using memory tier")
	return false
}
