// Package perf is the Performance Monitor: it times operations, persists one
// sample per timed operation and aggregates samples into statistics.
package perf

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/magickit/go-magickit-cache/config"
	"github.com/magickit/go-magickit-cache/internal/cache"
	"github.com/magickit/go-magickit-cache/internal/metrics"
	"github.com/magickit/go-magickit-cache/model"
	"github.com/rs/zerolog"
)

const (
	ssrPrefix  = "ssr:"
	ssrMethod  = "GET"
	statusOK   = 200
	statusFail = 500
)

type Monitor struct {
	cfg    config.MonitorCfg
	cache  *cache.Service
	store  SampleStore
	clock  clock.Clock
	logger zerolog.Logger

	mu     sync.Mutex
	active map[string]time.Time // requestID -> start
}

func NewMonitor(cfg config.MonitorCfg, svc *cache.Service, store SampleStore, clk clock.Clock, logger zerolog.Logger) *Monitor {
	if clk == nil {
		clk = clock.New()
	}
	return &Monitor{
		cfg:    cfg,
		cache:  svc,
		store:  store,
		clock:  clk,
		logger: logger.With().Str("component", "perf").Logger(),
		active: make(map[string]time.Time),
	}
}

// StartTiming marks the start of requestID. Starting an id twice restarts it.
func (m *Monitor) StartTiming(requestID string) {
	m.mu.Lock()
	if _, ok := m.active[requestID]; !ok {
		metrics.ActiveRequests.Inc()
	}
	m.active[requestID] = m.clock.Now()
	m.mu.Unlock()
}

// EndOptions carries the optional facts of a finished operation.
type EndOptions struct {
	CacheHit      bool
	DBQueries     *int
	DBQueryTimeMs *float64
	ContentLength *int64
}

// EndTiming records the elapsed time since StartTiming(requestID). It returns
// false, recording nothing, when requestID was never started or already ended.
// A sample that cannot be persisted is logged and dropped.
func (m *Monitor) EndTiming(ctx context.Context, requestID, endpoint, method string, statusCode int, opts EndOptions) bool {
	now := m.clock.Now()

	m.mu.Lock()
	start, ok := m.active[requestID]
	delete(m.active, requestID)
	m.mu.Unlock()
	if !ok {
		m.logger.Debug().Str("request_id", requestID).Msg("end timing without start")
		return false
	}
	metrics.ActiveRequests.Dec()

	elapsed := now.Sub(start)
	metrics.RequestDuration.
		WithLabelValues(method, strconv.FormatBool(opts.CacheHit)).
		Observe(elapsed.Seconds())

	m.record(ctx, &Sample{
		RequestID:      requestID,
		Endpoint:       endpoint,
		Method:         method,
		ResponseTimeMs: float64(elapsed.Microseconds()) / 1000,
		CacheHit:       opts.CacheHit,
		StatusCode:     statusCode,
		Timestamp:      now.UnixMilli(),
		DBQueries:      opts.DBQueries,
		DBQueryTimeMs:  opts.DBQueryTimeMs,
		ContentLength:  opts.ContentLength,
	})
	return true
}

// ActiveRequests is the number of started but not ended timings.
func (m *Monitor) ActiveRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// SSROptions tunes MonitorSSRPage. A zero CacheKey means the page-render key of the page.
type SSROptions struct {
	CacheKey  model.Key
	CacheTTL  time.Duration
	SkipCache bool // read the cache but never write the result
}

// MonitorSSRPage times a render of key, serving it from cache when possible.
// A loader error is recorded with status 500 and returned unchanged.
func MonitorSSRPage[T any](ctx context.Context, m *Monitor, key string, loader func(ctx context.Context) (T, error), opts SSROptions) (T, error) {
	requestID := uuid.NewString()
	endpoint := ssrPrefix + key
	cacheKey := opts.CacheKey
	if cacheKey.IsZero() {
		cacheKey = model.PageRenderKey(key)
	}

	m.StartTiming(requestID)

	var (
		value T
		hit   bool
		err   error
	)
	if opts.SkipCache {
		if value, hit = cache.GetAs[T](ctx, m.cache, cacheKey); !hit {
			value, err = loader(ctx)
		}
	} else {
		value, hit, err = cache.Fetch(ctx, m.cache, cacheKey, loader, opts.CacheTTL)
	}

	if err != nil {
		m.EndTiming(ctx, requestID, endpoint, ssrMethod, statusFail, EndOptions{})
		var zero T
		return zero, err
	}
	m.EndTiming(ctx, requestID, endpoint, ssrMethod, statusOK, EndOptions{CacheHit: hit})
	return value, nil
}

// CleanupOldMetrics deletes samples older than daysToKeep days.
func (m *Monitor) CleanupOldMetrics(ctx context.Context, daysToKeep int) (int64, error) {
	cutoff := m.clock.Now().Add(-time.Duration(daysToKeep) * 24 * time.Hour)
	deleted, err := m.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	m.logger.Info().Int("days_to_keep", daysToKeep).Int64("deleted", deleted).Msg("old performance samples removed")
	return deleted, nil
}

func (m *Monitor) record(ctx context.Context, s *Sample) {
	if m.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.WriteTimeout)
		defer cancel()
	}
	if err := m.store.Insert(ctx, s); err != nil {
		metrics.SampleWriteErrors.Inc()
		m.logger.Warn().Err(err).Str("endpoint", s.Endpoint).Msg("performance sample dropped")
	}
}
