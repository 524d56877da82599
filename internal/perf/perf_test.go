package perf

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/magickit/go-magickit-cache/config"
	"github.com/magickit/go-magickit-cache/internal/cache"
	"github.com/magickit/go-magickit-cache/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var now0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := OpenSQLite(":memory:", zerolog.Nop())
	require.NoError(t, err)
	store, err := NewGormStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestMonitor(t *testing.T) (*Monitor, *cache.Service, *GormStore, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(now0)
	svc := cache.New(config.Default(), nil, clk, zerolog.Nop())
	store := newTestStore(t)
	return NewMonitor(config.Default().Monitor, svc, store, clk, zerolog.Nop()), svc, store, clk
}

// TestPercentile picks index-based values without interpolation.
func TestPercentile(t *testing.T) {
	samples := make([]Sample, 0, 100)
	for i := 100; i >= 1; i-- {
		samples = append(samples, Sample{Endpoint: "/x", ResponseTimeMs: float64(i * 10), StatusCode: 200})
	}

	stats := computeStats(samples)
	require.Equal(t, 100, stats.TotalRequests)
	require.Equal(t, float64(960), stats.P95ResponseTimeMs, "value at sorted index 95")
	require.Equal(t, float64(1000), stats.P99ResponseTimeMs)
	require.InDelta(t, 505.0, stats.AvgResponseTimeMs, 1e-9)
}

// TestComputeStats_Empty yields all-zero stats.
func TestComputeStats_Empty(t *testing.T) {
	stats := computeStats(nil)
	require.Equal(t, PerformanceStats{SlowestEndpoints: []EndpointStat{}}, stats)
	require.Equal(t, float64(0), percentile(nil, 0.95))
}

// TestComputeStats_RatesAndSlowest covers rates and endpoint ranking.
func TestComputeStats_RatesAndSlowest(t *testing.T) {
	var samples []Sample
	for i := 0; i < 12; i++ {
		ep := fmt.Sprintf("/ep%02d", i)
		samples = append(samples,
			Sample{Endpoint: ep, ResponseTimeMs: float64(i), StatusCode: 200, CacheHit: true},
			Sample{Endpoint: ep, ResponseTimeMs: float64(i + 2), StatusCode: 200},
		)
	}
	samples[0].StatusCode = 500
	samples[1].StatusCode = 404

	stats := computeStats(samples)
	require.Equal(t, 24, stats.TotalRequests)
	require.InDelta(t, 50.0, stats.CacheHitRate, 1e-9)
	require.InDelta(t, 100.0*2/24, stats.ErrorRate, 1e-9)

	require.Len(t, stats.SlowestEndpoints, 10)
	require.Equal(t, "/ep11", stats.SlowestEndpoints[0].Endpoint)
	require.InDelta(t, 12.0, stats.SlowestEndpoints[0].AvgResponseTimeMs, 1e-9)
	require.Equal(t, 2, stats.SlowestEndpoints[0].Requests)
	require.Equal(t, "/ep02", stats.SlowestEndpoints[9].Endpoint)
}

// TestComputeStats_TieBreak orders equal means by endpoint name.
func TestComputeStats_TieBreak(t *testing.T) {
	stats := computeStats([]Sample{
		{Endpoint: "/b", ResponseTimeMs: 5},
		{Endpoint: "/a", ResponseTimeMs: 5},
	})
	require.Equal(t, "/a", stats.SlowestEndpoints[0].Endpoint)
	require.Equal(t, "/b", stats.SlowestEndpoints[1].Endpoint)
}

// TestMonitor_TimingPair persists one sample per matched pair.
func TestMonitor_TimingPair(t *testing.T) {
	ctx := context.Background()
	m, _, store, clk := newTestMonitor(t)

	m.StartTiming("r1")
	require.Equal(t, 1, m.ActiveRequests())

	clk.Add(120 * time.Millisecond)
	queries := 3
	require.True(t, m.EndTiming(ctx, "r1", "/api/content", "GET", 200, EndOptions{CacheHit: true, DBQueries: &queries}))
	require.Equal(t, 0, m.ActiveRequests())

	samples, err := store.Range(ctx, now0, clk.Now(), "")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.Equal(t, "/api/content", samples[0].Endpoint)
	require.Equal(t, "GET", samples[0].Method)
	require.InDelta(t, 120.0, samples[0].ResponseTimeMs, 1e-9)
	require.True(t, samples[0].CacheHit)
	require.Equal(t, 200, samples[0].StatusCode)
	require.NotNil(t, samples[0].DBQueries)
	require.Equal(t, 3, *samples[0].DBQueries)
	require.Nil(t, samples[0].ContentLength)
	require.Equal(t, clk.Now().UnixMilli(), samples[0].Timestamp)
}

// TestMonitor_EndWithoutStart records nothing and reports false.
func TestMonitor_EndWithoutStart(t *testing.T) {
	ctx := context.Background()
	m, _, store, clk := newTestMonitor(t)

	require.False(t, m.EndTiming(ctx, "unknown", "/x", "GET", 200, EndOptions{}))

	m.StartTiming("r1")
	require.True(t, m.EndTiming(ctx, "r1", "/x", "GET", 200, EndOptions{}))
	require.False(t, m.EndTiming(ctx, "r1", "/x", "GET", 200, EndOptions{}), "second end is unpaired")

	samples, err := store.Range(ctx, now0, clk.Now(), "")
	require.NoError(t, err)
	require.Len(t, samples, 1)
}

type failingStore struct{ SampleStore }

func (failingStore) Insert(context.Context, *Sample) error { return errors.New("disk full") }

// TestMonitor_StoreFailureIsSoft still reports the pair as matched.
func TestMonitor_StoreFailureIsSoft(t *testing.T) {
	clk := clock.NewMock()
	svc := cache.New(config.Default(), nil, clk, zerolog.Nop())
	m := NewMonitor(config.Default().Monitor, svc, failingStore{}, clk, zerolog.Nop())

	m.StartTiming("r1")
	require.True(t, m.EndTiming(context.Background(), "r1", "/x", "GET", 200, EndOptions{}))
}

// TestMonitorSSRPage caches renders and records hit and miss samples.
func TestMonitorSSRPage(t *testing.T) {
	ctx := context.Background()
	m, svc, store, clk := newTestMonitor(t)

	var renders int
	render := func(context.Context) (string, error) {
		renders++
		clk.Add(40 * time.Millisecond)
		return "<h1>Home</h1>", nil
	}

	html, err := MonitorSSRPage(ctx, m, "home", render, SSROptions{CacheTTL: time.Minute})
	require.NoError(t, err)
	require.Equal(t, "<h1>Home</h1>", html)

	html, err = MonitorSSRPage(ctx, m, "home", render, SSROptions{CacheTTL: time.Minute})
	require.NoError(t, err)
	require.Equal(t, "<h1>Home</h1>", html)
	require.Equal(t, 1, renders)

	cached, ok := cache.GetAs[string](ctx, svc, model.PageRenderKey("home"))
	require.True(t, ok)
	require.Equal(t, html, cached)

	samples, err := store.Range(ctx, now0, clk.Now(), "ssr:home")
	require.NoError(t, err)
	require.Len(t, samples, 2)
	require.False(t, samples[0].CacheHit)
	require.InDelta(t, 40.0, samples[0].ResponseTimeMs, 1e-9)
	require.True(t, samples[1].CacheHit)
	require.Equal(t, 0, m.ActiveRequests())
}

// TestMonitorSSRPage_CustomKeyAndSkipCache reads the given key and never writes it.
func TestMonitorSSRPage_CustomKeyAndSkipCache(t *testing.T) {
	ctx := context.Background()
	m, svc, _, _ := newTestMonitor(t)
	key := model.APIResponseKey("preview", nil)

	v, err := MonitorSSRPage(ctx, m, "preview", func(context.Context) (int, error) { return 1, nil },
		SSROptions{CacheKey: key, SkipCache: true})
	require.NoError(t, err)
	require.Equal(t, 1, v)

	_, ok := svc.Get(ctx, key)
	require.False(t, ok)

	svc.Set(ctx, key, 2, time.Minute)
	v, err = MonitorSSRPage(ctx, m, "preview", func(context.Context) (int, error) { return 3, nil },
		SSROptions{CacheKey: key, SkipCache: true})
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

// TestMonitorSSRPage_LoaderError records a 500 and re-raises.
func TestMonitorSSRPage_LoaderError(t *testing.T) {
	ctx := context.Background()
	m, svc, store, clk := newTestMonitor(t)
	boom := errors.New("render failed")

	_, err := MonitorSSRPage(ctx, m, "broken", func(context.Context) (string, error) { return "", boom }, SSROptions{})
	require.ErrorIs(t, err, boom)

	_, ok := svc.Get(ctx, model.PageRenderKey("broken"))
	require.False(t, ok)

	samples, err := store.Range(ctx, now0, clk.Now(), "ssr:broken")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.Equal(t, 500, samples[0].StatusCode)
	require.False(t, samples[0].CacheHit)
}

// TestMonitor_GetPerformanceStats filters by window and endpoint.
func TestMonitor_GetPerformanceStats(t *testing.T) {
	ctx := context.Background()
	m, _, store, _ := newTestMonitor(t)

	for i, s := range []Sample{
		{Endpoint: "/a", Method: "GET", ResponseTimeMs: 10, StatusCode: 200, Timestamp: now0.Add(-2 * time.Hour).UnixMilli()},
		{Endpoint: "/a", Method: "GET", ResponseTimeMs: 20, StatusCode: 200, CacheHit: true, Timestamp: now0.UnixMilli()},
		{Endpoint: "/b", Method: "GET", ResponseTimeMs: 40, StatusCode: 503, Timestamp: now0.Add(time.Minute).UnixMilli()},
	} {
		s.RequestID = fmt.Sprint(i)
		require.NoError(t, store.Insert(ctx, &s))
	}

	stats, err := m.GetPerformanceStats(ctx, now0.Add(-time.Hour), now0.Add(time.Hour), "")
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalRequests)
	require.InDelta(t, 30.0, stats.AvgResponseTimeMs, 1e-9)
	require.InDelta(t, 50.0, stats.CacheHitRate, 1e-9)
	require.InDelta(t, 50.0, stats.ErrorRate, 1e-9)
	require.Equal(t, "/b", stats.SlowestEndpoints[0].Endpoint)

	stats, err = m.GetPerformanceStats(ctx, now0.Add(-3*time.Hour), now0.Add(time.Hour), "/a")
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalRequests)

	stats, err = m.GetPerformanceStats(ctx, now0.Add(24*time.Hour), now0.Add(48*time.Hour), "")
	require.NoError(t, err)
	require.Equal(t, 0, stats.TotalRequests)
	require.Empty(t, stats.SlowestEndpoints)
}

// TestMonitor_GetRealTimeMetrics reports in-flight, recent mean and last-minute count.
func TestMonitor_GetRealTimeMetrics(t *testing.T) {
	ctx := context.Background()
	m, svc, store, clk := newTestMonitor(t)

	for _, s := range []Sample{
		{Endpoint: "/old", ResponseTimeMs: 1000, Timestamp: now0.Add(-10 * time.Minute).UnixMilli()},
		{Endpoint: "/a", ResponseTimeMs: 10, Timestamp: now0.Add(-3 * time.Minute).UnixMilli()},
		{Endpoint: "/a", ResponseTimeMs: 30, Timestamp: now0.Add(-30 * time.Second).UnixMilli()},
	} {
		require.NoError(t, store.Insert(ctx, &s))
	}

	_, _ = cache.GetOrSet(ctx, svc, model.RawKey("k"), func(context.Context) (int, error) { return 1, nil }, time.Minute)
	_, _ = cache.GetOrSet(ctx, svc, model.RawKey("k"), func(context.Context) (int, error) { return 1, nil }, time.Minute)

	m.StartTiming("in-flight")
	require.Equal(t, now0, clk.Now())

	rt, err := m.GetRealTimeMetrics(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rt.ActiveRequests)
	require.InDelta(t, 20.0, rt.AvgResponseTimeMs, 1e-9)
	require.Equal(t, 1, rt.RequestsLastMinute)
	require.InDelta(t, 50.0, rt.CacheHitRate, 1e-9)
}

// TestMonitor_CleanupOldMetrics removes samples past retention.
func TestMonitor_CleanupOldMetrics(t *testing.T) {
	ctx := context.Background()
	m, _, store, _ := newTestMonitor(t)

	for _, age := range []time.Duration{40 * 24 * time.Hour, 31 * 24 * time.Hour, 2 * 24 * time.Hour} {
		require.NoError(t, store.Insert(ctx, &Sample{Endpoint: "/a", Method: "GET", Timestamp: now0.Add(-age).UnixMilli()}))
	}

	deleted, err := m.CleanupOldMetrics(ctx, 30)
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	left, err := store.Range(ctx, now0.Add(-100*24*time.Hour), now0, "")
	require.NoError(t, err)
	require.Len(t, left, 1)
}
