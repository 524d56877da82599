package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	magickit "github.com/magickit/go-magickit-cache"
	"github.com/magickit/go-magickit-cache/config"
	"github.com/magickit/go-magickit-cache/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *magickit.Cache) {
	t.Helper()
	cfg := config.Default()
	cfg.Monitor.DSN = ":memory:"

	c, err := magickit.New(context.Background(), cfg, zerolog.Nop(), magickit.WithClock(clock.NewMock()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return newRouter(c, zerolog.Nop()), c
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

// TestRoutes_Health reports status and backend state.
func TestRoutes_Health(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := get(t, h, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","backendConnected":false,"entries":0}`, rec.Body.String())
}

// TestRoutes_Stats renders the cache snapshot.
func TestRoutes_Stats(t *testing.T) {
	h, c := newTestRouter(t)
	c.Set(context.Background(), model.ContentKey("home"), "x", time.Minute)

	rec := get(t, h, "/stats/")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats magickit.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 1, stats.Memory.Size)
	require.Equal(t, []string{"content:home"}, stats.Memory.Keys)
	require.Nil(t, stats.Backend)
}

// TestRoutes_Performance validates the window and returns aggregates.
func TestRoutes_Performance(t *testing.T) {
	h, c := newTestRouter(t)
	c.Monitor.StartTiming("r1")
	require.True(t, c.Monitor.EndTiming(context.Background(), "r1", "/x", "GET", 200, magickit.EndOptions{}))

	rec := get(t, h, "/stats/performance")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"totalRequests":1`)

	rec = get(t, h, "/stats/performance?from=yesterday")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, h, "/stats/realtime")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"activeRequests":0`)
}

// TestRoutes_Metrics exposes prometheus collectors.
func TestRoutes_Metrics(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "magickit_cache_hits_total"))
}
