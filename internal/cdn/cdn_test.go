package cdn

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/magickit/go-magickit-cache/config"
	"github.com/magickit/go-magickit-cache/internal/cache"
	"github.com/magickit/go-magickit-cache/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestHelper(t *testing.T, cfg config.CDNCfg) (*Helper, *cache.Service) {
	t.Helper()
	clk := clock.NewMock()
	svc := cache.New(config.Default(), nil, clk, zerolog.Nop())
	return New(cfg, svc, clk, zerolog.Nop()), svc
}

// TestGetMediaURL_CDN builds absolute URLs with sorted query parameters.
func TestGetMediaURL_CDN(t *testing.T) {
	h, _ := newTestHelper(t, config.CDNCfg{Enabled: true, Domain: "cdn.example.com"})

	require.Equal(t, "https://cdn.example.com/uploads/a.jpg", h.GetMediaURL("uploads/a.jpg", MediaOptions{}))
	require.Equal(t,
		"https://cdn.example.com/uploads/a.jpg?f=webp&h=200&q=80&v=thumb&w=300",
		h.GetMediaURL("/uploads/a.jpg", MediaOptions{Width: 300, Height: 200, Quality: 80, Format: "webp", Variant: "thumb"}),
	)
	require.Equal(t, h.GetMediaURL("x.png", MediaOptions{Width: 1}), h.GetMediaURL("x.png", MediaOptions{Width: 1}))
}

// TestGetMediaURL_Local falls back to the local prefix.
func TestGetMediaURL_Local(t *testing.T) {
	h, _ := newTestHelper(t, config.CDNCfg{LocalPrefix: "/files/"})

	require.Equal(t, "/files/uploads/a.jpg", h.GetMediaURL("uploads/a.jpg", MediaOptions{}))
	require.Equal(t, "/files/uploads/a.jpg?w=64", h.GetMediaURL("uploads/a.jpg", MediaOptions{Width: 64}))
	require.Equal(t, "/files/my%20file.pdf", h.GetMediaURL("my file.pdf", MediaOptions{}))
}

// TestGetCacheHeaders maps MIME categories to policies.
func TestGetCacheHeaders(t *testing.T) {
	tests := []struct {
		mime     string
		expected string
	}{
		{"image/png", "public, max-age=31536000, immutable"},
		{"IMAGE/JPEG", "public, max-age=31536000, immutable"},
		{"video/mp4", "public, max-age=31536000, immutable"},
		{"application/pdf", "public, max-age=86400"},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "public, max-age=86400"},
		{"text/plain", "public, max-age=86400"},
		{"application/octet-stream", "public, max-age=31536000, immutable"},
		{"", "public, max-age=31536000, immutable"},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			require.Equal(t, tt.expected, GetCacheHeaders(tt.mime))
		})
	}
}

// TestInvalidateCache_Mocked succeeds without a purge endpoint and leaves an audit record.
func TestInvalidateCache_Mocked(t *testing.T) {
	ctx := context.Background()
	h, svc := newTestHelper(t, config.CDNCfg{PurgeAuditTTL: time.Hour})

	res, err := h.InvalidateCache(ctx, PurgeRequest{Paths: []string{"/a.jpg"}, Reason: "replaced"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, res.Mocked)
	require.NotEmpty(t, res.ID)

	audit, ok := cache.GetAs[PurgeResult](ctx, svc, model.CDNPurgeKey(res.ID))
	require.True(t, ok)
	require.Equal(t, res, audit)
}

// TestInvalidateCache_NoPaths is rejected.
func TestInvalidateCache_NoPaths(t *testing.T) {
	h, _ := newTestHelper(t, config.CDNCfg{})
	_, err := h.InvalidateCache(context.Background(), PurgeRequest{})
	require.ErrorIs(t, err, ErrNoPaths)
}

// TestInvalidateCache_Endpoint posts the request with the bearer token.
func TestInvalidateCache_Endpoint(t *testing.T) {
	var got PurgeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	h, _ := newTestHelper(t, config.CDNCfg{
		PurgeEndpoint: srv.URL,
		PurgeToken:    "secret",
		PurgeRate:     100,
		PurgeTimeout:  time.Second,
		PurgeAuditTTL: time.Hour,
	})

	res, err := h.InvalidateCache(context.Background(), PurgeRequest{Paths: []string{"/a", "/b"}, Reason: "deploy"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.False(t, res.Mocked)
	require.Equal(t, PurgeRequest{Paths: []string{"/a", "/b"}, Reason: "deploy"}, got)
}

// TestInvalidateCache_EndpointFailure reports the provider error and audits it.
func TestInvalidateCache_EndpointFailure(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	h, svc := newTestHelper(t, config.CDNCfg{PurgeEndpoint: srv.URL, PurgeTimeout: time.Second, PurgeAuditTTL: time.Hour})

	res, err := h.InvalidateCache(ctx, PurgeRequest{Paths: []string{"/a"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
	require.False(t, res.Success)

	audit, ok := cache.GetAs[PurgeResult](ctx, svc, model.CDNPurgeKey(res.ID))
	require.True(t, ok)
	require.Contains(t, audit.Error, "quota exceeded")
}

// TestInvalidateCache_WaitHonorsContext gives up on a purge slot when ctx ends.
func TestInvalidateCache_WaitHonorsContext(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	h, svc := newTestHelper(t, config.CDNCfg{PurgeEndpoint: srv.URL, PurgeRate: 1, PurgeTimeout: time.Second, PurgeAuditTTL: time.Hour})

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := h.InvalidateCache(canceled, PurgeRequest{Paths: []string{"/a"}})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, res.Success)
	require.Equal(t, int64(0), calls.Load())

	_, ok := cache.GetAs[PurgeResult](context.Background(), svc, model.CDNPurgeKey(res.ID))
	require.True(t, ok, "abandoned purges are audited too")

	// the first slot is free, the next one is about a second away
	_, err = h.InvalidateCache(context.Background(), PurgeRequest{Paths: []string{"/a"}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = h.InvalidateCache(ctx, PurgeRequest{Paths: []string{"/b"}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 500*time.Millisecond)
	require.Equal(t, int64(1), calls.Load())
}
