// Package cdn derives media URLs and cache-control policies and dispatches
// purge requests to the CDN provider.
package cdn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/magickit/go-magickit-cache/config"
	"github.com/magickit/go-magickit-cache/internal/metrics"
	"github.com/magickit/go-magickit-cache/model"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/ratelimit"
)

var ErrNoPaths = errors.New("cdn purge: no paths given")

// Cache-Control policies by coarse MIME category.
const (
	CacheControlImage    = "public, max-age=31536000, immutable"
	CacheControlVideo    = "public, max-age=31536000, immutable"
	CacheControlDocument = "public, max-age=86400"
	CacheControlDefault  = "public, max-age=31536000, immutable"
)

// Recorder stores purge audit records.
type Recorder interface {
	Set(ctx context.Context, key model.Key, value any, ttl time.Duration)
}

type Helper struct {
	cfg     config.CDNCfg
	audit   Recorder
	client  *http.Client
	limiter ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
	clock   clock.Clock
	logger  zerolog.Logger
}

func New(cfg config.CDNCfg, audit Recorder, clk clock.Clock, logger zerolog.Logger) *Helper {
	if clk == nil {
		clk = clock.New()
	}
	limiter := ratelimit.NewUnlimited()
	if cfg.PurgeRate > 0 {
		limiter = ratelimit.New(cfg.PurgeRate)
	}
	h := &Helper{
		cfg:     cfg,
		audit:   audit,
		client:  &http.Client{Timeout: cfg.PurgeTimeout},
		limiter: limiter,
		clock:   clk,
		logger:  logger.With().Str("component", "cdn").Logger(),
	}
	h.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "cdn-purge",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			h.logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state transition")
			metrics.BackendBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return h
}

// MediaOptions are optional transformation hints appended as query parameters.
type MediaOptions struct {
	Width   int
	Height  int
	Quality int
	Format  string
	Variant string
}

// GetMediaURL builds the public URL of a stored media object. It never touches the network.
func (h *Helper) GetMediaURL(key string, opts MediaOptions) string {
	u := url.URL{RawQuery: opts.query().Encode()}
	key = strings.TrimPrefix(key, "/")

	if h.cfg.Enabled {
		u.Scheme = "https"
		u.Host = h.cfg.Domain
		u.Path = "/" + key
	} else {
		u.Path = strings.TrimSuffix(h.cfg.LocalPrefix, "/") + "/" + key
	}
	return u.String()
}

func (o MediaOptions) query() url.Values {
	q := url.Values{}
	if o.Width > 0 {
		q.Set("w", strconv.Itoa(o.Width))
	}
	if o.Height > 0 {
		q.Set("h", strconv.Itoa(o.Height))
	}
	if o.Quality > 0 {
		q.Set("q", strconv.Itoa(o.Quality))
	}
	if o.Format != "" {
		q.Set("f", o.Format)
	}
	if o.Variant != "" {
		q.Set("v", o.Variant)
	}
	return q
}

// GetCacheHeaders returns the Cache-Control value for a MIME type.
func GetCacheHeaders(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return CacheControlImage
	case strings.HasPrefix(mimeType, "video/"):
		return CacheControlVideo
	case isDocument(mimeType):
		return CacheControlDocument
	default:
		return CacheControlDefault
	}
}

func isDocument(mimeType string) bool {
	return mimeType == "application/pdf" ||
		mimeType == "application/msword" ||
		strings.HasPrefix(mimeType, "application/vnd.") ||
		strings.HasPrefix(mimeType, "text/")
}

type PurgeRequest struct {
	Paths  []string `json:"paths"`
	Reason string   `json:"reason,omitempty"`
}

// PurgeResult is returned to the caller and kept as the audit record.
type PurgeResult struct {
	ID          string    `json:"id"`
	Success     bool      `json:"success"`
	Mocked      bool      `json:"mocked"`
	Paths       []string  `json:"paths"`
	Reason      string    `json:"reason,omitempty"`
	Error       string    `json:"error,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// InvalidateCache asks the CDN to drop paths. Without a configured purge endpoint
// the request is acknowledged as a successful mock. Every attempt is recorded
// under its cdn-purge key for PurgeAuditTTL.
//
// Purging is best effort: a provider failure is already logged and kept in the
// result and the audit record, so callers may ignore the returned error. Only
// ErrNoPaths means nothing was attempted.
func (h *Helper) InvalidateCache(ctx context.Context, req PurgeRequest) (PurgeResult, error) {
	if len(req.Paths) == 0 {
		return PurgeResult{}, ErrNoPaths
	}

	res := PurgeResult{
		ID:          uuid.NewString(),
		Paths:       req.Paths,
		Reason:      req.Reason,
		RequestedAt: h.clock.Now(),
	}

	var err error
	if h.cfg.PurgeEndpoint == "" {
		res.Success, res.Mocked = true, true
		metrics.CDNPurges.WithLabelValues("mocked").Inc()
	} else {
		if err = h.wait(ctx); err == nil {
			_, err = h.breaker.Execute(func() (struct{}, error) { return struct{}{}, h.purge(ctx, req) })
		}
		if err != nil {
			res.Error = err.Error()
			metrics.CDNPurges.WithLabelValues("failure").Inc()
			h.logger.Warn().Err(err).Str("purge_id", res.ID).Int("paths", len(req.Paths)).Msg("cdn purge failed")
		} else {
			res.Success = true
			metrics.CDNPurges.WithLabelValues("success").Inc()
		}
	}

	if h.audit != nil {
		h.audit.Set(context.WithoutCancel(ctx), model.CDNPurgeKey(res.ID), res, h.cfg.PurgeAuditTTL)
	}
	h.logger.Info().Str("purge_id", res.ID).Bool("success", res.Success).Bool("mocked", res.Mocked).
		Int("paths", len(req.Paths)).Str("reason", req.Reason).Msg("cdn purge requested")

	return res, err
}

// wait takes a purge slot unless ctx ends first. An abandoned wait still
// consumes its slot once the limiter releases it.
func (h *Helper) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("wait for purge slot: %w", err)
	}
	taken := make(chan struct{})
	go func() {
		h.limiter.Take()
		close(taken)
	}()
	select {
	case <-taken:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for purge slot: %w", ctx.Err())
	}
}

func (h *Helper) purge(ctx context.Context, req PurgeRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode purge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.PurgeEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build purge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.cfg.PurgeToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.cfg.PurgeToken)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send purge request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("purge rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
