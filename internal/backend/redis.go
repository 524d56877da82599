package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/magickit/go-magickit-cache/config"
	"github.com/magickit/go-magickit-cache/internal/metrics"
	"github.com/magickit/go-magickit-cache/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	breakerName = "cache-backend"
	scanCount   = 500
)

// Redis is the external tier adapter. Every command runs under a bounded
// timeout and a circuit breaker, and a background ping keeps the connected flag fresh.
type Redis struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cfg       config.BackendCfg
	logger    zerolog.Logger
	client    *redis.Client
	breaker   *gobreaker.CircuitBreaker[any]
	connected atomic.Bool
	opTimeout time.Duration
}

// NewRedis connects with one bounded ping and keeps probing in the background
// until ctx is done or Close is called.
func NewRedis(ctx context.Context, cfg config.BackendCfg, logger zerolog.Logger) *Redis {
	ctx, cancel := context.WithCancel(ctx)
	logger = logger.With().Str("component", "backend").Str("addr", cfg.Addr()).Logger()

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = -1 // go-redis treats 0 as "default"
	}

	r := &Redis{
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		logger:    logger,
		opTimeout: cfg.Timeout*time.Duration(max(cfg.MaxRetries, 0)+1) + cfg.RetryDelay*time.Duration(max(cfg.MaxRetries, 0)),
	}
	r.client = redis.NewClient(&redis.Options{
		Addr:            cfg.Addr(),
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      maxRetries,
		MinRetryBackoff: cfg.RetryDelay,
		MaxRetryBackoff: cfg.RetryDelay * 8,
		DialTimeout:     cfg.Timeout,
		ReadTimeout:     cfg.Timeout,
		WriteTimeout:    cfg.Timeout,
	})
	r.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state transition")
			metrics.BackendBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	if r.ping(); !r.Connected() {
		r.logger.Warn().Msg("cache backend unreachable at startup, serving from memory only")
	}
	go r.health()

	return r
}

func (r *Redis) Connected() bool { return r.connected.Load() }

func (r *Redis) Close() error {
	r.cancel()
	r.setConnected(false, nil)
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := r.do(ctx, "get", func(ctx context.Context) (any, error) {
		return r.client.Get(ctx, r.key(key)).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return res.([]byte), true, nil
}

func (r *Redis) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	_, err := r.do(ctx, "set", func(ctx context.Context) (any, error) {
		return nil, r.client.Set(ctx, r.key(key), data, ttl).Err()
	})
	return err
}

func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	res, err := r.do(ctx, "delete", func(ctx context.Context) (any, error) {
		return r.client.Del(ctx, r.key(key)).Result()
	})
	if err != nil {
		return false, err
	}
	return res.(int64) > 0, nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if r.cfg.KeyPrefix != "" {
		_, err := r.DeleteByPattern(ctx, "*", nil)
		return err
	}
	_, err := r.do(ctx, "clear", func(ctx context.Context) (any, error) {
		return nil, r.client.FlushDB(ctx).Err()
	})
	return err
}

func (r *Redis) DeleteByPattern(ctx context.Context, glob string, match func(key string) bool) (int64, error) {
	var (
		cursor  uint64
		deleted int64
		pattern = model.EscapeGlob(r.cfg.KeyPrefix) + glob
	)
	for {
		res, err := r.do(ctx, "scan", func(ctx context.Context) (any, error) {
			keys, next, err := r.client.Scan(ctx, cursor, pattern, scanCount).Result()
			return scanPage{keys: keys, next: next}, err
		})
		if err != nil {
			return deleted, err
		}
		page := res.(scanPage)

		victims := make([]string, 0, len(page.keys))
		for _, k := range page.keys {
			if match == nil || match(strings.TrimPrefix(k, r.cfg.KeyPrefix)) {
				victims = append(victims, k)
			}
		}
		if len(victims) > 0 {
			n, err := r.do(ctx, "delete_by_pattern", func(ctx context.Context) (any, error) {
				return r.client.Del(ctx, victims...).Result()
			})
			if err != nil {
				return deleted, err
			}
			deleted += n.(int64)
		}

		cursor = page.next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	res, err := r.do(ctx, "dbsize", func(ctx context.Context) (any, error) {
		return r.client.DBSize(ctx).Result()
	})
	if err != nil {
		return Stats{Connected: r.Connected()}, err
	}
	stats := Stats{Connected: true, KeyCount: res.(int64)}

	// memory is informative only; servers that hide INFO memory report zero
	if info, infoErr := r.do(ctx, "info", func(ctx context.Context) (any, error) {
		return r.client.Info(ctx, "memory").Result()
	}); infoErr == nil {
		stats.ApproxMemoryBytes = parseUsedMemory(info.(string))
	}
	return stats, nil
}

type scanPage struct {
	keys []string
	next uint64
}

func (r *Redis) key(k string) string { return r.cfg.KeyPrefix + k }

func (r *Redis) do(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	if !r.connected.Load() {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("backend %s: %w", op, err)
	}
	parent := ctx

	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	res, err := r.breaker.Execute(func() (any, error) { return fn(ctx) })
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		// a caller that gave up says nothing about the server
		if parent.Err() == nil && isConnectionError(err) {
			r.setConnected(false, err)
		}
		return nil, fmt.Errorf("backend %s: %w", op, err)
	}
	return res, nil
}

func (r *Redis) health() {
	interval := r.cfg.HealthInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.ping()
		}
	}
}

func (r *Redis) ping() {
	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
	defer cancel()
	err := r.client.Ping(ctx).Err()
	r.setConnected(err == nil, err)
}

func (r *Redis) setConnected(up bool, cause error) {
	if prev := r.connected.Swap(up); prev == up {
		return
	}
	if up {
		metrics.BackendConnected.Set(1)
		r.logger.Info().Msg("cache backend connected")
		return
	}
	metrics.BackendConnected.Set(0)
	if cause != nil {
		r.logger.Warn().Err(cause).Msg("cache backend connection lost, serving from memory only")
	} else {
		r.logger.Info().Msg("cache backend closed")
	}
}

func isConnectionError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, context.DeadlineExceeded)
}

func parseUsedMemory(info string) int64 {
	for _, line := range strings.Split(info, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "used_memory:"); ok {
			n, _ := strconv.ParseInt(v, 10, 64)
			return n
		}
	}
	return 0
}
