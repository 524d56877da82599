// Package backend adapts the shared external cache (Redis) to the cache core.
//
// Every adapter method reports failures as errors; it is the Cache Service that
// turns them into misses and no-ops, so the fail-soft policy lives in one place.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/magickit/go-magickit-cache/config"
	"github.com/rs/zerolog"
)

var (
	ErrDisabled     = errors.New("cache backend disabled")
	ErrNotConnected = errors.New("cache backend not connected")
)

// Stats is the external tier's view for CacheStats.
type Stats struct {
	Connected         bool  `json:"connected"`
	KeyCount          int64 `json:"keyCount"`
	ApproxMemoryBytes int64 `json:"approxMemoryBytes"`
}

type Backend interface {
	// Get returns found=false with a nil error on a plain miss.
	Get(ctx context.Context, key string) (data []byte, found bool, err error)
	// Set writes data with the backend's native expiry set to ttl.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (deleted bool, err error)
	// Clear flushes the whole external namespace.
	Clear(ctx context.Context) error
	// DeleteByPattern lists keys with the native glob and deletes those accepted
	// by match (all listed keys when match is nil). On a mid-way failure it returns
	// the number deleted so far together with the error.
	DeleteByPattern(ctx context.Context, glob string, match func(key string) bool) (deleted int64, err error)
	Stats(ctx context.Context) (Stats, error)
	Connected() bool
	Close() error
}

// New returns a Redis adapter, or a NoOp one when the backend is disabled.
func New(ctx context.Context, cfg config.BackendCfg, logger zerolog.Logger) Backend {
	if !cfg.Enabled {
		return NoOp{}
	}
	return NewRedis(ctx, cfg, logger)
}
