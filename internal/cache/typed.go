package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/magickit/go-magickit-cache/internal/metrics"
	"github.com/magickit/go-magickit-cache/model"
)

// GetAs is Get with the value typed as T. An in-process value of another type is a miss.
func GetAs[T any](ctx context.Context, s *Service, key model.Key) (T, bool) {
	return lookup[T](ctx, s, key)
}

// GetOrSet returns the cached value or invokes loader once, caches its result and
// returns it. Loader errors are returned unchanged and nothing is cached.
// Concurrent misses on one key each run loader unless DB.Coalesce is set.
func GetOrSet[T any](ctx context.Context, s *Service, key model.Key, loader func(ctx context.Context) (T, error), ttl time.Duration) (T, error) {
	value, _, err := Fetch(ctx, s, key, loader, ttl)
	return value, err
}

// Fetch is GetOrSet which also reports whether the value came from cache.
func Fetch[T any](ctx context.Context, s *Service, key model.Key, loader func(ctx context.Context) (T, error), ttl time.Duration) (value T, hit bool, err error) {
	if value, hit = lookup[T](ctx, s, key); hit {
		s.counters.hit()
		return value, true, nil
	}
	s.counters.miss()

	load := func() (T, error) {
		v, err := loader(ctx)
		if err != nil {
			return v, err
		}
		s.Set(ctx, key, v, ttl)
		return v, nil
	}

	if s.group == nil {
		value, err = load()
		return value, false, err
	}

	res, err, _ := s.group.Do(key.String(), func() (any, error) { return load() })
	if err != nil {
		var zero T
		return zero, false, err
	}
	value, _ = res.(T)
	return value, false, nil
}

func lookup[T any](ctx context.Context, s *Service, key model.Key) (value T, found bool) {
	k := key.String()

	if s.backend.Connected() {
		data, hit, err := s.backend.Get(ctx, k)
		if s.softly("get", k, err) && hit {
			if err = json.Unmarshal(data, &value); s.softly("decode", k, wrapDecode(err)) {
				metrics.CacheReads.WithLabelValues(metrics.TierBackend, "hit").Inc()
				return value, true
			}
		}
	}

	entry, hit := s.db.Get(k, s.clock.Now())
	if !hit {
		metrics.CacheReads.WithLabelValues(metrics.TierMemory, "miss").Inc()
		return value, false
	}
	if entry.Value() == nil {
		metrics.CacheReads.WithLabelValues(metrics.TierMemory, "hit").Inc()
		return value, true
	}
	if value, found = entry.Value().(T); !found {
		s.logger.Debug().Str("key", k).Str("want", fmt.Sprintf("%T", value)).Msg("cached value has another type")
		metrics.CacheReads.WithLabelValues(metrics.TierMemory, "miss").Inc()
		return value, false
	}
	metrics.CacheReads.WithLabelValues(metrics.TierMemory, "hit").Inc()
	return value, true
}

func wrapDecode(err error) error {
	if err != nil {
		return fmt.Errorf("decode backend value: %w", err)
	}
	return nil
}
