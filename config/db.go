package config

import "time"

const defaultTTL = 5 * time.Minute

type DBCfg struct {
	// DefaultTTL applies to every write that does not carry its own ttl.
	DefaultTTL time.Duration `yaml:"default_ttl" koanf:"default_ttl" validate:"gt=0"`

	// DefaultTTLMs mirrors DefaultTTL in milliseconds (CACHE_DEFAULT_TTL_MS).
	// When set explicitly it takes precedence over DefaultTTL.
	DefaultTTLMs int64 `yaml:"default_ttl_ms" koanf:"default_ttl_ms" validate:"gte=0"`

	// Coalesce enables in-flight request coalescing for GetOrSet:
	// concurrent misses on the same key share one loader invocation.
	// Disabled by default; every missing caller then runs its own loader.
	Coalesce bool `yaml:"coalesce" koanf:"coalesce"`

	// WarmUpConcurrency bounds how many warm-up loaders run at once.
	WarmUpConcurrency int `yaml:"warm_up_concurrency" koanf:"warm_up_concurrency" validate:"gte=0"`
}
