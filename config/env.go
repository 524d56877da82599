package config

import (
	"fmt"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// envKeys maps recognized environment variables to config paths.
// Anything else in the environment is ignored.
var envKeys = map[string]string{
	"CACHE_BACKEND_ENABLED":    "backend.enabled",
	"CACHE_BACKEND_HOST":       "backend.host",
	"CACHE_BACKEND_PORT":       "backend.port",
	"CACHE_BACKEND_PASSWORD":   "backend.password",
	"CACHE_BACKEND_DB":         "backend.db",
	"CACHE_BACKEND_KEY_PREFIX": "backend.key_prefix",
	"CACHE_DEFAULT_TTL_MS":     "db.default_ttl_ms",
	"CACHE_COALESCE":           "db.coalesce",
	"CACHE_SWEEP_INTERVAL":     "lifetime.sweep_interval",
	"CACHE_METRICS_DSN":        "monitor.dsn",
	"CDN_ENABLED":              "cdn.enabled",
	"CDN_DOMAIN":               "cdn.domain",
	"CDN_PURGE_ENDPOINT":       "cdn.purge_endpoint",
	"CDN_PURGE_TOKEN":          "cdn.purge_token",
	"LOG_LEVEL":                "logs.level",
	"LOG_FORMAT":               "logs.format",
}

// overlayEnv overrides only the fields whose environment variable is set.
func overlayEnv(cfg *Cache) error {
	k := koanf.New(".")
	provider := env.Provider("", ".", func(key string) string { return envKeys[key] })
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("load environment variables: %w", err)
	}
	if len(k.Keys()) == 0 {
		return nil
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("unmarshal environment overrides: %w", err)
	}
	return nil
}
