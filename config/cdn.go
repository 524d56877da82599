package config

import "time"

type CDNCfg struct {
	// Enabled switches media URLs to the CDN domain.
	Enabled bool   `yaml:"enabled" koanf:"enabled"`
	Domain  string `yaml:"domain" koanf:"domain" validate:"required_if=Enabled true"`

	// LocalPrefix is the path media is served from when the CDN is disabled.
	LocalPrefix string `yaml:"local_prefix" koanf:"local_prefix"`

	// PurgeEndpoint is the provider's purge API. Empty means purges are
	// acknowledged without any network call.
	PurgeEndpoint string `yaml:"purge_endpoint" koanf:"purge_endpoint" validate:"omitempty,url"`
	PurgeToken    string `yaml:"purge_token" koanf:"purge_token"`

	// PurgeRate caps purge requests per second.
	PurgeRate    int           `yaml:"purge_rate" koanf:"purge_rate" validate:"gte=0"`
	PurgeTimeout time.Duration `yaml:"purge_timeout" koanf:"purge_timeout" validate:"gte=0"`

	// PurgeAuditTTL is how long purge records stay readable in the cache.
	PurgeAuditTTL time.Duration `yaml:"purge_audit_ttl" koanf:"purge_audit_ttl"`
}
