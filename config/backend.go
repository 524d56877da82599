package config

import (
	"net"
	"strconv"
	"time"
)

// BackendCfg configures the external (Redis) tier.
type BackendCfg struct {
	Enabled  bool   `yaml:"enabled" koanf:"enabled"`
	Host     string `yaml:"host" koanf:"host" validate:"required_if=Enabled true"`
	Port     int    `yaml:"port" koanf:"port" validate:"gte=0,lte=65535"`
	Password string `yaml:"password" koanf:"password"`
	DB       int    `yaml:"db" koanf:"db" validate:"gte=0"`

	// KeyPrefix namespaces every key written to the backend. With a prefix,
	// Clear deletes only the namespace instead of flushing the whole database.
	KeyPrefix string `yaml:"key_prefix" koanf:"key_prefix"`

	// RetryDelay is the minimum backoff between retries of a failed command.
	RetryDelay time.Duration `yaml:"retry_delay" koanf:"retry_delay" validate:"gte=0"`

	// MaxRetries bounds retries per command; the total time a caller can wait is
	// roughly (MaxRetries+1) * Timeout plus backoff, never unbounded.
	MaxRetries int `yaml:"max_retries" koanf:"max_retries" validate:"gte=0,lte=10"`

	// Timeout bounds dial, read and write of a single command.
	Timeout time.Duration `yaml:"timeout" koanf:"timeout"`

	// HealthInterval is how often the connected flag is refreshed by a ping.
	HealthInterval time.Duration `yaml:"health_interval" koanf:"health_interval"`
}

func (cfg BackendCfg) Addr() string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}
