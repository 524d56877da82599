package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Cache groups configuration of all cache subsystems.
// Optional background components are disabled by leaving them nil.
type Cache struct {
	DB DBCfg `yaml:"db" koanf:"db"`

	// Backend configures the shared external tier. When Backend.Enabled is false
	// the adapter is never constructed and every external operation is a no-op.
	Backend BackendCfg `yaml:"backend" koanf:"backend"`

	// Lifetime configures the periodic sweep of expired in-process entries.
	// If nil, expired entries are only dropped by the reads that discover them.
	Lifetime *LifetimerCfg `yaml:"lifetime" koanf:"lifetime"`

	// Telemetry configures periodic stats logs. If nil, nothing is logged periodically.
	Telemetry *TelemetryCfg `yaml:"telemetry" koanf:"telemetry"`

	Monitor MonitorCfg `yaml:"monitor" koanf:"monitor"`
	CDN     CDNCfg     `yaml:"cdn" koanf:"cdn"`
	Logs    LogsCfg    `yaml:"logs" koanf:"logs"`
}

// Default is a local/dev configuration: in-process tier only, 10 minute sweep.
func Default() *Cache {
	cfg := &Cache{
		DB: DBCfg{
			DefaultTTL:        defaultTTL,
			WarmUpConcurrency: 8,
		},
		Backend: BackendCfg{
			Host:       "127.0.0.1",
			Port:       6379,
			RetryDelay: 100 * time.Millisecond,
			MaxRetries: 3,
			Timeout:    time.Second,
		},
		Lifetime: &LifetimerCfg{SweepInterval: DefaultSweepInterval},
		Monitor: MonitorCfg{
			DSN:          "magickit-metrics.db",
			WriteTimeout: 2 * time.Second,
		},
		CDN: CDNCfg{
			LocalPrefix:   "/files",
			PurgeRate:     10,
			PurgeTimeout:  5 * time.Second,
			PurgeAuditTTL: 24 * time.Hour,
		},
		Logs: LogsCfg{Level: "info", Format: "json"},
	}
	cfg.AdjustConfig()
	return cfg
}

// AdjustConfig derives virtual fields and fills zero values with defaults.
func (cfg *Cache) AdjustConfig() {
	if cfg.DB.DefaultTTLMs > 0 {
		cfg.DB.DefaultTTL = time.Duration(cfg.DB.DefaultTTLMs) * time.Millisecond
	}
	if cfg.DB.DefaultTTL <= 0 {
		cfg.DB.DefaultTTL = defaultTTL
	}
	cfg.DB.DefaultTTLMs = cfg.DB.DefaultTTL.Milliseconds()
	if cfg.DB.WarmUpConcurrency <= 0 {
		cfg.DB.WarmUpConcurrency = 1
	}

	if cfg.Lifetime.Enabled() && cfg.Lifetime.SweepInterval <= 0 {
		cfg.Lifetime.SweepInterval = DefaultSweepInterval
	}
	if cfg.Telemetry.Enabled() && cfg.Telemetry.LogsInterval <= 0 {
		cfg.Telemetry.LogsInterval = defaultTelemetryInterval
	}
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = time.Second
	}
	if cfg.Backend.HealthInterval <= 0 {
		cfg.Backend.HealthInterval = 5 * time.Second
	}
	if cfg.CDN.PurgeAuditTTL <= 0 {
		cfg.CDN.PurgeAuditTTL = 24 * time.Hour
	}
}

var validate = validator.New()

// Validate checks field constraints declared in `validate` tags.
func (cfg *Cache) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validate cache config: %w", err)
	}
	return nil
}

// LoadConfig reads a yaml file, overlays recognized environment variables
// and validates the result.
func LoadConfig(path string) (*Cache, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	cfg := Default()
	// default_ttl_ms only overrides default_ttl when set explicitly
	cfg.DB.DefaultTTLMs = 0
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}

	return finalize(cfg)
}

// LoadEnv builds a configuration from defaults and environment variables only.
func LoadEnv() (*Cache, error) {
	cfg := Default()
	cfg.DB.DefaultTTLMs = 0
	return finalize(cfg)
}

func finalize(cfg *Cache) (*Cache, error) {
	if err := overlayEnv(cfg); err != nil {
		return nil, err
	}
	cfg.AdjustConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
