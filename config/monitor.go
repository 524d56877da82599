package config

import "time"

// MonitorCfg configures persistence of performance samples.
type MonitorCfg struct {
	// DSN is the sqlite database the samples are written to.
	// Use ":memory:" for an ephemeral store.
	DSN string `yaml:"dsn" koanf:"dsn" validate:"required"`

	// WriteTimeout bounds a single sample insert.
	WriteTimeout time.Duration `yaml:"write_timeout" koanf:"write_timeout" validate:"gte=0"`

	// RetentionDays, when positive, lets the operator CLI prune older samples on start.
	RetentionDays int `yaml:"retention_days" koanf:"retention_days" validate:"gte=0"`
}
