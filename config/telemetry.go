package config

import "time"

const defaultTelemetryInterval = 30 * time.Second

type TelemetryCfg struct {
	LogsInterval time.Duration `yaml:"logs_interval" koanf:"logs_interval"`
}

func (cfg *TelemetryCfg) Enabled() bool {
	return cfg != nil
}
