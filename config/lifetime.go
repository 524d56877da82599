package config

import "time"

const DefaultSweepInterval = 10 * time.Minute

type LifetimerCfg struct {
	// SweepInterval is how often every in-process entry is checked and expired
	// ones are removed, independently of reads.
	// Example: "10m".
	SweepInterval time.Duration `yaml:"sweep_interval" koanf:"sweep_interval"`
}

func (cfg *LifetimerCfg) Enabled() bool {
	return cfg != nil
}
