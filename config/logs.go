package config

type LogsCfg struct {
	Level  string `yaml:"level" koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `yaml:"format" koanf:"format" validate:"omitempty,oneof=json console"`
}
