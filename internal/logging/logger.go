// Package logging builds the zerolog loggers injected into every cache component.
//
// Always terminate log chains with .Msg() or .Send():
//
//	logger.Info().Str("key", "value").Msg("message")  // Correct
//	logger.Info().Str("key", "value")                 // WRONG - log not emitted
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/magickit/go-magickit-cache/config"
	"github.com/rs/zerolog"
)

// New returns a logger configured from cfg writing to out (os.Stderr when nil).
func New(cfg config.LogsCfg, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339

	return zerolog.New(out).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "magickit-cache").
		Logger()
}

// Nop discards everything; used by tests and by callers that opt out of logs.
func Nop() zerolog.Logger { return zerolog.Nop() }

// ParseLevel converts a string level to zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
