// Package schedlog provides the structured logging wrapper used by the
// engines and the demo binary, following the teacher's zerolog-based ambient
// logging convention. The engines log only at debug level, and only the two
// ignored UnlockMutex cases in scheduler/fppi; dispatches, preemptions and
// inheritance boosts are not logged. It is deliberately
// small: the scheduler core has no file rotation, sampling, or buffering
// needs, so this wrapper exposes only level selection and field attachment.
package schedlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls logger construction.
type Config struct {
	// Level is one of "debug", "info", "warn", "error"; defaults to "info".
	Level string
	// Pretty selects a human-readable console writer instead of JSON,
	// for local development.
	Pretty bool
	// Output is where log lines are written; defaults to os.Stderr.
	Output io.Writer
}

// New builds a zerolog.Logger from cfg.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything, for engines constructed
// without an explicit logger (e.g. in unit tests).
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Engine returns a child logger tagged with the engine name, e.g. "autosar"
// or "linux_like", matching the teacher's WithFields-per-subsystem convention.
func Engine(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("engine", name).Logger()
}
