// Package log provides the process-wide zerolog configuration.
package log

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps a configured zerolog.Logger.
type Logger struct {
	zerolog.Logger
}

// New builds a Logger at the given level, optionally using zerolog's
// human-friendly console writer instead of JSON.
func New(level string, pretty bool) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var base zerolog.Logger
	if pretty {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		base = zerolog.New(os.Stderr)
	}

	l := base.Level(lvl).With().Timestamp().Logger()
	return &Logger{Logger: l}
}

// Nop returns a logger that discards all output, for tests.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}
