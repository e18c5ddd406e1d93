// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs a console logger on w (stderr when nil) at the given level.
// Unknown levels fall back to info.
func Setup(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	logger := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		With().
		Timestamp().
		Logger()
	log.Logger = logger
	return logger
}

// Component derives a logger tagged with the component name.
func Component(parent zerolog.Logger, name string) zerolog.Logger {
	return parent.With().Str("component", name).Logger()
}
