// Package logging provides the structured logger shared across the
// inference core. It wraps zerolog behind a small set of level-tagged
// helpers so the rest of the tree never imports zerolog directly.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Log is the package-level structured logger. Output defaults to stderr in
// console-writer form during development; set BITNET_LOG_JSON=1 to emit
// newline-delimited JSON instead, which is what a supervised deployment
// should do.
var Log = newLogger()

func newLogger() zerolog.Logger {
	if os.Getenv("BITNET_LOG_JSON") != "" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// Debugf logs a debug-level message.
func Debugf(format string, args ...interface{}) {
	Log.Debug().Msgf(format, args...)
}

// Infof logs an info-level message.
func Infof(format string, args ...interface{}) {
	Log.Info().Msgf(format, args...)
}

// Warnf logs a warn-level message.
func Warnf(format string, args ...interface{}) {
	Log.Warn().Msgf(format, args...)
}

// Errorf logs an error-level message.
func Errorf(format string, args ...interface{}) {
	Log.Error().Msgf(format, args...)
}
