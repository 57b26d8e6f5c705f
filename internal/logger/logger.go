// Package logger provides the process-wide structured logger.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the process-wide base logger. Initialize must be called once at
// boot before any subsystem logger is derived from it.
var Log zerolog.Logger

// Initialize configures the global logger. pretty selects a human-readable
// console writer for local development; otherwise logs are emitted as JSON
// with unix timestamps, suitable for ingestion.
func Initialize(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().Str("service", "pulsewire").Logger()
	Log.Info().Str("level", logLevel.String()).Bool("pretty", pretty).Msg("logger initialized")
}

// Connection returns a sub-logger tagged for per-connection lifecycle events.
func Connection() *zerolog.Logger {
	l := Log.With().Str("component", "connection").Logger()
	return &l
}

// Channel returns a sub-logger tagged for channel registry/broadcast events.
func Channel() *zerolog.Logger {
	l := Log.With().Str("component", "channel").Logger()
	return &l
}

// Protocol returns a sub-logger tagged for wire-protocol events.
func Protocol() *zerolog.Logger {
	l := Log.With().Str("component", "protocol").Logger()
	return &l
}

// HTTP returns a sub-logger tagged for the admin HTTP surface.
func HTTP() *zerolog.Logger {
	l := Log.With().Str("component", "http").Logger()
	return &l
}
