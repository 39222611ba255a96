// Package sysutil configures process-wide concerns: the global zerolog logger
// and its level.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogLevel configures the global zerolog level based on a string value.
// Supported values (case-insensitive): debug, info, warn, error, fatal, panic.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// SplitWriter sends warn and above to Err and everything else to Out.
type SplitWriter struct {
	Out io.Writer
	Err io.Writer
}

// Write implements io.Writer for events without a level.
func (w SplitWriter) Write(p []byte) (int, error) {
	return w.Out.Write(p)
}

// WriteLevel implements zerolog.LevelWriter.
func (w SplitWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l >= zerolog.WarnLevel && l < zerolog.NoLevel {
		return w.Err.Write(p)
	}
	return w.Out.Write(p)
}

// SetupLogger installs the global logger. Lines are JSON with level, message
// and timestamp fields unless format is "console".
func SetupLogger(level, format string) zerolog.Logger {
	return setupLogger(level, format, os.Stdout, os.Stderr)
}

func setupLogger(level, format string, stdout, stderr io.Writer) zerolog.Logger {
	zerolog.TimestampFieldName = "timestamp"
	zerolog.TimeFieldFormat = time.RFC3339Nano
	SetLogLevel(level)

	var w io.Writer = SplitWriter{Out: stdout, Err: stderr}
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return log.Logger
}
