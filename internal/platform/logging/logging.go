// Package logging builds the process zerolog.Logger from configuration.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the level and outputs of the logger.
type Options struct {
	Level string
	// Console switches stdout to zerolog's human-readable writer.
	Console bool
	// File, when set, also writes JSON lines to a rotating file.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Stdout overrides os.Stdout, mainly for tests.
	Stdout io.Writer
}

// New returns a logger fanned out to stdout and, optionally, a rotating
// file. The returned closer flushes and closes the file and is never nil.
func New(opts Options) (zerolog.Logger, io.Closer) {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	if opts.Console {
		stdout = zerolog.ConsoleWriter{Out: stdout}
	}

	writers := []io.Writer{stdout}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, rotating)
		closer = rotating
	}

	var w io.Writer = writers[0]
	if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(w).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Str("service", "lab-server").
		Logger()
	return logger, closer
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	}
	return zerolog.InfoLevel
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
