// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds logger configuration.
type Config struct {
	Level      string    // debug, info, warn, error, disabled
	Pretty     bool      // human-readable console format
	File       string    // log file path; empty means Output
	Output     io.Writer // used when File is empty (default: io.Discard)
	WithCaller bool
}

// ParseLevel maps a level name to a zerolog level. Unknown names map to info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "disabled", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

// New creates a logger from cfg. The returned closer releases the log file,
// if one was opened, and is never nil.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	var out io.Writer = io.Discard
	var closer io.Closer = nopCloser{}

	switch {
	case cfg.File != "":
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
			return zerolog.Nop(), closer, err
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return zerolog.Nop(), closer, err
		}
		out, closer = f, f
	case cfg.Output != nil:
		out = cfg.Output
	}

	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: cfg.File != ""}
	}

	logger := zerolog.New(out).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("app", "docchat").
		Logger()

	if cfg.WithCaller {
		logger = logger.With().Caller().Logger()
	}

	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// =============================================================================
// GLOBAL LOGGER
// =============================================================================

var (
	globalMu     sync.RWMutex
	globalLogger = zerolog.Nop()
)

// Init replaces the process-wide logger.
func Init(cfg Config) (io.Closer, error) {
	logger, closer, err := New(cfg)
	if err != nil {
		return closer, err
	}
	SetGlobal(logger)
	return closer, nil
}

// SetGlobal installs logger as the process-wide logger.
func SetGlobal(logger zerolog.Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// L returns the process-wide logger. It discards everything until Init or
// SetGlobal runs.
func L() zerolog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Component returns the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return L().With().Str("component", name).Logger()
}
