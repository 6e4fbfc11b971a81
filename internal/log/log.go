// Package log provides the logging infrastructure for recallkit.
//
// Loggers are injected, never global: each component receives a
// *slog.Logger through its constructor and narrows it with With().
//
//	logger := log.New(log.Config{Level: slog.LevelDebug})
//	ingestor, err := knowledge.NewIngestor(embedder, store, logger.With("component", "ingestor"))
//
// Tests use NewNop, or NewWithWriter with a bytes.Buffer when the output
// itself is under test.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger aliases *slog.Logger so call sites stay compatible with the slog
// ecosystem without a wrapper interface.
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo
	Level slog.Level

	// JSON enables JSON output. Default: false (text format)
	JSON bool

	// AddSource adds source file information to log entries.
	AddSource bool
}

// ParseLevel maps a configuration string ("debug", "info", "warn",
// "error") to its slog level. Matching is case-insensitive.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New creates a logger writing to os.Stderr. Stdout stays reserved for the
// MCP stdio transport, so logs must never go there.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger that writes to w.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop creates a logger that discards all output. Test-only: production
// code silently dropping its logs is a misconfiguration.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
