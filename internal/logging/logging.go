// Package logging configures the jobdeck file logger. The terminal is
// owned by the TUI, so all diagnostics go to a JSON log file instead of
// stdout.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Open returns a logger writing JSON lines to path, creating parent
// directories as needed. The returned closer owns the underlying file.
func Open(path string) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}
	logger := zerolog.New(f).With().Timestamp().Logger()
	return logger, f, nil
}

// Component tags a child logger with the component emitting it.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
