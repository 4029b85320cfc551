// Package logging builds the per-PLC file logger and the shared console
// logger every component writes through, mirroring the multiplexed writer
// pattern used for the pipeline/dashboard split elsewhere in this stack.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const logDir = "logs"

// NewConsole builds the shared human-readable console logger at the given
// level, used for every component that isn't a per-PLC acquisition loop.
func NewConsole(level zerolog.Level) zerolog.Logger {
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ForPLC opens (creating logDir if needed) logs/<plcName>.log in append
// mode and returns a logger that writes JSON lines there and also fans
// out to console, via zerolog.MultiLevelWriter, so an operator tailing
// stderr sees every loop's events without having to open each file.
// The returned closer must be called when the loop terminates.
func ForPLC(plcName string, console zerolog.Logger, level zerolog.Level) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("logging: create %s: %w", logDir, err)
	}
	path := filepath.Join(logDir, plcName+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("logging: open %s: %w", path, err)
	}

	writer := zerolog.MultiLevelWriter(f, console)
	logger := zerolog.New(writer).Level(level).With().Timestamp().
		Str("component", "acquisition").Logger()
	return logger, f, nil
}
