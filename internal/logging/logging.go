package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdfchat/internal/config"

	"github.com/rs/zerolog"
)

// New builds a zerolog logger writing to w. Supports "trace" | "debug" |
// "info" | "warn" | "error" levels and "json" | "console" formats.
func New(cfg config.LogConfig, w io.Writer) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var base zerolog.Logger
	if strings.ToLower(cfg.Format) == "console" {
		out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
		base = zerolog.New(out)
	} else {
		base = zerolog.New(w)
	}
	base = base.Level(level).With().Timestamp().Logger()
	return &base
}

// OpenFile opens (appending) the log file at path, creating its directory.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

// Nop returns a logger that discards everything.
func Nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// TraceDuration logs start and end with elapsed duration at TRACE level.
// Usage: defer logging.TraceDuration(logger, "session.Ask")()
func TraceDuration(logger *zerolog.Logger, name string) func() {
	start := time.Now()
	logger.Trace().Str("method", name).Msg("start")
	return func() {
		logger.Trace().Str("method", name).Dur("duration", time.Since(start)).Msg("finish")
	}
}
