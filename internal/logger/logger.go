package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes logging output. Console logging on stderr is always
// on; when Dir is set a rotating file Dir/deskpulse.log is added.
// Rotation parameters follow lumberjack semantics.
type Config struct {
	Dir        string // base directory for the log file; empty disables file output
	Level      string // debug, info, warn, error (default info)
	MaxSizeMB  int    // megabytes before rotation (default 10)
	MaxBackups int    // number of backups to keep (default 3)
	MaxAgeDays int    // days to keep (default 7)
	Compress   bool   // Gzip rotated files
}

// ParseLevel maps a config string to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a slog.Logger from the config. The returned closer closes
// the rotating file writer, if any; it is non-nil either way.
func New(c Config) (*slog.Logger, io.Closer) {
	level := ParseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}

	console := NewColorTextHandler(os.Stderr, opts, true)
	if c.Dir == "" {
		return slog.New(console), nopCloser{}
	}

	fw := &lj.Logger{
		Filename:   filepath.Join(c.Dir, "deskpulse.log"),
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
	file := slog.NewTextHandler(fw, opts)
	return slog.New(&teeHandler{handlers: []slog.Handler{console, file}}), fw
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
