package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const defaultPrefix = "capfriends"

const (
	envLogLevel  = "CAPFRIENDS_LOG_LEVEL"
	envLogFormat = "CAPFRIENDS_LOG_FORMAT"
)

// Config controls where and how the service logs.
type Config struct {
	Dir           string
	Prefix        string
	RetentionDays int
	Level         slog.Level
	// Console mirrors log lines to stdout.
	Console bool
}

// DailyWriter writes logs into a date-named file and prunes files older than
// the retention window.
type DailyWriter struct {
	dir           string
	prefix        string
	retentionDays int
	now           func() time.Time

	mu          sync.Mutex
	currentDate string
	file        *os.File
}

// NewDailyWriter creates a daily rotating writer with the default prefix.
func NewDailyWriter(dir string, retentionDays int) (*DailyWriter, error) {
	return newDailyWriter(dir, defaultPrefix, retentionDays, time.Now)
}

// NewDailyWriterWithPrefix creates a daily rotating writer with a custom prefix.
func NewDailyWriterWithPrefix(dir, prefix string, retentionDays int) (*DailyWriter, error) {
	return newDailyWriter(dir, prefix, retentionDays, time.Now)
}

func newDailyWriter(dir, prefix string, retentionDays int, now func() time.Time) (*DailyWriter, error) {
	if retentionDays <= 0 {
		retentionDays = 14
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	w := &DailyWriter{
		dir:           dir,
		prefix:        prefix,
		retentionDays: retentionDays,
		now:           now,
	}
	if err := w.rotate(now()); err != nil {
		return nil, err
	}
	return w, nil
}

// Write implements io.Writer.
func (w *DailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rotate(w.now()); err != nil {
		return 0, err
	}
	return w.file.Write(p)
}

// Close closes the current file.
func (w *DailyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// Path returns the file currently written to.
func (w *DailyWriter) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pathFor(w.currentDate)
}

func (w *DailyWriter) pathFor(date string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.log", w.prefix, date))
}

// rotate opens the file for now's date. Callers hold mu, except during
// construction.
func (w *DailyWriter) rotate(now time.Time) error {
	date := now.Format("20060102")
	if date == w.currentDate && w.file != nil {
		return nil
	}
	if w.file != nil {
		_ = w.file.Close()
	}
	file, err := os.OpenFile(w.pathFor(date), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	w.currentDate = date
	w.file = file
	w.prune(now)
	return nil
}

func (w *DailyWriter) prune(now time.Time) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	cutoff := now.AddDate(0, 0, -w.retentionDays)
	prefix := w.prefix + "-"
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		date, err := time.ParseInLocation("20060102", strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".log"), now.Location())
		if err != nil {
			continue
		}
		if date.Before(cutoff) {
			_ = os.Remove(filepath.Join(w.dir, name))
		}
	}
}

// NewLogger creates the service logger, writing to a daily file and
// optionally stdout. The level and format may be overridden through
// CAPFRIENDS_LOG_LEVEL and CAPFRIENDS_LOG_FORMAT. The returned writer must be
// closed on shutdown.
func NewLogger(cfg Config) (*slog.Logger, *DailyWriter, error) {
	writer, err := NewDailyWriterWithPrefix(cfg.Dir, cfg.Prefix, cfg.RetentionDays)
	if err != nil {
		return nil, nil, err
	}
	var out io.Writer = writer
	if cfg.Console {
		out = io.MultiWriter(os.Stdout, writer)
	}
	handler := newHandler(out, resolveLevel(cfg.Level))
	logger := slog.New(handler).With("service", defaultPrefix)
	slog.SetDefault(logger)
	return logger, writer, nil
}

// ParseLevel maps names such as "debug" or "warn", or a numeric slog level,
// to a slog.Level.
func ParseLevel(value string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return fallback
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return slog.Level(i)
	}
	return fallback
}

func resolveLevel(fallback slog.Level) slog.Level {
	return ParseLevel(os.Getenv(envLogLevel), fallback)
}

func newHandler(w io.Writer, level slog.Level) slog.Handler {
	options := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(envLogFormat)), "json") {
		return slog.NewJSONHandler(w, options)
	}
	return slog.NewTextHandler(w, options)
}
