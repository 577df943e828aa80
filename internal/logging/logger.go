// Package logging builds the process slog logger from [log] configuration.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"graphout/internal/config"
)

// LevelPanic is the most severe level; records at this level are logged, never raised.
const LevelPanic = slog.Level(12)

// New builds a logger fanning out to the enabled console and file sinks.
// Params: cfg log section with defaults applied.
// Returns: logger, close function releasing file handles, or setup error.
func New(cfg config.LogConfig) (*slog.Logger, func(), error) {
	handlers := make([]slog.Handler, 0, 2)
	closers := make([]io.Closer, 0, 1)
	closeAll := func() {
		for _, closer := range closers {
			_ = closer.Close()
		}
	}

	if cfg.Console.Enabled {
		handler, err := newSinkHandler(consoleWriter(cfg.Console, os.Stderr), cfg.Console)
		if err != nil {
			return nil, nil, fmt.Errorf("log.console: %w", err)
		}
		handlers = append(handlers, handler)
	}

	if cfg.File.Enabled {
		file, err := openLogFile(cfg.File.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("log.file: %w", err)
		}
		closers = append(closers, file)

		handler, err := newSinkHandler(file, cfg.File)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("log.file: %w", err)
		}
		handlers = append(handlers, handler)
	}

	if len(handlers) == 0 {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), closeAll, nil
	}
	if len(handlers) == 1 {
		return slog.New(handlers[0]), closeAll, nil
	}
	return slog.New(&fanoutHandler{handlers: handlers}), closeAll, nil
}

// ParseLevel maps a configured level name to a slog level.
// Params: name one of debug, info, warn, error, panic (case-insensitive).
// Returns: level or error for unknown names.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "panic":
		return LevelPanic, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", name)
	}
}

// newSinkHandler creates a text or JSON handler for one sink.
// Params: dst output writer; sink config.
// Returns: slog handler or config error.
func newSinkHandler(dst io.Writer, sink config.LogSinkConfig) (slog.Handler, error) {
	level, err := ParseLevel(sink.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevelName}

	switch strings.ToLower(strings.TrimSpace(sink.Format)) {
	case "", "line":
		return slog.NewTextHandler(dst, opts), nil
	case "json":
		return slog.NewJSONHandler(dst, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", sink.Format)
	}
}

// consoleWriter wraps stderr with ANSI coloring when it is a terminal.
// Params: sink console config; dst console file.
// Returns: writer for the console handler.
func consoleWriter(sink config.LogSinkConfig, dst *os.File) io.Writer {
	if sink.Color == nil || !*sink.Color || strings.EqualFold(sink.Format, "json") {
		return dst
	}
	if !isatty.IsTerminal(dst.Fd()) && !isatty.IsCygwinTerminal(dst.Fd()) {
		return dst
	}
	return &colorLineWriter{dst: dst}
}

// openLogFile opens the file sink in append mode, creating parent directories.
// Params: path log file path.
// Returns: open file or error.
func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir %q: %w", dir, err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	return file, nil
}

// replaceLevelName renders LevelPanic as PANIC instead of ERROR+4.
func replaceLevelName(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key != slog.LevelKey {
		return attr
	}
	if level, ok := attr.Value.Any().(slog.Level); ok && level >= LevelPanic {
		attr.Value = slog.StringValue("PANIC")
	}
	return attr
}

// fanoutHandler forwards each record to every handler that accepts its level.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		next = append(next, handler.WithAttrs(attrs))
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		next = append(next, handler.WithGroup(name))
	}
	return &fanoutHandler{handlers: next}
}
