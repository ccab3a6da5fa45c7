// Package logging provides structured logging for groundlink.
//
// This package wraps the standard library's log/slog package to provide
// consistent logging across all components. It supports text, JSON and a
// colourised console format, configurable log levels, and component-based
// loggers.
//
// Usage:
//
//	// Initialize at startup
//	logging.Init(slog.LevelInfo, logging.FormatPretty)
//
//	// Get a component logger
//	log := logging.Component("server")
//	log.Info("listening", "address", addr)
//
//	// Log with context
//	log.Warn("parse failed", "error", err, "position", n)
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// Format selects the handler used by Init.
type Format string

const (
	FormatText   Format = "text"
	FormatJSON   Format = "json"
	FormatPretty Format = "pretty"
)

// ParseFormat parses a format name. An empty string selects text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatPretty:
		return FormatPretty, nil
	default:
		return "", fmt.Errorf("unknown log format %q", s)
	}
}

// ParseLevel parses a slog level name (debug, info, warn, error).
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// current holds the global logger.
var current atomic.Pointer[slog.Logger]

// Default returns the global logger, installing a text logger at info level
// if Init has not been called.
func Default() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	l := slog.New(NewHandler(os.Stdout, slog.LevelInfo, FormatText))
	if current.CompareAndSwap(nil, l) {
		slog.SetDefault(l)
	}
	return current.Load()
}

// Init initializes the global logger writing to stdout.
func Init(level slog.Level, format Format) {
	InitWithHandler(NewHandler(os.Stdout, level, format))
}

// NewHandler builds the handler for the given format.
// The pretty format only emits colour when w is a terminal.
func NewHandler(w io.Writer, level slog.Level, format Format) slog.Handler {
	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: level == slog.LevelDebug,
		})
	case FormatPretty:
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  level == slog.LevelDebug,
			TimeFormat: time.TimeOnly + ".000",
			NoColor:    !isTerminal(w),
		})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: level == slog.LevelDebug,
		})
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// InitWithHandler initializes the global logger with a custom handler.
// This is useful for testing or custom output destinations.
// It is safe to call while other goroutines are logging.
func InitWithHandler(handler slog.Handler) {
	l := slog.New(handler)
	current.Store(l)
	slog.SetDefault(l)
}

// Component returns a logger for a specific component.
// The component name is added as an attribute to all log entries.
//
// The returned logger follows the global logger, so package-level
// component loggers created before Init still honour it.
func Component(name string) *slog.Logger {
	return slog.New(&componentHandler{name: name})
}

// componentHandler defers to the current global handler. The derived
// handler is rebuilt only when the global logger changes.
type componentHandler struct {
	name  string
	attrs []slog.Attr
	group string

	cache atomic.Pointer[resolvedHandler]
}

type resolvedHandler struct {
	base    *slog.Logger
	handler slog.Handler
}

func (h *componentHandler) resolve() slog.Handler {
	base := Default()
	if r := h.cache.Load(); r != nil && r.base == base {
		return r.handler
	}

	handler := base.Handler().WithAttrs([]slog.Attr{slog.String("component", h.name)})
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	if h.group != "" {
		handler = handler.WithGroup(h.group)
	}
	h.cache.Store(&resolvedHandler{base: base, handler: handler})
	return handler
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.resolve().Enabled(ctx, level)
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.resolve().Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &componentHandler{name: h.name, attrs: merged, group: h.group}
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	if h.group != "" {
		name = h.group + "." + name
	}
	return &componentHandler{name: h.name, attrs: h.attrs, group: name}
}

// WithContext returns a logger that includes context values.
func WithContext(ctx context.Context) *slog.Logger {
	logger := Default()
	if sessionID, ok := ctx.Value(contextKeySessionID).(string); ok {
		logger = logger.With("session_id", sessionID)
	}
	if remote, ok := ctx.Value(contextKeyRemote).(string); ok {
		logger = logger.With("remote", remote)
	}
	return logger
}

// Context key types for type-safe context value extraction.
type contextKey int

const (
	contextKeySessionID contextKey = iota
	contextKeyRemote
)

// ContextWithSessionID adds a session ID to the context for logging.
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, contextKeySessionID, sessionID)
}

// ContextWithRemote adds the peer address to the context for logging.
func ContextWithRemote(ctx context.Context, remote string) context.Context {
	return context.WithValue(ctx, contextKeyRemote, remote)
}

// =============================================================================
// Convenience Functions
// =============================================================================

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs at warning level.
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}
