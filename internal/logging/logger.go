// Package logging provides structured logging for the lead book.
//
// Log calls take a message and optional context maps, like:
//
//	logging.Info("leads saved", map[string]any{"count": 3, "path": p})
//
// Output is either human-oriented console text (tint) or one JSON object per
// line, selected at Init.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// LogLevel represents a log level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Format selects the output encoding.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// ParseLevel parses a level name case-insensitively.
func ParseLevel(s string) (LogLevel, error) {
	switch LogLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug, nil
	case LevelInfo, "":
		return LevelInfo, nil
	case LevelWarn, "warning":
		return LevelWarn, nil
	case LevelError:
		return LevelError, nil
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

// ParseFormat parses a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatConsole, "", "text":
		return FormatConsole, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown log format %q", s)
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Logger wraps a slog.Logger with the context-map call style used across
// the code base.
type Logger struct {
	sl    *slog.Logger
	level *slog.LevelVar
}

// New creates a Logger writing to out.
func New(out io.Writer, minLevel LogLevel, format Format) *Logger {
	lv := &slog.LevelVar{}
	lv.Set(minLevel.slogLevel())

	var h slog.Handler
	switch format {
	case FormatJSON:
		h = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lv})
	default:
		noColor := true
		if f, ok := out.(*os.File); ok {
			noColor = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
			out = colorable.NewColorable(f)
		}
		h = tint.NewHandler(out, &tint.Options{
			Level:      lv,
			TimeFormat: "15:04:05.000",
			NoColor:    noColor,
		})
	}
	return &Logger{sl: slog.New(h), level: lv}
}

var (
	// global logger instance
	global *Logger
	once   sync.Once
	mu     sync.RWMutex
)

// Init initializes the global logger. Only the first call has an effect.
func Init(out io.Writer, minLevel LogLevel, format Format) {
	once.Do(func() {
		l := New(out, minLevel, format)
		mu.Lock()
		global = l
		mu.Unlock()
	})
}

// Get returns the global logger instance, creating a console logger on
// stderr if Init was never called.
func Get() *Logger {
	Init(os.Stderr, LevelInfo, FormatConsole)
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// SetLevel changes the minimum level of l at runtime.
func (l *Logger) SetLevel(level LogLevel) {
	l.level.Set(level.slogLevel())
}

// Slog exposes the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.sl
}

// With returns a Logger that adds context to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{sl: l.sl.With(attrs(fields)...), level: l.level}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, context ...map[string]any) {
	l.log(slog.LevelDebug, message, nil, context)
}

// Info logs an info message.
func (l *Logger) Info(message string, context ...map[string]any) {
	l.log(slog.LevelInfo, message, nil, context)
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, context ...map[string]any) {
	l.log(slog.LevelWarn, message, nil, context)
}

// Error logs an error message.
func (l *Logger) Error(message string, err error, context ...map[string]any) {
	l.log(slog.LevelError, message, err, context)
}

func (l *Logger) log(level slog.Level, message string, err error, fields []map[string]any) {
	ctx := context.Background()
	if !l.sl.Enabled(ctx, level) {
		return
	}
	args := attrs(mergeContext(fields...))
	if err != nil {
		args = append(args, tint.Err(err))
	}
	l.sl.Log(ctx, level, message, args...)
}

// mergeContext merges multiple context maps; later maps win.
func mergeContext(fields ...map[string]any) map[string]any {
	switch len(fields) {
	case 0:
		return nil
	case 1:
		return fields[0]
	}
	merged := make(map[string]any)
	for _, c := range fields {
		for k, v := range c {
			merged[k] = v
		}
	}
	return merged
}

// attrs converts a field map to slog arguments in key order so output is
// stable.
func attrs(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, slog.Any(k, fields[k]))
	}
	return out
}

// Convenience functions using global logger

func Debug(message string, context ...map[string]any) {
	Get().Debug(message, context...)
}

func Info(message string, context ...map[string]any) {
	Get().Info(message, context...)
}

func Warn(message string, context ...map[string]any) {
	Get().Warn(message, context...)
}

func Error(message string, err error, context ...map[string]any) {
	Get().Error(message, err, context...)
}
