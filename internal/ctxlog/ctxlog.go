// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const levelEnvSuffix = "_LOG_LEVEL"

// Log output formats accepted by Configure.
const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
)

var (
	// ErrInvalidLevel is returned when a log level string cannot be parsed.
	ErrInvalidLevel = errors.New("invalid log level")
	// ErrInvalidFormat is returned when the log format is not pretty or json.
	ErrInvalidFormat = errors.New("invalid log format")
	// ErrOpenLogFile is returned when the log file cannot be opened.
	ErrOpenLogFile = errors.New("failed to open log file")
)

type loggerKey struct{}

// LevelVar is shared by every logger built in this package so the level can be changed at runtime.
var LevelVar = &slog.LevelVar{}

// DefaultLogger is a pretty console logger on stderr, used if no logger is provided.
var DefaultLogger = slog.New(NewPrettyHandler(&slog.HandlerOptions{
	Level: LevelVar,
},
	WithDestinationWriter(os.Stderr),
	WithAutoColour(),
))

// JSONLogger writes JSON lines to stderr.
var JSONLogger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LevelVar,
}))

func init() {
	LevelVar.Set(logLevelFromEnv())
}

// New creates a new context with the given logger.
// If logger is nil, it uses the default logger.
func New(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		logger = DefaultLogger
	}

	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger from the context, or the default logger if not found.
func Logger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	if !ok || logger == nil {
		return DefaultLogger
	}

	return logger
}

// With returns a context whose logger carries the given attributes.
func With(ctx context.Context, args ...any) context.Context {
	return New(ctx, Logger(ctx).With(args...))
}

// Info logs an info message with the given context.
func Info(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Info(msg, args...)
}

// Debug logs a debug message with the given context.
func Debug(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Debug(msg, args...)
}

// Warn logs a warning message with the given context.
func Warn(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Warn(msg, args...)
}

// Error logs an error message with the given context.
func Error(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Error(msg, args...)
}

// Options describes where and how log records are written.
type Options struct {
	Level  string // DEBUG, INFO, WARN or ERROR; empty keeps the current level.
	Path   string // File to append to; empty means stderr.
	Format string // FormatPretty (default) or FormatJSON.
}

// Configure builds a logger from opts and applies opts.Level to LevelVar.
// The returned closer releases the log file, if one was opened.
func Configure(opts Options) (*slog.Logger, io.Closer, error) {
	if opts.Level != "" {
		level, err := ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, err
		}

		LevelVar.Set(level)
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = io.NopCloser(nil)
	)

	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, nil, errors.Join(ErrOpenLogFile, err)
		}

		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.Join(ErrOpenLogFile, err)
		}

		w, closer = f, f
	}

	switch strings.ToLower(opts.Format) {
	case "", FormatPretty:
		return slog.New(NewPrettyHandler(&slog.HandlerOptions{Level: LevelVar},
			WithDestinationWriter(w),
			WithAutoColour(),
		)), closer, nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: LevelVar})), closer, nil
	default:
		_ = closer.Close()
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidFormat, opts.Format)
	}
}

// ParseLevel converts DEBUG, INFO, WARN or ERROR (any case) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

// levelEnvName derives the level variable from the executable name,
// e.g. lspbridge -> LSPBRIDGE_LOG_LEVEL.
func levelEnvName() string {
	exec, _ := os.Executable()
	exec = filepath.Base(exec)
	exec = strings.TrimSuffix(exec, ".exe")
	exec = strings.NewReplacer("-", "_", ".", "_").Replace(exec)

	return strings.ToUpper(exec) + levelEnvSuffix
}

func logLevelFromEnv() slog.Level {
	level, err := ParseLevel(os.Getenv(levelEnvName()))
	if err != nil {
		return slog.LevelWarn
	}

	return level
}
