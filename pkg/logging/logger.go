// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for scanforge components,
// built on log/slog with multi-destination fanout (stderr plus an
// optional log file named by the date the Logger is created; the file is
// not rotated while the Logger lives) and a small set of attribute
// builders for the scan/job/tool context that shows up in nearly every
// log line the orchestrator, runner, and sinks emit.
//
// Basic usage:
//
//	logger := logging.Default()
//	logger.Info("scan started", logging.ScanAttrs(scanID, profile)...)
//
// File logging:
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.scanforge/logs",
//	    Service: "orchestrator",
//	})
//	defer logger.Close()
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level is a logging severity, ordered Debug < Info < Warn < Error.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures a Logger. The zero value logs Info+ to stderr as text.
type Config struct {
	// Level is the minimum level written to any destination.
	Level Level

	// LogDir, when set, enables an additional JSON file destination
	// named "{Service}_{YYYY-MM-DD}.log" under this directory (created
	// with 0750 if missing). Supports a leading "~" for the home dir.
	LogDir string

	// Service tags every record with a "service" attribute, e.g.
	// "orchestrator", "runner", "enrich", "serve".
	Service string

	// JSON formats the stderr destination as JSON instead of text. File
	// output is always JSON regardless of this setting.
	JSON bool

	// Quiet suppresses the stderr destination (file logging, if
	// configured, is unaffected). Useful for the `serve` daemon, whose
	// stderr is not monitored. When no file destination is open, New
	// still falls back to text output on stderr.
	Quiet bool
}

// Logger wraps slog.Logger with the stderr/file fanout above.
type Logger struct {
	slog   *slog.Logger
	config Config
	file   *os.File
	mu     sync.Mutex
}

// New builds a Logger from config.
func New(config Config) *Logger {
	var handlers []slog.Handler
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	logger := &Logger{config: config}

	if config.LogDir != "" {
		logDir := expandPath(config.LogDir)
		if err := os.MkdirAll(logDir, 0750); err == nil {
			service := config.Service
			if service == "" {
				service = "scanforge"
			}
			name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
			if file, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640); err == nil {
				logger.file = file
				handlers = append(handlers, slog.NewJSONHandler(file, opts))
			}
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	logger.slog = slog.New(handler)
	return logger
}

// Default returns an Info-level, text-to-stderr logger tagged "scanforge".
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "scanforge"})
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a child Logger carrying args on every subsequent record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), config: l.config, file: l.file}
}

// WithScan returns a child Logger tagged with scan_id and profile, the
// pair present on nearly every log line emitted for the lifetime of one
// scan invocation.
func (l *Logger) WithScan(scanID, profile string) *Logger {
	return l.With(ScanAttrs(scanID, profile)...)
}

// WithJob returns a child Logger tagged with the (tool, target, attempt)
// triple identifying one orchestrator job.
func (l *Logger) WithJob(tool, target string, attempt int) *Logger {
	return l.With(JobAttrs(tool, target, attempt)...)
}

// WithTool returns a child Logger tagged with one tool's name and version.
func (l *Logger) WithTool(name, version string) *Logger {
	if version == "" {
		version = "unknown"
	}
	return l.With("tool", name, "tool_version", version)
}

// Slog returns the underlying slog.Logger, for packages that accept a
// *slog.Logger directly (internal/orchestrator, internal/runner) rather
// than taking a dependency on this package.
func (l *Logger) Slog() *slog.Logger { return l.slog }

// Close syncs and closes the log file, if one is open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log file: %w", err)
	}
	return l.file.Close()
}

// multiHandler fans one record out to every handler that is enabled for
// its level, so stderr (text, for a human) and the log file (JSON, for
// machine processing) can run at once with independent formats.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// ScanAttrs builds the (scan_id, profile) pair repeated on every log line
// for the lifetime of one scan, for callers holding a bare *slog.Logger
// (internal/orchestrator.Orchestrator.Log) rather than this package's
// Logger.
func ScanAttrs(scanID, profile string) []any {
	return []any{"scan_id", scanID, "profile", profile}
}

// JobAttrs builds the (tool, target, attempt) triple identifying one
// orchestrator job, per spec.md §3's Job definition.
func JobAttrs(tool, target string, attempt int) []any {
	return []any{"tool", tool, "target", target, "attempt", attempt}
}

// ToolOutcomeAttrs builds the attributes describing one completed Tool
// Runner invocation: its terminal outcome (Success, Timeout, CrashedSignal,
// ...) and wall-clock duration, per spec.md §4.A.
func ToolOutcomeAttrs(tool, outcome string, elapsed time.Duration) []any {
	return []any{"tool", tool, "outcome", outcome, "duration_ms", elapsed.Milliseconds()}
}
