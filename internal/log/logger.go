/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package log is the application's slog setup: a console handler for humans,
// an optional rotating JSON file, a level that can change at runtime, and
// fields carried on the context (object id, pointer) that every record
// logged with that context picks up.
package log

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"roomoverlay/internal/version"
)

// Options controls logger initialization. FromEnv reads them from
//   - ROV_LOG_LEVEL=debug|info|warn|error
//   - ROV_LOG_FORMAT=console|json
//   - ROV_LOG_FILE=<path>
//   - ROV_LOG_SOURCE=true|false
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string // rotated JSON log, empty for none

	// Rotation of File; zero picks the defaults below.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

var (
	mu      sync.RWMutex
	current *slog.Logger
	level   = new(slog.LevelVar)
)

// L returns the application logger, initializing it from the environment on
// first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init replaces the application logger and slog.Default.
func Init(opts Options) {
	level.Set(ParseLevel(opts.Level))
	hopts := &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}

	var console slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		console = slog.NewJSONHandler(os.Stderr, hopts)
	} else {
		console = newConsoleHandler(os.Stderr, hopts)
	}
	handlers := []slog.Handler{console}
	if f := strings.TrimSpace(opts.File); f != "" {
		handlers = append(handlers, slog.NewJSONHandler(rotating(f, opts), hopts))
	}

	logger := slog.New(withContext(fanout(handlers...))).With(
		slog.String("app", "roomoverlay"),
		slog.String("ver", version.Version),
	)
	mu.Lock()
	current = logger
	mu.Unlock()
	slog.SetDefault(logger)
}

func rotating(path string, opts Options) *lj.Logger {
	w := &lj.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	if w.MaxSize <= 0 {
		w.MaxSize = defaultMaxSizeMB
	}
	if w.MaxBackups <= 0 {
		w.MaxBackups = defaultMaxBackups
	}
	if w.MaxAge <= 0 {
		w.MaxAge = defaultMaxAgeDays
	}
	return w
}

// SetLevel changes the level of the running logger.
func SetLevel(s string) { level.Set(ParseLevel(s)) }

// Level returns the running logger's level.
func Level() slog.Level { return level.Level() }

// FromEnv builds Options from ROV_LOG_* variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("ROV_LOG_LEVEL", "info"),
		Format:    getenv("ROV_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("ROV_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("ROV_LOG_FILE"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// WithComponent returns a logger tagged with the subsystem name.
func WithComponent(name string) *slog.Logger { return L().With(slog.String(ComponentKey, name)) }

// WithOperation tags l with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

// ParseLevel maps a level name to a slog.Level; unknown names are info.
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
