// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kegz/primeqa-common/pkg/config"
	"github.com/kegz/primeqa-common/pkg/logger"
)

// logging is the installed logger state.
type logging struct {
	level   *slog.LevelVar
	cleanup func()

	// pinned is true when the level came from a flag or env var, so
	// config reloads must not override it.
	pinned bool
}

// Close releases the log file, if any.
func (l *logging) Close() {
	if l != nil && l.cleanup != nil {
		l.cleanup()
	}
}

// Apply updates the level from a reloaded config.
func (l *logging) Apply(cfg config.LoggerConfig) {
	if l == nil || l.pinned {
		return
	}
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		slog.Warn("Ignoring invalid log level from config", "level", cfg.Level)
		return
	}
	if level != l.level.Level() {
		l.level.Set(level)
		slog.Info("Log level changed", "level", level.String())
	}
}

// initLogger installs the logger. Priority: CLI flags and env > config > defaults.
func (cli *CLI) initLogger(cfg config.LoggerConfig) (*logging, error) {
	cfg.SetDefaults()

	levelStr, pinned := cfg.Level, false
	if cli.LogLevel != "" {
		levelStr, pinned = cli.LogLevel, true
	}
	file := cfg.File
	if cli.LogFile != "" {
		file = cli.LogFile
	}
	format := cfg.Format
	if cli.LogFormat != "" {
		format = cli.LogFormat
	}

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var output io.Writer = os.Stderr
	var cleanup func()
	if file != "" {
		f, closeFn, err := logger.OpenLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output, cleanup = f, closeFn
	}

	lv := &slog.LevelVar{}
	lv.Set(level)
	logger.Init(lv, output, format)

	return &logging{level: lv, cleanup: cleanup, pinned: pinned}, nil
}
