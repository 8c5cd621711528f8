/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"roomoverlay/internal/config"
	"roomoverlay/internal/crash"
	applog "roomoverlay/internal/log"
	"roomoverlay/internal/version"
	"roomoverlay/internal/workspace"
)

var (
	flagConfig  string
	flagDataDir string

	// current is the workspace opened by the running command; crash.Recover
	// autosaves its layout.
	current *workspace.Workspace
)

var rootCmd = &cobra.Command{
	Use:   "roomoverlay",
	Short: "Stage room layouts over a camera view and capture them",
	Long: `roomoverlay places furniture models over a camera frame or a plain room view,
keeps the layout and a gallery of captures in a local store, and exports them.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "settings file (default: per-user config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (overrides general.data_dir)")
}

// loadConfig reads the settings and initializes logging from them.
func loadConfig() (config.AppConfig, error) {
	var (
		cfg config.AppConfig
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFrom(flagConfig)
	} else {
		cfg, _, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}
	if flagDataDir != "" {
		cfg.General.DataDir = flagDataDir
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	return cfg, nil
}

// openWorkspace loads the settings and opens the data directory.
func openWorkspace(ctx context.Context) (*workspace.Workspace, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	w, err := workspace.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	current = w
	return w, nil
}

// cliLog is looked up per call so it follows the logger loadConfig sets up.
func cliLog() *slog.Logger { return applog.WithComponent("cli") }

func closeWorkspace(w *workspace.Workspace) {
	if err := w.Close(); err != nil {
		cliLog().Warn("close workspace", slog.Any("err", err))
	}
	if current == w {
		current = nil
	}
}

func main() {
	defer func() { crash.Recover(current.CrashTarget()) }()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
