/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package workspace opens everything a session needs from one settings
// file: the key-value store, the layout, the asset library, the gallery and
// the scene options.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"roomoverlay/internal/config"
	"roomoverlay/internal/crash"
	"roomoverlay/internal/events"
	"roomoverlay/internal/gallery"
	"roomoverlay/internal/layout"
	"roomoverlay/internal/library"
	applog "roomoverlay/internal/log"
	"roomoverlay/internal/scene"
	"roomoverlay/internal/storage"
	"roomoverlay/internal/telemetry"
	"roomoverlay/internal/undo"
)

// CapturesDirName is the folder under the data dir that receives saved
// captures.
const CapturesDirName = "captures"

// Workspace bundles the stores of one data directory.
type Workspace struct {
	Config  config.AppConfig
	DataDir string
	KV      storage.KV
	Bus     *events.Bus
	Layout  *layout.Store
	Library *library.Library
	Photos  *gallery.Photos
	Layouts *gallery.Layouts
	Scene   scene.Options

	closeKV func() error
	unwatch func()
	log     *slog.Logger
}

// Open opens the store under cfg's data dir and loads the current layout.
func Open(ctx context.Context, cfg config.AppConfig) (*Workspace, error) {
	dir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	kv, recovered, err := storage.OpenOrRecover(ctx, dir)
	if err != nil {
		return nil, err
	}
	w, err := build(ctx, cfg, kv)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	w.DataDir = dir
	w.closeKV = kv.Close
	if recovered {
		w.log.Warn("key-value store was damaged and has been recreated", slog.String("path", kv.Path()))
	}

	tc := telemetry.WithOptIn(cfg.General.TelemetryOptIn)
	telemetry.NewDefault(tc)
	w.unwatch = telemetry.Watch(w.Bus)
	return w, nil
}

// OpenMemory builds a workspace on an in-memory store. Nothing is written
// to disk except captures, which go to dataDir.
func OpenMemory(ctx context.Context, cfg config.AppConfig, dataDir string) (*Workspace, error) {
	w, err := build(ctx, cfg, storage.NewMemoryKV())
	if err != nil {
		return nil, err
	}
	w.DataDir = dataDir
	return w, nil
}

func build(ctx context.Context, cfg config.AppConfig, kv storage.KV) (*Workspace, error) {
	opts, err := scene.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	bus := events.NewBus()
	hist := undo.NewHistory(undo.Config{MaxPerKey: 50, MinInterval: 250 * time.Millisecond})
	w := &Workspace{
		Config:  cfg,
		KV:      kv,
		Bus:     bus,
		Layout:  layout.NewStore(layout.WithHistory(hist)),
		Library: library.New(kv, bus),
		Photos:  gallery.NewPhotos(kv, bus),
		Layouts: gallery.NewLayouts(kv, bus),
		Scene:   opts,
		log:     applog.WithComponent("workspace"),
	}
	w.Layout.Load(ctx, kv)
	return w, nil
}

// CapturesDir returns the folder for saved captures, creating it.
func (w *Workspace) CapturesDir() (string, error) {
	dir := filepath.Join(w.DataDir, CapturesDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Commit persists the in-memory layout, keeping the replaced one for
// layout.Revert.
func (w *Workspace) Commit(ctx context.Context) error {
	return layout.Commit(ctx, w.KV, w.Layout.Snapshot().Objects)
}

// CrashTarget is what crash.Recover autosaves for this workspace.
func (w *Workspace) CrashTarget() *crash.Target {
	if w == nil {
		return nil
	}
	return &crash.Target{DataDir: w.DataDir, KV: w.KV, Layout: w.Layout}
}

// Close flushes telemetry and releases the store.
func (w *Workspace) Close() error {
	if w.unwatch != nil {
		w.unwatch()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		telemetry.Flush(ctx)
		cancel()
	}
	if w.closeKV != nil {
		return w.closeKV()
	}
	return nil
}
