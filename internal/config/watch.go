/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	applog "roomoverlay/internal/log"
)

// DefaultDebounce collapses the burst of events editors produce on save.
const DefaultDebounce = 150 * time.Millisecond

// Watch reloads the file at path whenever it changes and hands the new
// configuration to fn. The parent directory is watched so atomic saves
// (write temp, rename) are seen. Parse failures are logged and skipped. The
// watcher stops when ctx is done.
func Watch(ctx context.Context, path string, debounce time.Duration, fn func(AppConfig)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	l := applog.WithComponent("config").With(slog.String("path", abs))

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		cfg, err := LoadFrom(abs)
		if err != nil {
			l.Warn("config reload skipped", slog.Any("err", err))
			return
		}
		l.Info("config reloaded")
		fn(cfg)
	}

	go func() {
		defer func() {
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			_ = w.Close()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, reload)
				mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.Warn("watcher error", slog.Any("err", err))
			}
		}
	}()
	return nil
}
