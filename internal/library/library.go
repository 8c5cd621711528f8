/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package library manages the user's list of placeable assets.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"roomoverlay/internal/events"
	applog "roomoverlay/internal/log"
	"roomoverlay/internal/storage"
)

// ErrLabelRequired is returned when adding an item without a label.
var ErrLabelRequired = errors.New("label is required")

// sniffLen is how much of a file Add reads to classify it.
const sniffLen = 4096

// Kind tells how an asset is placed.
type Kind string

const (
	KindModel Kind = "model"
	KindSVG   Kind = "svg"
	KindImage Kind = "image"
)

// Item is one library entry.
type Item struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	URL   string `json:"url"`
	Kind  Kind   `json:"kind,omitempty"`
}

// Defaults returns the built-in furniture set.
func Defaults() []Item {
	return []Item{
		{ID: "cot", Label: "COT", URL: "/models/cot.glb", Kind: KindModel},
		{ID: "trolley", Label: "TROLLEY", URL: "/models/trolley.glb", Kind: KindModel},
		{ID: "table", Label: "TABLE", URL: "/models/table.glb", Kind: KindModel},
		{ID: "divider", Label: "DIVIDER", URL: "/models/divider.glb", Kind: KindModel},
		{ID: "chair", Label: "CHAIR", URL: "/models/chair.glb", Kind: KindModel},
		{ID: "window-screen", Label: "WINDOW SCREEN", URL: "/models/window-screen.glb", Kind: KindModel},
	}
}

// Library is the persisted asset list. Until something is saved it shows
// the defaults.
type Library struct {
	mu  sync.Mutex
	kv  storage.KV
	bus *events.Bus
	now func() time.Time
	log *slog.Logger
}

// New binds the library to kv. bus may be nil.
func New(kv storage.KV, bus *events.Bus) *Library {
	return &Library{kv: kv, bus: bus, now: time.Now, log: applog.WithComponent("library")}
}

// SetClock overrides the id timestamp source.
func (l *Library) SetClock(fn func() time.Time) { l.now = fn }

// List returns the items in display order.
func (l *Library) List(ctx context.Context) []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listLocked(ctx)
}

func (l *Library) listLocked(ctx context.Context) []Item {
	if _, ok, err := l.kv.Get(ctx, storage.KeyLibrary); err == nil && !ok {
		return Defaults()
	}
	return storage.ReadCollection[Item](ctx, l.kv, storage.KeyLibrary)
}

// Find returns the item with id.
func (l *Library) Find(ctx context.Context, id string) (Item, bool) {
	for _, it := range l.List(ctx) {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Add classifies the file at path and appends it under label. The item's
// URL is the file's absolute path.
func (l *Library) Add(ctx context.Context, label, path string) (Item, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Item{}, ErrLabelRequired
	}
	head, err := readHead(path)
	if err != nil {
		return Item{}, err
	}
	kind, t, err := Sniff(head)
	if err != nil {
		return Item{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Item{}, fmt.Errorf("resolve %s: %w", path, err)
	}

	l.mu.Lock()
	items := l.listLocked(ctx)
	it := Item{ID: fmt.Sprintf("custom-%d", l.now().UnixMilli()), Label: label, URL: abs, Kind: kind}
	items = append(items, it)
	err = storage.WriteCollection(ctx, l.kv, storage.KeyLibrary, items)
	l.mu.Unlock()
	if err != nil {
		return Item{}, fmt.Errorf("add to library: %w", err)
	}
	l.log.Info("library item added", slog.String("id", it.ID), slog.String("kind", string(kind)), slog.String("mime", t.MIME.Value))
	l.bus.Publish(events.LibraryUpdated, it)
	return it, nil
}

// Remove deletes the item with id.
func (l *Library) Remove(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	items := l.listLocked(ctx)
	kept := make([]Item, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		l.mu.Unlock()
		return false, nil
	}
	err := storage.WriteCollection(ctx, l.kv, storage.KeyLibrary, kept)
	l.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("remove from library: %w", err)
	}
	l.bus.Publish(events.LibraryUpdated, id)
	return true, nil
}

// Reset drops every custom item and goes back to the defaults.
func (l *Library) Reset(ctx context.Context) error {
	l.mu.Lock()
	err := l.kv.Delete(ctx, storage.KeyLibrary)
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("reset library: %w", err)
	}
	l.bus.Publish(events.LibraryUpdated, nil)
	return nil
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open asset: %w", err)
	}
	defer func() { _ = f.Close() }()
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read asset: %w", err)
	}
	return buf[:n], nil
}
