/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"roomoverlay/internal/events"
	"roomoverlay/internal/layout"
	applog "roomoverlay/internal/log"
	"roomoverlay/internal/storage"
)

var (
	// ErrEmptyLayout is returned when saving a layout without objects.
	ErrEmptyLayout = errors.New("layout has no objects")
	// ErrLayoutNotFound is returned for unknown named layout ids.
	ErrLayoutNotFound = errors.New("named layout not found")
)

// NamedLayout is a saved copy of a room layout.
type NamedLayout struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	CreatedAt int64                 `json:"createdAt"`
	Data      []layout.PlacedObject `json:"data"`
}

// FileName returns the export file name: the name with whitespace runs
// replaced by dashes.
func (n NamedLayout) FileName() string {
	return strings.Join(strings.Fields(n.Name), "-") + ".json"
}

// Layouts is the named layout library, newest first.
type Layouts struct {
	mu  sync.Mutex
	kv  storage.KV
	bus *events.Bus
	opt options
	log *slog.Logger
}

// NewLayouts binds the named layout library to kv. bus may be nil.
func NewLayouts(kv storage.KV, bus *events.Bus, opts ...Option) *Layouts {
	return &Layouts{kv: kv, bus: bus, opt: buildOptions(opts), log: applog.WithComponent("gallery")}
}

// List returns the saved layouts, newest first.
func (l *Layouts) List(ctx context.Context) []NamedLayout {
	l.mu.Lock()
	defer l.mu.Unlock()
	return storage.ReadCollection[NamedLayout](ctx, l.kv, storage.KeyNamedLayouts)
}

// Get returns the layout with id.
func (l *Layouts) Get(ctx context.Context, id string) (NamedLayout, bool) {
	for _, n := range l.List(ctx) {
		if n.ID == id {
			return n, true
		}
	}
	return NamedLayout{}, false
}

// SaveCurrent stores objs under name. A blank name becomes "Layout <date>".
func (l *Layouts) SaveCurrent(ctx context.Context, name string, objs []layout.PlacedObject) (NamedLayout, error) {
	if len(objs) == 0 {
		return NamedLayout{}, ErrEmptyLayout
	}
	now := l.opt.now()
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Layout " + now.Format("2006-01-02 15:04:05")
	}
	data := make([]layout.PlacedObject, len(objs))
	copy(data, objs)
	id := fmt.Sprintf("layout-%d", now.UnixMilli())
	if l.opt.newID != nil {
		id = l.opt.newID()
	}
	item := NamedLayout{ID: id, Name: name, CreatedAt: now.UnixMilli(), Data: data}

	l.mu.Lock()
	items := storage.ReadCollection[NamedLayout](ctx, l.kv, storage.KeyNamedLayouts)
	items = append([]NamedLayout{item}, items...)
	err := storage.WriteCollection(ctx, l.kv, storage.KeyNamedLayouts, items)
	l.mu.Unlock()
	if err != nil {
		return NamedLayout{}, fmt.Errorf("save named layout: %w", err)
	}
	l.log.Info("named layout saved", slog.String("id", item.ID), slog.String("name", name), slog.Int("objects", len(data)))
	l.bus.Publish(events.LayoutSaved, item)
	return item, nil
}

// SetAsCurrent commits the named layout as the current one and returns its
// objects. The replaced layout stays available to layout.Revert.
func (l *Layouts) SetAsCurrent(ctx context.Context, id string) ([]layout.PlacedObject, error) {
	item, ok := l.Get(ctx, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLayoutNotFound, id)
	}
	if err := layout.Commit(ctx, l.kv, item.Data); err != nil {
		return nil, fmt.Errorf("set current layout: %w", err)
	}
	return item.Data, nil
}

// Delete removes the layout with id.
func (l *Layouts) Delete(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := storage.ReadCollection[NamedLayout](ctx, l.kv, storage.KeyNamedLayouts)
	kept := items[:0]
	for _, n := range items {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(items) {
		return false, nil
	}
	if err := storage.WriteCollection(ctx, l.kv, storage.KeyNamedLayouts, kept); err != nil {
		return false, fmt.Errorf("delete named layout: %w", err)
	}
	return true, nil
}
