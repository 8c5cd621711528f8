/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package layout

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	applog "roomoverlay/internal/log"
	"roomoverlay/internal/storage"
	"roomoverlay/internal/undo"
)

// Option configures a Store.
type Option func(*Store)

// WithIDs replaces the id generator (uuid v4 by default).
func WithIDs(fn func() string) Option { return func(s *Store) { s.newID = fn } }

// WithPlacement replaces the default placement of new objects.
func WithPlacement(fn func() Vec3) Option { return func(s *Store) { s.place = fn } }

// WithHistory enables undo/redo of committed changes.
func WithHistory(h *undo.History) Option { return func(s *Store) { s.history = h } }

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option { return func(s *Store) { s.now = fn } }

// Store owns the placed objects, the selection and the layout epoch.
type Store struct {
	mu       sync.Mutex
	snap     *Snapshot
	selected string

	newID   func() string
	place   func() Vec3
	now     func() time.Time
	history *undo.History
	log     *slog.Logger

	subMu  sync.Mutex
	subs   map[int]func(Change)
	nextID int
}

// NewStore returns an empty layout.
func NewStore(opts ...Option) *Store {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var rngMu sync.Mutex
	s := &Store{
		snap:  &Snapshot{Objects: []PlacedObject{}},
		newID: func() string { return uuid.NewString() },
		place: func() Vec3 {
			rngMu.Lock()
			defer rngMu.Unlock()
			return Vec3{rng.Float64() - 0.5, 0, rng.Float64() - 0.5}
		},
		now:  time.Now,
		log:  applog.WithComponent("layout"),
		subs: map[int]func(Change){},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot returns the current immutable snapshot.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Epoch returns the structural change counter.
func (s *Store) Epoch() uint64 { return s.Snapshot().Epoch }

// Get returns the entry for id.
func (s *Store) Get(id string) (PlacedObject, bool) { return s.Snapshot().Find(id) }

// Selected returns the selected id, or "" when nothing is selected.
func (s *Store) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Subscribe registers fn for every change and returns a function removing it.
// fn runs synchronously on the mutating goroutine, after the store lock is
// released.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// Add places a new object for asset ref with a randomized floor position,
// zero rotation and unit scale, selects it and returns its id.
func (s *Store) Add(ref string) string {
	s.mu.Lock()
	s.recordLocked()
	obj := PlacedObject{ID: s.newID(), URL: ref, Position: s.place(), Scale: Vec3{1, 1, 1}}
	objs := append(cloneObjects(s.snap.Objects), obj)
	s.snap = &Snapshot{Objects: objs, Epoch: s.snap.Epoch + 1}
	s.selected = obj.ID
	c := Change{Kind: Structural, Snapshot: s.snap, Selected: s.selected, ID: obj.ID}
	s.mu.Unlock()

	s.log.Debug("object added", slog.String("id", obj.ID), slog.String("url", ref), slog.Uint64("epoch", c.Snapshot.Epoch))
	s.notify(c)
	return obj.ID
}

// Update merges a partial transform into the object with id. When every
// patched field is within Tolerance of the stored value the call is a no-op:
// the same snapshot pointer is returned and nobody is notified.
func (s *Store) Update(id string, p Patch) *Snapshot {
	s.mu.Lock()
	idx := -1
	for i, o := range s.snap.Objects {
		if o.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 || p.Empty() {
		snap := s.snap
		s.mu.Unlock()
		return snap
	}
	next, changed := p.apply(s.snap.Objects[idx])
	if !changed {
		snap := s.snap
		s.mu.Unlock()
		return snap
	}
	s.recordLocked()
	objs := cloneObjects(s.snap.Objects)
	objs[idx] = next
	s.snap = &Snapshot{Objects: objs, Epoch: s.snap.Epoch}
	c := Change{Kind: Updated, Snapshot: s.snap, Selected: s.selected, ID: id}
	s.mu.Unlock()

	s.notify(c)
	return c.Snapshot
}

// Remove deletes the object, bumps the epoch and clears the selection if it
// pointed at the removed object.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	objs := make([]PlacedObject, 0, len(s.snap.Objects))
	for _, o := range s.snap.Objects {
		if o.ID != id {
			objs = append(objs, o)
		}
	}
	if len(objs) == len(s.snap.Objects) {
		s.mu.Unlock()
		return false
	}
	s.recordLocked()
	s.snap = &Snapshot{Objects: objs, Epoch: s.snap.Epoch + 1}
	if s.selected == id {
		s.selected = ""
	}
	c := Change{Kind: Structural, Snapshot: s.snap, Selected: s.selected, ID: id}
	s.mu.Unlock()

	s.log.Debug("object removed", slog.String("id", id), slog.Uint64("epoch", c.Snapshot.Epoch))
	s.notify(c)
	return true
}

// ReplaceAll swaps the whole layout (load, clear, import). Missing ids are
// generated, missing scales default to 1, the selection is cleared and the
// epoch always bumps.
func (s *Store) ReplaceAll(objs []PlacedObject) {
	s.mu.Lock()
	s.recordLocked()
	s.replaceLocked(objs)
	s.selected = ""
	c := Change{Kind: Structural, Snapshot: s.snap}
	s.mu.Unlock()

	s.log.Debug("layout replaced", slog.Int("objects", len(c.Snapshot.Objects)), slog.Uint64("epoch", c.Snapshot.Epoch))
	s.notify(c)
}

// Clear removes every object.
func (s *Store) Clear() { s.ReplaceAll(nil) }

func (s *Store) replaceLocked(objs []PlacedObject) {
	out := make([]PlacedObject, 0, len(objs))
	seen := map[string]bool{}
	for _, o := range objs {
		if o.ID == "" || seen[o.ID] {
			o.ID = s.newID()
		}
		seen[o.ID] = true
		if o.Scale == (Vec3{}) {
			o.Scale = Vec3{1, 1, 1}
		}
		out = append(out, o)
	}
	s.snap = &Snapshot{Objects: out, Epoch: s.snap.Epoch + 1}
}

// Select marks id as the single selected object; "" or an unknown id clears
// the selection. Selecting never changes any transform.
func (s *Store) Select(id string) {
	s.mu.Lock()
	if _, ok := s.snap.Find(id); !ok {
		id = ""
	}
	if s.selected == id {
		s.mu.Unlock()
		return
	}
	s.selected = id
	c := Change{Kind: SelectionChanged, Snapshot: s.snap, Selected: id}
	s.mu.Unlock()
	s.notify(c)
}

// Undo restores the layout as it was before the last committed change.
func (s *Store) Undo() bool { return s.travel(true) }

// Redo reapplies the last undone change.
func (s *Store) Redo() bool { return s.travel(false) }

func (s *Store) travel(back bool) bool {
	if s.history == nil {
		return false
	}
	s.mu.Lock()
	cur, err := json.Marshal(s.snap.Objects)
	if err != nil {
		s.mu.Unlock()
		return false
	}
	var snap undo.Snapshot
	var ok bool
	if back {
		snap, ok = s.history.Undo(storage.KeyLayout, cur, s.now())
	} else {
		snap, ok = s.history.Redo(storage.KeyLayout, cur, s.now())
	}
	if !ok {
		s.mu.Unlock()
		return false
	}
	var objs []PlacedObject
	if err := json.Unmarshal(snap.Blob, &objs); err != nil {
		s.mu.Unlock()
		s.log.Warn("history entry unreadable", slog.Any("err", err))
		return false
	}
	s.replaceLocked(objs)
	if _, still := s.snap.Find(s.selected); !still {
		s.selected = ""
	}
	c := Change{Kind: Structural, Snapshot: s.snap, Selected: s.selected}
	s.mu.Unlock()
	s.notify(c)
	return true
}

func (s *Store) recordLocked() {
	if s.history == nil {
		return
	}
	blob, err := json.Marshal(s.snap.Objects)
	if err != nil {
		return
	}
	s.history.Record(undo.Snapshot{Key: storage.KeyLayout, Blob: blob, TS: s.now()})
}

// Save writes the layout to kv under the layout key.
func (s *Store) Save(ctx context.Context, kv storage.KV) error {
	return SaveObjects(ctx, kv, s.Snapshot().Objects)
}

// Load replaces the layout with what kv holds. Missing or unreadable data
// loads as an empty layout.
func (s *Store) Load(ctx context.Context, kv storage.KV) {
	s.ReplaceAll(LoadObjects(ctx, kv))
}

// SaveObjects persists objs as the current layout.
func SaveObjects(ctx context.Context, kv storage.KV, objs []PlacedObject) error {
	return storage.WriteCollection(ctx, kv, storage.KeyLayout, objs)
}

// LoadObjects reads the current layout; failures yield an empty slice.
func LoadObjects(ctx context.Context, kv storage.KV) []PlacedObject {
	return storage.ReadCollection[PlacedObject](ctx, kv, storage.KeyLayout)
}

// Commit persists objs as the current layout and keeps the layout it
// replaces under the previous-layout key, so one Revert can bring it back.
func Commit(ctx context.Context, kv storage.KV, objs []PlacedObject) error {
	if prev, ok, err := kv.Get(ctx, storage.KeyLayout); err != nil {
		return err
	} else if ok {
		if err := kv.Set(ctx, storage.KeyLayoutPrevious, prev); err != nil {
			return err
		}
	}
	return SaveObjects(ctx, kv, objs)
}

// Revert swaps the current and the previous persisted layout. It reports
// false when no previous layout exists. Reverting twice is a redo.
func Revert(ctx context.Context, kv storage.KV) (bool, error) {
	prev, ok, err := kv.Get(ctx, storage.KeyLayoutPrevious)
	if err != nil || !ok {
		return false, err
	}
	cur, hasCur, err := kv.Get(ctx, storage.KeyLayout)
	if err != nil {
		return false, err
	}
	if err := kv.Set(ctx, storage.KeyLayout, prev); err != nil {
		return false, err
	}
	if !hasCur {
		cur = "[]"
	}
	return true, kv.Set(ctx, storage.KeyLayoutPrevious, cur)
}

func cloneObjects(in []PlacedObject) []PlacedObject {
	out := make([]PlacedObject, len(in), len(in)+1)
	copy(out, in)
	return out
}
