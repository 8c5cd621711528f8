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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomoverlay/internal/storage"
	"roomoverlay/internal/undo"
)

func seqIDs() func() string {
	n := 0
	return func() string { n++; return fmt.Sprintf("obj-%d", n) }
}

func newTestStore(opts ...Option) *Store {
	base := []Option{WithIDs(seqIDs()), WithPlacement(func() Vec3 { return Vec3{0.25, 0, -0.1} })}
	return NewStore(append(base, opts...)...)
}

func TestAddSelectsAndBumpsEpoch(t *testing.T) {
	s := newTestStore()
	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })

	id := s.Add("/models/cot.glb")
	assert.Equal(t, "obj-1", id)
	assert.Equal(t, uint64(1), s.Epoch())
	assert.Equal(t, id, s.Selected())

	obj, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, Vec3{0.25, 0, -0.1}, obj.Position)
	assert.Equal(t, Vec3{}, obj.Rotation)
	assert.Equal(t, Vec3{1, 1, 1}, obj.Scale)

	require.Len(t, changes, 1)
	assert.Equal(t, Structural, changes[0].Kind)
	assert.Equal(t, id, changes[0].Selected)
}

func TestDefaultPlacementIsOnTheFloorNearOrigin(t *testing.T) {
	s := NewStore()
	for i := 0; i < 20; i++ {
		o, _ := s.Get(s.Add("chair"))
		assert.GreaterOrEqual(t, o.Position[0], -0.5)
		assert.Less(t, o.Position[0], 0.5)
		assert.Equal(t, 0.0, o.Position[1])
		assert.GreaterOrEqual(t, o.Position[2], -0.5)
		assert.Less(t, o.Position[2], 0.5)
		assert.NotEmpty(t, o.ID)
	}
}

func TestNoOpUpdateKeepsSnapshotIdentity(t *testing.T) {
	s := newTestStore()
	id := s.Add("chair")
	before := s.Snapshot()
	notified := 0
	s.Subscribe(func(Change) { notified++ })

	obj, _ := s.Get(id)
	pos := Vec3{obj.Position[0] + 5e-5, obj.Position[1], obj.Position[2] - 5e-5}
	scale := Vec3{1.00009, 1, 1}
	got := s.Update(id, Patch{Position: &pos, Scale: &scale})

	assert.Same(t, before, got)
	assert.Same(t, before, s.Snapshot())
	assert.Equal(t, 0, notified)

	assert.Same(t, before, s.Update("missing", Patch{Position: &pos}))
	assert.Same(t, before, s.Update(id, Patch{}))
}

func TestUpdateMergesPatch(t *testing.T) {
	s := newTestStore()
	id := s.Add("chair")
	before := s.Snapshot()
	var last Change
	s.Subscribe(func(c Change) { last = c })

	rot := Vec3{0, 1.2, 0}
	got := s.Update(id, Patch{Rotation: &rot})

	require.NotSame(t, before, got)
	assert.Equal(t, before.Epoch, got.Epoch, "in-place update must not bump the epoch")
	obj, _ := s.Get(id)
	assert.Equal(t, rot, obj.Rotation)
	assert.Equal(t, Vec3{0.25, 0, -0.1}, obj.Position)
	assert.Equal(t, Updated, last.Kind)
	assert.Equal(t, id, last.ID)

	prev, _ := before.Find(id)
	assert.Equal(t, Vec3{}, prev.Rotation, "old snapshot must stay untouched")
}

func TestRemoveClearsSelection(t *testing.T) {
	s := newTestStore()
	a := s.Add("chair")
	b := s.Add("table")
	require.Equal(t, b, s.Selected())

	assert.True(t, s.Remove(b))
	assert.Equal(t, "", s.Selected())
	assert.Equal(t, uint64(3), s.Epoch())
	assert.Equal(t, []string{a}, s.Snapshot().IDs())

	s.Select(a)
	assert.False(t, s.Remove("nope"))
	assert.Equal(t, uint64(3), s.Epoch())
	assert.False(t, s.Remove(b))
	assert.Equal(t, a, s.Selected())
}

func TestReplaceAllFillsIDsAndClearsSelection(t *testing.T) {
	s := newTestStore()
	s.Add("chair")
	epoch := s.Epoch()

	s.ReplaceAll([]PlacedObject{
		{URL: "cot", Position: Vec3{1, 0, 1}},
		{ID: "keep", URL: "table", Scale: Vec3{2, 2, 2}},
		{ID: "keep", URL: "table"},
	})
	snap := s.Snapshot()
	require.Len(t, snap.Objects, 3)
	assert.NotEmpty(t, snap.Objects[0].ID)
	assert.Equal(t, Vec3{1, 1, 1}, snap.Objects[0].Scale)
	assert.Equal(t, "keep", snap.Objects[1].ID)
	assert.Equal(t, Vec3{2, 2, 2}, snap.Objects[1].Scale)
	assert.NotEqual(t, "keep", snap.Objects[2].ID, "duplicate ids are regenerated")
	assert.Equal(t, "", s.Selected())
	assert.Equal(t, epoch+1, snap.Epoch)

	s.ReplaceAll(snap.Objects)
	assert.Equal(t, epoch+2, s.Epoch(), "replace always bumps the epoch")

	s.Clear()
	assert.Empty(t, s.Snapshot().Objects)
}

func TestSelectionDoesNotMoveObjects(t *testing.T) {
	s := newTestStore()
	a := s.Add("chair")
	b := s.Add("table")
	before := s.Snapshot()

	s.Select(a)
	s.Select("")
	s.Select(b)
	s.Select("ghost")

	assert.Same(t, before, s.Snapshot())
	assert.Equal(t, "", s.Selected())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := newTestStore()
	id := s.Add("/models/cot.glb")
	rot := Vec3{0.1, 0.2, 0}
	s.Update(id, Patch{Rotation: &rot})
	require.NoError(t, s.Save(ctx, kv))

	other := newTestStore()
	other.Load(ctx, kv)
	assert.Equal(t, s.Snapshot().Objects, other.Snapshot().Objects)
	assert.Equal(t, uint64(1), other.Epoch())
}

func TestLoadToleratesLegacyAndBrokenData(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	_ = kv.Set(ctx, storage.KeyLayout, `[{"url":"/models/chair.glb","position":[1,0,2],"rotation":[0,0,0],"scale":[1,1,1]}]`)
	s := newTestStore()
	s.Load(ctx, kv)
	require.Len(t, s.Snapshot().Objects, 1)
	assert.NotEmpty(t, s.Snapshot().Objects[0].ID)

	_ = kv.Set(ctx, storage.KeyLayout, `{{{`)
	s.Load(ctx, kv)
	assert.Empty(t, s.Snapshot().Objects)
	assert.Equal(t, uint64(2), s.Epoch())
}

func TestUndoRedo(t *testing.T) {
	clock := time.Unix(1000, 0)
	s := newTestStore(
		WithHistory(undo.NewHistory(undo.Config{})),
		WithClock(func() time.Time { clock = clock.Add(time.Second); return clock }),
	)
	id := s.Add("chair")
	pos := Vec3{3, 0, 3}
	s.Update(id, Patch{Position: &pos})

	require.True(t, s.Undo())
	obj, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, Vec3{0.25, 0, -0.1}, obj.Position)

	require.True(t, s.Undo())
	assert.Empty(t, s.Snapshot().Objects)
	assert.False(t, s.Undo())

	require.True(t, s.Redo())
	require.True(t, s.Redo())
	obj, _ = s.Get(id)
	assert.Equal(t, pos, obj.Position)
	assert.False(t, s.Redo())

	assert.False(t, newTestStore().Undo(), "no history configured")
}

func TestCommitAndRevert(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()

	ok, err := Revert(ctx, kv)
	require.NoError(t, err)
	assert.False(t, ok)

	first := []PlacedObject{{ID: "a", URL: "cot", Scale: Vec3{1, 1, 1}}}
	second := []PlacedObject{{ID: "b", URL: "chair", Scale: Vec3{1, 1, 1}}}
	require.NoError(t, Commit(ctx, kv, first))
	require.NoError(t, Commit(ctx, kv, second))
	assert.Equal(t, "b", LoadObjects(ctx, kv)[0].ID)

	ok, err = Revert(ctx, kv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", LoadObjects(ctx, kv)[0].ID)

	ok, err = Revert(ctx, kv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", LoadObjects(ctx, kv)[0].ID)
}
