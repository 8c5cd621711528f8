/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package gesture

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomoverlay/internal/geom"
	"roomoverlay/internal/layout"
	"roomoverlay/internal/scenegraph"
)

type fixedView struct {
	cam geom.Camera
	vp  geom.Viewport
}

func (v fixedView) Camera() geom.Camera     { return v.cam }
func (v fixedView) Viewport() geom.Viewport { return v.vp }

var (
	t0       = time.Unix(1_700_000_000, 0)
	testView = fixedView{cam: geom.DefaultCamera(), vp: geom.Viewport{Width: 800, Height: 600}}
)

func after(d time.Duration) time.Time { return t0.Add(d) }

type rig struct {
	arb   *Arbiter
	arena *scenegraph.Arena
}

func newRig() *rig {
	return &rig{arb: NewArbiter(), arena: scenegraph.NewArena(scenegraph.NewStaticLoader())}
}

func (r *rig) engine(t *testing.T, id string, cfg Config) *Engine {
	t.Helper()
	inst, err := r.arena.Attach(context.Background(), id, "/models/chair.glb")
	require.NoError(t, err)
	obj := layout.PlacedObject{ID: id, URL: "/models/chair.glb", Scale: layout.Vec3{1, 1, 1}}
	return NewEngine(inst, obj, 1, r.arb, testView, cfg)
}

// selected returns an engine whose selection grace periods have passed at
// after(time.Second).
func (r *rig) selected(t *testing.T, id string, cfg Config) *Engine {
	e := r.engine(t, id, cfg)
	e.SetSelected(true, t0)
	return e
}

func down(id int, x, y float64, at time.Time) PointerDown {
	return PointerDown{ID: id, Pos: Point{x, y}, At: at}
}
func move(id int, x, y float64, at time.Time) PointerMove {
	return PointerMove{ID: id, Pos: Point{x, y}, At: at}
}
func up(id int, x, y float64, at time.Time) PointerUp {
	return PointerUp{ID: id, Pos: Point{x, y}, At: at}
}

func expectedDrag(t *testing.T, root mgl64.Vec3, from, to Point) mgl64.Vec3 {
	t.Helper()
	pl := geom.PlaneThrough(testView.cam.Direction(), root)
	a, ok := geom.ProjectPointerToPlane(from.X, from.Y, pl, testView.cam, testView.vp)
	require.True(t, ok)
	b, ok := geom.ProjectPointerToPlane(to.X, to.Y, pl, testView.cam, testView.vp)
	require.True(t, ok)
	return b.Add(root.Sub(a))
}

func assertVec(t *testing.T, want mgl64.Vec3, got mgl64.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-9), "want %v got %v", want, got)
}

func TestTapOnUnselectedOnlySelects(t *testing.T) {
	r := newRig()
	e := r.engine(t, "a", DefaultConfig())
	before := e.Live()

	fx := e.Dispatch(down(1, 400, 300, after(time.Second)))
	assert.True(t, fx.Select)
	require.NotNil(t, fx.FocusCenter)
	assertVec(t, e.Instance().Center(), *fx.FocusCenter)
	assert.Equal(t, Idle, e.State())
	assert.Equal(t, "", r.arb.Owner())

	e.Dispatch(move(1, 480, 340, after(time.Second+10*time.Millisecond)))
	e.Dispatch(up(1, 480, 340, after(time.Second+20*time.Millisecond)))
	assert.Equal(t, before, e.Live())
}

func TestDragGraceAbsorbsSelectingTouch(t *testing.T) {
	r := newRig()
	e := r.selected(t, "a", DefaultConfig())
	fx := e.Dispatch(down(1, 400, 300, after(100*time.Millisecond)))
	assert.True(t, fx.Consumed)
	assert.Equal(t, Idle, e.State())
	assert.Equal(t, "", r.arb.Owner())
}

func TestDragRoundTrip(t *testing.T) {
	for name, path := range map[string][]Point{
		"direct":   {{150, 120}},
		"detour":   {{300, 20}, {10, 590}, {150, 120}},
		"jittered": {{101, 100}, {99, 101}, {140, 110}, {150, 120}},
	} {
		t.Run(name, func(t *testing.T) {
			r := newRig()
			e := r.selected(t, "a", DefaultConfig())
			root := e.Live().Position

			fx := e.Dispatch(down(1, 100, 100, after(time.Second)))
			require.Equal(t, []int{1}, fx.Capture)
			require.True(t, e.Armed())
			require.Equal(t, "a", r.arb.Owner())

			for i, p := range path {
				e.Dispatch(move(1, p.X, p.Y, after(time.Second+time.Duration(i+1)*10*time.Millisecond)))
			}
			fx = e.Dispatch(up(1, 150, 120, after(2*time.Second)))

			want := expectedDrag(t, root, Point{100, 100}, Point{150, 120})
			require.NotNil(t, fx.Commit)
			require.NotNil(t, fx.Commit.Position)
			assert.Nil(t, fx.Commit.Rotation)
			assert.Nil(t, fx.Commit.Scale)
			assertVec(t, want, fx.Commit.Position.Mgl())
			assertVec(t, want, e.Live().Position)
			assert.Equal(t, e.Live(), e.Local())
			assert.Equal(t, Idle, e.State())
			assert.Equal(t, "", r.arb.Owner())
			assert.Equal(t, []int{1}, fx.Uncapture)
		})
	}
}

func TestDragBelowThresholdDoesNotMove(t *testing.T) {
	r := newRig()
	e := r.selected(t, "a", DefaultConfig())
	before := e.Live()
	e.Dispatch(down(1, 400, 300, after(time.Second)))
	e.Dispatch(move(1, 403, 301, after(time.Second+5*time.Millisecond)))
	assert.True(t, e.Armed())
	fx := e.Dispatch(up(1, 403, 301, after(time.Second+10*time.Millisecond)))
	assert.Nil(t, fx.Commit)
	assert.Equal(t, before, e.Live())
	assert.Equal(t, "", r.arb.Owner())
}

func TestDragThresholdCountsPathLength(t *testing.T) {
	r := newRig()
	e := r.selected(t, "a", DefaultConfig())
	e.Dispatch(down(1, 400, 300, after(time.Second)))
	e.Dispatch(move(1, 403, 300, after(time.Second+5*time.Millisecond)))
	require.True(t, e.Armed())
	e.Dispatch(move(1, 400, 300, after(time.Second+10*time.Millisecond)))
	assert.False(t, e.Armed(), "6px of travel arms the drag even back at the start")
	assert.Equal(t, Dragging, e.State())
}

func TestCoalescedMovePrefersLatestSample(t *testing.T) {
	r := newRig()
	e := r.selected(t, "a", DefaultConfig())
	root := e.Live().Position
	e.Dispatch(down(1, 100, 100, after(time.Second)))
	e.Dispatch(PointerMove{ID: 1, Pos: Point{120, 110}, Coalesced: []Point{{130, 112}, {160, 130}}, At: after(time.Second + 10*time.Millisecond)})
	assertVec(t, expectedDrag(t, root, Point{100, 100}, Point{160, 130}), e.Live().Position)
}

func TestDragScenarioKeepsEpoch(t *testing.T) {
	r := newRig()
	store := layout.NewStore(layout.WithPlacement(func() layout.Vec3 { return layout.Vec3{0.2, 0, -0.3} }))
	id := store.Add("/models/chair.glb")
	epoch := store.Epoch()
	obj, _ := store.Get(id)

	inst, err := r.arena.Attach(context.Background(), id, obj.URL)
	require.NoError(t, err)
	e := NewEngine(inst, obj, epoch, r.arb, testView, DefaultConfig())
	e.SetSelected(true, t0)

	e.Dispatch(down(1, 100, 100, after(time.Second)))
	e.Dispatch(move(1, 150, 120, after(time.Second+16*time.Millisecond)))
	fx := e.Dispatch(up(1, 150, 120, after(time.Second+32*time.Millisecond)))
	require.NotNil(t, fx.Commit)

	snap := store.Update(id, *fx.Commit)
	assert.Equal(t, epoch, snap.Epoch)
	got, _ := store.Get(id)
	assertVec(t, expectedDrag(t, obj.Position.Mgl(), Point{100, 100}, Point{150, 120}), got.Position.Mgl())

	assert.False(t, e.Reconcile(got, snap.Epoch).Invalidate, "commit and store already agree")
	assert.Equal(t, e.Live(), got.Transform())
}

func TestDragReusesPreviousNormal(t *testing.T) {
	r := newRig()
	e := r.selected(t, "a", DefaultConfig())
	e.Dispatch(down(1, 100, 100, after(time.Second)))
	e.Dispatch(move(1, 150, 120, after(time.Second+10*time.Millisecond)))
	e.Dispatch(up(1, 150, 120, after(time.Second+20*time.Millisecond)))
	require.True(t, e.drag.hasPrev)
	assertVec(t, testView.cam.Direction(), e.drag.prevNormal)
}

func TestGestureExclusivity(t *testing.T) {
	r := newRig()
	a := r.selected(t, "a", DefaultConfig())
	b := r.selected(t, "b", DefaultConfig())

	a.Dispatch(down(1, 100, 100, after(time.Second)))
	a.Dispatch(move(1, 150, 120, after(time.Second+10*time.Millisecond)))
	require.Equal(t, Dragging, a.State())

	fx := b.Dispatch(down(2, 600, 400, after(time.Second+20*time.Millisecond)))
	assert.False(t, fx.Consumed)
	assert.Equal(t, Idle, b.State())
	assert.Equal(t, "a", r.arb.Owner())

	a.Dispatch(up(1, 150, 120, after(time.Second+30*time.Millisecond)))
	b.Dispatch(down(2, 600, 400, after(time.Second+40*time.Millisecond)))
	assert.Equal(t, Dragging, b.State())
	assert.Equal(t, Idle, a.State())
	assert.Equal(t, "b", r.arb.Owner())
}

func TestLostLockForcesEnd(t *testing.T) {
	r := newRig()
	a := r.selected(t, "a", DefaultConfig())
	a.Dispatch(down(1, 100, 100, after(time.Second)))
	a.Dispatch(move(1, 150, 120, after(time.Second+10*time.Millisecond)))
	live := a.Live()

	r.arb.Release("a")
	require.True(t, r.arb.TryAcquire("b"))

	fx := a.Dispatch(move(1, 300, 300, after(time.Second+20*time.Millisecond)))
	assert.Equal(t, Idle, a.State())
	require.NotNil(t, fx.Commit)
	assertVec(t, live.Position, fx.Commit.Position.Mgl())
	assert.Equal(t, live, a.Live(), "the move after losing the lock is ignored")
	assert.Equal(t, "b", r.arb.Owner(), "the new owner keeps its lock")
}

func TestGlobalReleaseFreesLock(t *testing.T) {
	t.Run("active drag", func(t *testing.T) {
		r := newRig()
		e := r.selected(t, "a", DefaultConfig())
		e.Dispatch(down(1, 100, 100, after(time.Second)))
		e.Dispatch(move(1, 150, 120, after(time.Second+10*time.Millisecond)))

		fx := e.Dispatch(GlobalRelease{At: after(2 * time.Second)})
		assert.Equal(t, Idle, e.State())
		assert.Equal(t, "", r.arb.Owner())
		require.NotNil(t, fx.Commit)
		assert.True(t, fx.Invalidate)

		again := e.Dispatch(GlobalRelease{At: after(2*time.Second + time.Millisecond)})
		assert.Nil(t, again.Commit)
		assert.False(t, again.Consumed)
	})
	t.Run("armed drag", func(t *testing.T) {
		r := newRig()
		e := r.selected(t, "a", DefaultConfig())
		e.Dispatch(down(1, 100, 100, after(time.Second)))
		fx := e.Dispatch(GlobalRelease{At: after(2 * time.Second)})
		assert.Equal(t, Idle, e.State())
		assert.Equal(t, "", r.arb.Owner())
		assert.Nil(t, fx.Commit)
	})
	t.Run("pinch", func(t *testing.T) {
		r := newRig()
		e := r.selected(t, "a", DefaultConfig())
		e.Dispatch(down(1, 400, 300, after(time.Second)))
		e.Dispatch(down(2, 450, 300, after(time.Second+5*time.Millisecond)))
		require.True(t, r.arb.PinchActive())
		e.Dispatch(GlobalRelease{At: after(2 * time.Second)})
		assert.Equal(t, Idle, e.State())
		assert.False(t, r.arb.PinchActive())
		assert.Equal(t, "", r.arb.Owner())
	})
}

func TestUpThenGlobalReleaseIsIdempotent(t *testing.T) {
	r := newRig()
	e := r.selected(t, "a", DefaultConfig())
	e.Dispatch(down(1, 100, 100, after(time.Second)))
	e.Dispatch(move(1, 150, 120, after(time.Second+10*time.Millisecond)))
	first := e.Dispatch(up(1, 150, 120, after(time.Second+20*time.Millisecond)))
	second := e.Dispatch(GlobalRelease{At: after(time.Second + 20*time.Millisecond)})
	require.NotNil(t, first.Commit)
	assert.Nil(t, second.Commit)
	assert.Equal(t, Idle, e.State())
}

func TestGlobalReleaseCooldownSparesNewGesture(t *testing.T) {
	r := newRig()
	e := r.selected(t, "a", DefaultConfig())
	e.Dispatch(down(1, 100, 100, after(time.Second)))
	e.Dispatch(up(1, 100, 100, after(time.Second+10*time.Millisecond)))
	e.Dispatch(down(2, 100, 100, after(time.Second+20*time.Millisecond)))
	e.Dispatch(GlobalRelease{At: after(time.Second + 30*time.Millisecond)})
	assert.Equal(t, Dragging, e.State(), "late fallback from the previous release")
	e.Dispatch(GlobalRelease{At: after(2 * time.Second)})
	assert.Equal(t, Idle, e.State())
}

func TestGlobalReleaseAfterConsumedFallbackEndsNewGesture(t *testing.T) {
	r := newRig()
	e := r.selected(t, "a", DefaultConfig())
	e.Dispatch(down(1, 100, 100, after(time.Second)))
	e.Dispatch(up(1, 100, 100, after(time.Second+10*time.Millisecond)))
	e.Dispatch(GlobalRelease{At: after(time.Second + 10*time.Millisecond)})

	e.Dispatch(down(2, 100, 100, after(time.Second+20*time.Millisecond)))
	require.Equal(t, Dragging, e.State())
	// The release of pointer 2 was lost; only the fallback arrives.
	e.Dispatch(GlobalRelease{At: after(time.Second + 30*time.Millisecond)})
	assert.Equal(t, Idle, e.State())
	assert.Equal(t, "", r.arb.Owner())
}

func TestSelectionDoesNotMove(t *testing.T) {
	r := newRig()
	e := r.engine(t, "a", DefaultConfig())
	rot := layout.Vec3{0.1, 0.7, 0}
	obj := layout.PlacedObject{ID: "a", URL: "/models/chair.glb", Position: layout.Vec3{1, 0, 2}, Rotation: rot, Scale: layout.Vec3{1.5, 1.5, 1.5}}
	e.Reconcile(obj, 3)
	before, local := e.Live(), e.Local()

	fx := e.SetSelected(true, t0)
	assert.Nil(t, fx.Commit)
	fx = e.SetSelected(false, t0.Add(time.Millisecond))
	assert.Nil(t, fx.Commit)
	assert.Equal(t, before, e.Live())
	assert.Equal(t, local, e.Local())
}

func TestSelectOtherObjectCancelsArmedDrag(t *testing.T) {
	r := newRig()
	a := r.selected(t, "a", DefaultConfig())
	b := r.engine(t, "b", DefaultConfig())
	aBefore, bBefore := a.Live(), b.Live()

	a.Dispatch(down(1, 100, 100, after(time.Second)))
	require.Equal(t, "a", r.arb.Owner())

	fx := b.Dispatch(down(2, 600, 400, after(time.Second+5*time.Millisecond)))
	require.True(t, fx.Select)
	a.SetSelected(false, after(time.Second+6*time.Millisecond))
	b.SetSelected(true, after(time.Second+6*time.Millisecond))

	assert.Equal(t, Idle, a.State())
	assert.Equal(t, Idle, b.State())
	assert.Equal(t, "", r.arb.Owner())
	assert.Equal(t, aBefore, a.Live())
	assert.Equal(t, bBefore, b.Live())
	assert.True(t, b.Selected())
	assert.False(t, a.Selected())
}

func TestReconcileWhileIdleSyncs(t *testing.T) {
	r := newRig()
	e := r.engine(t, "a", DefaultConfig())
	obj := layout.PlacedObject{ID: "a", URL: "/models/chair.glb", Position: layout.Vec3{2, 0, 1}, Scale: layout.Vec3{1, 1, 1}}
	fx := e.Reconcile(obj, 1)
	assert.True(t, fx.Invalidate)
	assert.Equal(t, obj.Transform(), e.Live())
	assert.Equal(t, obj.Transform(), e.Local())

	assert.False(t, e.Reconcile(obj, 1).Invalidate)
	got, epoch := e.Authoritative()
	assert.Equal(t, obj, got)
	assert.Equal(t, uint64(1), epoch)
}

func TestReconcileDuringGestureIsQueued(t *testing.T) {
	r := newRig()
	e := r.selected(t, "a", DefaultConfig())
	root := e.Live().Position
	e.Dispatch(down(1, 100, 100, after(time.Second)))
	e.Dispatch(move(1, 150, 120, after(time.Second+10*time.Millisecond)))
	dragged := e.Live().Position

	ext := layout.PlacedObject{ID: "a", URL: "/models/chair.glb", Position: layout.Vec3{9, 9, 9}, Rotation: layout.Vec3{0, 1, 0}, Scale: layout.Vec3{2, 2, 2}}
	fx := e.Reconcile(ext, 7)
	assert.False(t, fx.Invalidate)
	assert.True(t, e.HasPending())
	assertVec(t, dragged, e.Live().Position)
	assert.Equal(t, mgl64.Vec3{1, 1, 1}, e.Live().Scale)

	fx = e.Dispatch(up(1, 150, 120, after(time.Second+20*time.Millisecond)))
	require.NotNil(t, fx.Commit)
	assertVec(t, expectedDrag(t, root, Point{100, 100}, Point{150, 120}), fx.Commit.Position.Mgl())
	live := e.Live()
	assertVec(t, dragged, live.Position)
	assert.Equal(t, mgl64.Vec3{2, 2, 2}, live.Scale)
	assert.InDelta(t, 1.0, live.Rotation.Y, 1e-12)
	assert.False(t, e.HasPending())
	_, epoch := e.Authoritative()
	assert.Equal(t, uint64(7), epoch)
}

func TestRotateModeSmoothsAndClampsPitch(t *testing.T) {
	r := newRig()
	r.arb.SetRotateMode(true)
	e := r.selected(t, "a", DefaultConfig())

	e.Dispatch(down(1, 400, 300, after(time.Second)))
	require.Equal(t, Rotating, e.State())
	fx := e.Dispatch(move(1, 500, 300, after(time.Second+10*time.Millisecond)))
	assert.True(t, fx.Animating)
	e.Dispatch(move(1, 500, -1000, after(time.Second+20*time.Millisecond)))
	assert.InDelta(t, 1.0, e.rot.targetYaw, 1e-12)
	assert.InDelta(t, math.Pi/3, e.rot.targetPitch, 1e-12)

	first := e.Dispatch(Tick{DT: 16 * time.Millisecond, At: after(time.Second + 36*time.Millisecond)})
	assert.True(t, first.Invalidate)
	assert.True(t, first.Animating)
	yaw1 := e.Live().Rotation.Y
	assert.Greater(t, yaw1, 0.0)
	assert.Less(t, yaw1, 1.0)

	for i := 0; i < 200 && e.Animating(); i++ {
		e.Dispatch(Tick{DT: 16 * time.Millisecond, At: after(2 * time.Second)})
	}
	assert.False(t, e.Animating())
	assert.InDelta(t, 1.0, e.Live().Rotation.Y, 1e-4)
	assert.InDelta(t, math.Pi/3, e.Live().Rotation.X, 1e-4)

	fx = e.Dispatch(up(1, 500, -1000, after(3*time.Second)))
	require.NotNil(t, fx.Commit)
	require.NotNil(t, fx.Commit.Rotation)
	assert.Nil(t, fx.Commit.Position)
	assert.InDelta(t, 1.0, fx.Commit.Rotation[1], 1e-4)
	assert.Equal(t, mgl64.Vec3{}, e.Live().Position)
}

func TestRotateConvergesQuickly(t *testing.T) {
	r := newRig()
	r.arb.SetRotateMode(true)
	e := r.selected(t, "a", DefaultConfig())
	e.Dispatch(down(1, 400, 300, after(time.Second)))
	e.Dispatch(move(1, 500, 300, after(time.Second)))
	for i := 0; i < 25; i++ { // ~400ms at 60fps
		e.Dispatch(Tick{DT: 16 * time.Millisecond, At: after(time.Second)})
	}
	assert.InDelta(t, 1.0, e.Live().Rotation.Y, 0.01)
}
