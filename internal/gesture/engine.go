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
	"log/slog"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"roomoverlay/internal/geom"
	"roomoverlay/internal/layout"
	applog "roomoverlay/internal/log"
	"roomoverlay/internal/scenegraph"
)

// View gives the engine the current camera and viewport. Both are read on
// every use.
type View interface {
	Camera() geom.Camera
	Viewport() geom.Viewport
}

type touched struct{ pos, rot, scale bool }

func (t touched) any() bool { return t.pos || t.rot || t.scale }

type tracked struct {
	start, last Point
	at          time.Time
	travel      float64 // path length since the press
}

type press struct {
	id    int
	start Point
	at    time.Time
	moved float64
}

// Engine is the gesture state machine of one placed object. It keeps three
// views of the object's transform: the authoritative value last seen from
// the layout store, a local buffer, and the live scene node. Outside a
// gesture all three agree; during a gesture the live node leads and store
// updates are queued until the gesture ends.
//
// Engine is not safe for concurrent use; the scene serializes calls.
type Engine struct {
	id   string
	inst *scenegraph.Instance
	arb  *Arbiter
	view View
	cfg  Config
	log  *slog.Logger

	state   State
	armed   bool
	ending  bool
	endedAt time.Time
	// owed is set when a routed release ended the gesture and its
	// document-level fallback has not arrived yet.
	owed bool

	auth         layout.PlacedObject
	authEpoch    uint64
	local        scenegraph.Transform
	pending      *layout.PlacedObject
	pendingEpoch uint64
	touched      touched

	selected bool
	deleteAt time.Time
	dragAt   time.Time

	pointers    map[int]*tracked
	deletePress *press

	drag  dragState
	rot   rotateState
	pinch pinchState
}

// NewEngine binds an engine to inst and syncs the node to obj.
func NewEngine(inst *scenegraph.Instance, obj layout.PlacedObject, epoch uint64, arb *Arbiter, view View, cfg Config) *Engine {
	e := &Engine{
		id:       obj.ID,
		inst:     inst,
		arb:      arb,
		view:     view,
		cfg:      cfg,
		log:      applog.WithComponent("gesture").With(slog.String("id", obj.ID)),
		pointers: map[int]*tracked{},
	}
	e.sync(obj, epoch)
	return e
}

// ID returns the object id.
func (e *Engine) ID() string { return e.id }

// State returns the current gesture state.
func (e *Engine) State() State { return e.state }

// Armed reports a pressed but not yet moving drag.
func (e *Engine) Armed() bool { return e.state == Dragging && e.armed }

// Selected reports whether the engine believes its object is selected.
func (e *Engine) Selected() bool { return e.selected }

// Instance returns the scene node the engine drives.
func (e *Engine) Instance() *scenegraph.Instance { return e.inst }

// Live returns the node's current transform.
func (e *Engine) Live() scenegraph.Transform { return e.inst.Transform() }

// Local returns the optimistic local buffer.
func (e *Engine) Local() scenegraph.Transform { return e.local }

// Authoritative returns the last store value applied and its epoch.
func (e *Engine) Authoritative() (layout.PlacedObject, uint64) { return e.auth, e.authEpoch }

// HasPending reports a store update waiting for the gesture to end.
func (e *Engine) HasPending() bool { return e.pending != nil }

// Animating reports whether ticks are still needed.
func (e *Engine) Animating() bool { return e.state == Rotating && !e.rot.settled() }

// SetConfig swaps the tuning; a running gesture keeps its start values.
func (e *Engine) SetConfig(cfg Config) { e.cfg = cfg }

// Dispatch feeds one event through the state machine. It never fails: every
// path leaves the engine in a consistent state.
func (e *Engine) Dispatch(ev Event) Effects {
	var fx Effects
	at := ev.when()
	if e.state != Idle && !e.arb.Owns(e.id) {
		e.log.Debug("gesture lock lost, ending", slog.String("state", e.state.String()))
		fx.merge(e.end(at))
	}
	switch ev := ev.(type) {
	case PointerDown:
		fx.merge(e.pointerDown(ev))
	case PointerMove:
		fx.merge(e.pointerMove(ev))
	case PointerUp:
		fx.merge(e.pointerUp(ev))
	case PointerCancel:
		fx.merge(e.pointerCancel(ev))
	case GlobalRelease:
		fx.merge(e.globalRelease(ev.At))
	case FocusLost:
		fx.merge(e.end(ev.At))
	case Tick:
		fx.merge(e.tick(ev.DT))
	}
	return fx
}

func (e *Engine) pointerDown(ev PointerDown) Effects {
	switch e.state {
	case Idle:
		return e.downIdle(ev)
	case Dragging, Rotating:
		if t, dup := e.pointers[ev.ID]; dup {
			// A repeated id means its release was lost; restart tracking.
			*t = tracked{start: ev.Pos, last: ev.Pos, at: ev.At}
			return Effects{Consumed: true}
		}
		if len(e.pointers) == 1 {
			return e.startPinch(ev)
		}
	}
	return Effects{}
}

func (e *Engine) downIdle(ev PointerDown) Effects {
	clear(e.pointers)
	if e.selected && !ev.At.Before(e.deleteAt) && e.HitDelete(ev.Pos) {
		e.deletePress = &press{id: ev.ID, start: ev.Pos, at: ev.At}
		return Effects{Consumed: true, Capture: []int{ev.ID}}
	}
	if !e.selected {
		c := e.inst.Center()
		return Effects{Select: true, FocusCenter: &c, Consumed: true, Invalidate: true}
	}
	if ev.At.Before(e.dragAt) {
		return Effects{Consumed: true}
	}
	if !e.arb.TryAcquire(e.id) {
		return Effects{}
	}
	e.pointers[ev.ID] = &tracked{start: ev.Pos, last: ev.Pos, at: ev.At}
	if e.arb.RotateModeActive() {
		e.startRotate()
	} else {
		e.state, e.armed = Dragging, true
	}
	e.log.Debug("gesture started", slog.String("state", e.state.String()), slog.Int("pointer", ev.ID))
	return Effects{Consumed: true, Capture: []int{ev.ID}}
}

func (e *Engine) pointerMove(ev PointerMove) Effects {
	p := ev.latest()
	if dp := e.deletePress; dp != nil && dp.id == ev.ID {
		if d := p.dist(dp.start); d > dp.moved {
			dp.moved = d
		}
		return Effects{Consumed: true}
	}
	t, ok := e.pointers[ev.ID]
	if !ok {
		return Effects{}
	}
	prev := t.last
	t.last = p
	t.travel += p.dist(prev)
	switch e.state {
	case Dragging:
		if e.armed {
			if t.travel <= e.cfg.DragThreshold {
				return Effects{Consumed: true}
			}
			e.activateDrag(t.start)
		}
		return e.dragTo(p)
	case Rotating:
		return e.rotateBy(p.X-prev.X, p.Y-prev.Y)
	case Pinching:
		return e.pinchMove()
	}
	return Effects{}
}

func (e *Engine) pointerUp(ev PointerUp) Effects {
	if dp := e.deletePress; dp != nil && dp.id == ev.ID {
		return e.confirmDelete(dp, ev)
	}
	if _, ok := e.pointers[ev.ID]; !ok {
		return Effects{}
	}
	return e.release(ev.ID, ev.At)
}

func (e *Engine) pointerCancel(ev PointerCancel) Effects {
	if dp := e.deletePress; dp != nil && dp.id == ev.ID {
		e.deletePress = nil
		return Effects{Consumed: true, Uncapture: []int{ev.ID}}
	}
	if _, ok := e.pointers[ev.ID]; !ok {
		return Effects{}
	}
	return e.release(ev.ID, ev.At)
}

// release handles one tracked pointer going away.
func (e *Engine) release(id int, at time.Time) Effects {
	var fx Effects
	if e.state == Pinching {
		delete(e.pointers, id)
		fx = Effects{Consumed: true, Uncapture: []int{id}}
		if len(e.pointers) >= 2 {
			return fx
		}
	}
	if e.state != Idle {
		fx.merge(e.end(at))
		e.owed = true
	}
	return fx
}

func (e *Engine) globalRelease(at time.Time) Effects {
	var fx Effects
	if dp := e.deletePress; dp != nil {
		e.deletePress = nil
		fx.Uncapture = append(fx.Uncapture, dp.id)
	}
	late := e.owed && at.Sub(e.endedAt) < e.cfg.EndCooldown
	e.owed = false
	if e.state == Idle || late {
		return fx
	}
	e.log.Debug("global release ending gesture", slog.String("state", e.state.String()))
	fx.merge(e.end(at))
	return fx
}

// end returns the engine to Idle, committing whatever the live node shows
// for the fields the gesture touched. Calling it twice is harmless.
func (e *Engine) end(at time.Time) Effects {
	if e.ending || e.state == Idle {
		return Effects{}
	}
	e.ending = true
	defer func() { e.ending = false }()

	was := e.state
	live := e.inst.Transform()
	e.local = live
	fx := Effects{Consumed: true, Invalidate: true}
	tch := e.touched
	if tch.any() {
		p := layout.PatchFrom(live, tch.pos, tch.rot, tch.scale)
		fx.Commit = &p
	}
	e.arb.SetPinching(e.id, false)
	if e.drag.active {
		e.drag.prevNormal, e.drag.hasPrev = e.drag.plane.Normal, true
	}
	e.arb.Release(e.id)
	for id := range e.pointers {
		fx.Uncapture = append(fx.Uncapture, id)
	}
	sort.Ints(fx.Uncapture)
	clear(e.pointers)

	e.state, e.armed = Idle, false
	e.drag.active = false
	e.touched = touched{}
	e.endedAt = at

	if e.pending != nil {
		fx.merge(e.applyPending(tch, live))
	}
	e.log.Debug("gesture ended", slog.String("state", was.String()), slog.Bool("commit", fx.Commit != nil))
	return fx
}

// applyPending folds the store update queued during the gesture into the
// node; fields the gesture changed keep their live value since the commit
// carries them upstream.
func (e *Engine) applyPending(tch touched, live scenegraph.Transform) Effects {
	obj, epoch := *e.pending, e.pendingEpoch
	e.pending = nil
	e.auth, e.authEpoch = obj, epoch
	t := obj.Transform()
	if tch.pos {
		t.Position = live.Position
	}
	if tch.rot {
		t.Rotation = live.Rotation
	}
	if tch.scale {
		t.Scale = live.Scale
	}
	e.local = t
	e.inst.SetTransform(t)
	return Effects{Invalidate: true}
}

// Reconcile hands the engine the store's current value for its object.
// While idle the buffer and node are synced to it; during a gesture it is
// queued and applied when the gesture ends.
func (e *Engine) Reconcile(obj layout.PlacedObject, epoch uint64) Effects {
	if e.state != Idle {
		o := obj
		e.pending, e.pendingEpoch = &o, epoch
		return Effects{}
	}
	if e.sync(obj, epoch) {
		return Effects{Invalidate: true}
	}
	return Effects{}
}

func (e *Engine) sync(obj layout.PlacedObject, epoch uint64) bool {
	e.auth, e.authEpoch = obj, epoch
	t := obj.Transform()
	if e.local == t && e.inst.Transform() == t {
		return false
	}
	e.local = t
	e.inst.SetTransform(t)
	return true
}

// SetSelected updates the selection flag. Selecting arms the grace periods;
// deselecting ends any gesture. The transform is never touched here.
func (e *Engine) SetSelected(sel bool, at time.Time) Effects {
	if sel == e.selected {
		return Effects{}
	}
	e.selected = sel
	fx := Effects{Invalidate: true}
	if sel {
		e.deleteAt = at.Add(e.cfg.DeleteGrace)
		e.dragAt = at.Add(e.cfg.DragGrace)
		return fx
	}
	e.deletePress = nil
	fx.merge(e.end(at))
	return fx
}

// Close ends any gesture and drops the engine's claims on the arbiter.
func (e *Engine) Close(at time.Time) Effects {
	fx := e.end(at)
	e.deletePress = nil
	e.arb.Forget(e.id)
	return fx
}

// Pick returns the distance along the pointer ray to the object's grab
// sphere.
func (e *Engine) Pick(p Point) (float64, bool) {
	vp := e.view.Viewport()
	if vp.Empty() {
		return 0, false
	}
	c, r := e.inst.HitSphere()
	return geom.PointerRay(p.X, p.Y, e.view.Camera(), vp).IntersectSphere(c, r)
}

// HitDelete reports whether p lies on the delete affordance. The test is
// done in screen space: the affordance centre and a point one radius to the
// camera's right are projected, and p must fall within DeleteHitFactor of
// that projected radius.
func (e *Engine) HitDelete(p Point) bool {
	cam, vp := e.view.Camera(), e.view.Viewport()
	if vp.Empty() {
		return false
	}
	center, r := e.inst.DeleteAnchor()
	cx, cy, ok := geom.ProjectToScreen(center, cam, vp)
	if !ok {
		return false
	}
	ex, ey, ok := geom.ProjectToScreen(center.Add(cam.Right().Mul(r)), cam, vp)
	if !ok {
		return false
	}
	radius := mgl64.Vec2{ex - cx, ey - cy}.Len()
	return p.dist(Point{cx, cy}) <= radius*e.cfg.DeleteHitFactor
}

// DeleteScreenPos returns where the delete affordance is drawn.
func (e *Engine) DeleteScreenPos() (Point, float64, bool) {
	cam, vp := e.view.Camera(), e.view.Viewport()
	center, r := e.inst.DeleteAnchor()
	cx, cy, ok := geom.ProjectToScreen(center, cam, vp)
	if !ok {
		return Point{}, 0, false
	}
	ex, ey, ok := geom.ProjectToScreen(center.Add(cam.Right().Mul(r)), cam, vp)
	if !ok {
		return Point{}, 0, false
	}
	return Point{cx, cy}, mgl64.Vec2{ex - cx, ey - cy}.Len(), true
}

func (e *Engine) confirmDelete(dp *press, ev PointerUp) Effects {
	e.deletePress = nil
	fx := Effects{Consumed: true, Uncapture: []int{dp.id}}
	moved := dp.moved
	if d := ev.Pos.dist(dp.start); d > moved {
		moved = d
	}
	quick := ev.At.Sub(dp.at) < e.cfg.DeleteMaxDuration
	if moved <= e.cfg.DeleteMaxMove && quick && e.selected && !ev.At.Before(e.deleteAt) && e.HitDelete(ev.Pos) {
		e.log.Debug("delete confirmed")
		fx.Remove = true
		return fx
	}
	e.log.Debug("delete press dropped", slog.Float64("moved", moved), slog.Bool("quick", quick))
	return fx
}
