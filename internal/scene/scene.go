/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package scene composes the layout store, the gesture engines and the
// scene-graph arena into one event-serialized scene with a render-on-demand
// frame loop.
package scene

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"roomoverlay/internal/geom"
	"roomoverlay/internal/gesture"
	"roomoverlay/internal/layout"
	applog "roomoverlay/internal/log"
	"roomoverlay/internal/scenegraph"
)

// Options configure a Scene. Zero fields take the room defaults.
type Options struct {
	Camera     geom.Camera
	Viewport   geom.Viewport
	Gesture    *gesture.Config
	Loader     scenegraph.Loader
	Lights     *Lights
	Background color.RGBA
	// Clock timestamps pointer events; tests pass a fake.
	Clock func() time.Time
}

// Scene is safe for concurrent use; every entry point runs under one mutex
// so pointer handlers, store observers and the frame loop never interleave.
type Scene struct {
	mu       sync.Mutex
	store    *layout.Store
	arb      *gesture.Arbiter
	arena    *scenegraph.Arena
	engines  map[string]*gesture.Engine
	captured map[int]string
	cam      geom.Camera
	vp       geom.Viewport
	cfg      gesture.Config
	lights   Lights
	clear    color.RGBA
	sched    Scheduler
	now      func() time.Time
	unsub    func()
	log      *slog.Logger

	// Store notifications raised while the scene holds mu are queued and
	// drained before mu is released.
	qmu   sync.Mutex
	queue []layout.Change
	busy  bool
}

// EngineInfo is a read-only view of one object's gesture engine.
type EngineInfo struct {
	ID            string
	State         gesture.State
	Armed         bool
	Selected      bool
	Live          scenegraph.Transform
	Local         scenegraph.Transform
	Authoritative layout.PlacedObject
	Epoch         uint64
	HasPending    bool
}

// sceneView hands engines the camera and viewport. Engines are only driven
// while the scene holds mu, so no locking happens here.
type sceneView struct{ s *Scene }

func (v sceneView) Camera() geom.Camera     { return v.s.cam }
func (v sceneView) Viewport() geom.Viewport { return v.s.vp }

// New builds a scene over store and attaches an instance for every object
// already in it.
func New(store *layout.Store, opts Options) *Scene {
	s := &Scene{
		store:    store,
		arb:      gesture.NewArbiter(),
		engines:  map[string]*gesture.Engine{},
		captured: map[int]string{},
		cam:      opts.Camera,
		vp:       opts.Viewport,
		cfg:      gesture.DefaultConfig(),
		lights:   DefaultLights(),
		clear:    opts.Background,
		now:      opts.Clock,
		log:      applog.WithComponent("scene"),
	}
	if s.cam == (geom.Camera{}) {
		s.cam = geom.DefaultCamera()
	}
	if opts.Gesture != nil {
		s.cfg = *opts.Gesture
	}
	if opts.Lights != nil {
		s.lights = *opts.Lights
	}
	if s.clear == (color.RGBA{}) {
		s.clear = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}
	if s.now == nil {
		s.now = time.Now
	}
	loader := opts.Loader
	if loader == nil {
		loader = scenegraph.NewStaticLoader()
	}
	s.arena = scenegraph.NewArena(loader)

	s.unsub = store.Subscribe(s.onChange)
	s.do(func() {
		s.syncEnginesLocked(store.Snapshot(), store.Selected())
		s.sched.Invalidate()
	})
	return s
}

// do runs fn under mu and processes any store notifications fn caused.
func (s *Scene) do(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qmu.Lock()
	s.busy = true
	s.qmu.Unlock()
	fn()
	s.drainLocked()
}

func (s *Scene) onChange(c layout.Change) {
	s.qmu.Lock()
	s.queue = append(s.queue, c)
	if s.busy {
		s.qmu.Unlock()
		return
	}
	s.busy = true
	s.qmu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.drainLocked()
}

func (s *Scene) drainLocked() {
	for {
		s.qmu.Lock()
		if len(s.queue) == 0 {
			s.busy = false
			s.qmu.Unlock()
			return
		}
		c := s.queue[0]
		s.queue = s.queue[1:]
		s.qmu.Unlock()
		s.handleLocked(c)
	}
}

func (s *Scene) handleLocked(c layout.Change) {
	switch c.Kind {
	case layout.Structural:
		s.syncEnginesLocked(c.Snapshot, c.Selected)
	case layout.Updated:
		for _, obj := range c.Snapshot.Objects {
			if eng, ok := s.engines[obj.ID]; ok {
				s.applyLocked(obj.ID, eng.Reconcile(obj, c.Snapshot.Epoch))
			}
		}
	case layout.SelectionChanged:
		s.selectLocked(c.Selected, s.now())
	}
	s.sched.Invalidate()
}

// syncEnginesLocked makes the engine set match snap: new objects get an
// instance and engine, removed ones are torn down, a changed asset reference
// re-creates the instance, and the rest reconcile.
func (s *Scene) syncEnginesLocked(snap *layout.Snapshot, selected string) {
	at := s.now()
	keep := make(map[string]bool, len(snap.Objects))
	for _, obj := range snap.Objects {
		keep[obj.ID] = true
		eng, ok := s.engines[obj.ID]
		if ok && eng.Instance().AssetRef != obj.URL {
			s.dropLocked(obj.ID, at)
			ok = false
		}
		if ok {
			s.applyLocked(obj.ID, eng.Reconcile(obj, snap.Epoch))
			continue
		}
		inst, err := s.arena.Attach(context.Background(), obj.ID, obj.URL)
		if err != nil {
			s.log.Warn("asset unavailable, object not shown", slog.String("id", obj.ID), slog.String("ref", obj.URL), slog.Any("error", err))
			continue
		}
		s.engines[obj.ID] = gesture.NewEngine(inst, obj, snap.Epoch, s.arb, sceneView{s}, s.cfg)
	}
	for id := range s.engines {
		if !keep[id] {
			s.dropLocked(id, at)
		}
	}
	s.selectLocked(selected, at)
}

func (s *Scene) dropLocked(id string, at time.Time) {
	eng, ok := s.engines[id]
	if !ok {
		return
	}
	fx := eng.Close(at)
	for _, p := range fx.Uncapture {
		delete(s.captured, p)
	}
	for p, owner := range s.captured {
		if owner == id {
			delete(s.captured, p)
		}
	}
	delete(s.engines, id)
	s.arena.Detach(id)
	s.log.Debug("object removed from scene", slog.String("id", id))
}

func (s *Scene) selectLocked(selected string, at time.Time) {
	for _, id := range s.sortedIDsLocked() {
		if id == selected {
			continue
		}
		s.applyLocked(id, s.engines[id].SetSelected(false, at))
	}
	if eng, ok := s.engines[selected]; ok {
		s.applyLocked(selected, eng.SetSelected(true, at))
	}
}

// applyLocked carries out what an engine asked for.
func (s *Scene) applyLocked(id string, fx gesture.Effects) {
	for _, p := range fx.Uncapture {
		if s.captured[p] == id {
			delete(s.captured, p)
		}
	}
	for _, p := range fx.Capture {
		s.captured[p] = id
	}
	if fx.Commit != nil {
		s.store.Update(id, *fx.Commit)
	}
	if fx.Select {
		s.store.Select(id)
	}
	if fx.FocusCenter != nil && s.arb.RotateMode() {
		s.cam.Target = *fx.FocusCenter
	}
	if fx.Remove {
		s.log.Info("object deleted", slog.String("id", id))
		s.store.Remove(id)
	}
	if fx.Invalidate || fx.Animating || fx.Commit != nil {
		s.sched.Invalidate()
	}
}

func (s *Scene) sortedIDsLocked() []string {
	ids := make([]string, 0, len(s.engines))
	for id := range s.engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// hitLocked picks the object under p. The selected object's delete
// affordance and body win over anything else; otherwise the nearest body.
func (s *Scene) hitLocked(p gesture.Point) string {
	sel := s.store.Selected()
	if eng, ok := s.engines[sel]; ok {
		if eng.HitDelete(p) {
			return sel
		}
		if _, ok := eng.Pick(p); ok {
			return sel
		}
	}
	best, bestT := "", math.Inf(1)
	for _, id := range s.sortedIDsLocked() {
		if t, ok := s.engines[id].Pick(p); ok && t < bestT {
			best, bestT = id, t
		}
	}
	return best
}

// activeOwnerLocked returns the engine holding the gesture lock, if any.
func (s *Scene) activeOwnerLocked() (string, *gesture.Engine) {
	owner := s.arb.Owner()
	if eng, ok := s.engines[owner]; ok && eng.State() != gesture.Idle {
		return owner, eng
	}
	return "", nil
}

// PointerDown routes a press. While an object is mid-gesture every new
// pointer goes to it; a press on empty space clears the selection.
func (s *Scene) PointerDown(pointer int, p gesture.Point) {
	s.do(func() {
		ev := gesture.PointerDown{ID: pointer, Pos: p, At: s.now()}
		if id, eng := s.activeOwnerLocked(); eng != nil {
			s.applyLocked(id, eng.Dispatch(ev))
			return
		}
		target := s.hitLocked(p)
		if target == "" {
			if s.store.Selected() != "" {
				s.store.Select("")
			}
			return
		}
		s.applyLocked(target, s.engines[target].Dispatch(ev))
	})
}

// PointerMove routes a move to the engine that captured the pointer.
// coalesced carries the intermediate samples, oldest first.
func (s *Scene) PointerMove(pointer int, p gesture.Point, coalesced ...gesture.Point) {
	s.do(func() {
		ev := gesture.PointerMove{ID: pointer, Pos: p, Coalesced: coalesced, At: s.now()}
		id, eng := s.routeLocked(pointer)
		if eng == nil {
			return
		}
		s.applyLocked(id, eng.Dispatch(ev))
	})
}

// PointerUp routes a release and then runs the global release fallback on
// every engine.
func (s *Scene) PointerUp(pointer int, p gesture.Point) {
	s.do(func() {
		at := s.now()
		if id, eng := s.routeLocked(pointer); eng != nil {
			s.applyLocked(id, eng.Dispatch(gesture.PointerUp{ID: pointer, Pos: p, At: at}))
		}
		delete(s.captured, pointer)
		s.globalReleaseLocked(at)
	})
}

// PointerCancel is PointerUp without delete confirmation.
func (s *Scene) PointerCancel(pointer int) {
	s.do(func() {
		at := s.now()
		if id, eng := s.routeLocked(pointer); eng != nil {
			s.applyLocked(id, eng.Dispatch(gesture.PointerCancel{ID: pointer, At: at}))
		}
		delete(s.captured, pointer)
		s.globalReleaseLocked(at)
	})
}

// GlobalRelease ends stray gestures, e.g. when a release happened outside
// the view.
func (s *Scene) GlobalRelease() {
	s.do(func() { s.globalReleaseLocked(s.now()) })
}

// FocusLost ends every gesture, as when the window loses focus.
func (s *Scene) FocusLost() {
	s.do(func() {
		at := s.now()
		for _, id := range s.sortedIDsLocked() {
			s.applyLocked(id, s.engines[id].Dispatch(gesture.FocusLost{At: at}))
		}
	})
}

func (s *Scene) globalReleaseLocked(at time.Time) {
	for _, id := range s.sortedIDsLocked() {
		if eng, ok := s.engines[id]; ok {
			s.applyLocked(id, eng.Dispatch(gesture.GlobalRelease{At: at}))
		}
	}
}

func (s *Scene) routeLocked(pointer int) (string, *gesture.Engine) {
	if id, ok := s.captured[pointer]; ok {
		if eng, ok := s.engines[id]; ok {
			return id, eng
		}
	}
	return s.activeOwnerLocked()
}

// Frame advances animations by dt and reports whether a frame should be
// drawn now: the scene was invalidated or an engine is still settling.
func (s *Scene) Frame(dt time.Duration) bool {
	var animating bool
	s.do(func() {
		at := s.now()
		for _, id := range s.sortedIDsLocked() {
			eng := s.engines[id]
			if eng.State() == gesture.Idle {
				continue
			}
			s.applyLocked(id, eng.Dispatch(gesture.Tick{DT: dt, At: at}))
			animating = animating || eng.Animating()
		}
	})
	return s.sched.take(animating)
}

// Run drives Frame from a ticker and calls draw whenever a frame is due.
func (s *Scene) Run(ctx context.Context, interval time.Duration, draw func()) error {
	return Run(ctx, interval, func(dt time.Duration) {
		if s.Frame(dt) {
			draw()
		}
	})
}

// Invalidate requests a redraw.
func (s *Scene) Invalidate() { s.sched.Invalidate() }

// Frames returns the number of frames drawn so far.
func (s *Scene) Frames() uint64 { return s.sched.Frames() }

// Dirty reports whether a redraw is pending.
func (s *Scene) Dirty() bool { return s.sched.Dirty() }

// Store returns the layout store the scene observes.
func (s *Scene) Store() *layout.Store { return s.store }

// Add places a new object and returns its id.
func (s *Scene) Add(ref string) string { return s.store.Add(ref) }

// Remove deletes the object from the layout.
func (s *Scene) Remove(id string) bool { return s.store.Remove(id) }

// Select makes id the selection; "" clears it.
func (s *Scene) Select(id string) { s.store.Select(id) }

// Selected returns the selected id.
func (s *Scene) Selected() string { return s.store.Selected() }

// SetRotateMode toggles between move and rotate mode. Entering rotate mode
// focuses the camera on the selected object.
func (s *Scene) SetRotateMode(on bool) {
	s.do(func() {
		s.arb.SetRotateMode(on)
		if eng, ok := s.engines[s.store.Selected()]; ok && on {
			s.cam.Target = eng.Instance().Center()
		}
		s.sched.Invalidate()
	})
}

// RotateMode reports whether rotate mode is on.
func (s *Scene) RotateMode() bool { return s.arb.RotateMode() }

// GestureConfig returns the tuning the engines run with.
func (s *Scene) GestureConfig() gesture.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetGestureConfig retunes every engine.
func (s *Scene) SetGestureConfig(cfg gesture.Config) {
	s.do(func() {
		s.cfg = cfg
		for _, eng := range s.engines {
			eng.SetConfig(cfg)
		}
	})
}

// SetViewport resizes the pointer surface.
func (s *Scene) SetViewport(vp geom.Viewport) {
	s.do(func() {
		s.vp = vp
		s.sched.Invalidate()
	})
}

// Viewport returns the pointer surface.
func (s *Scene) Viewport() geom.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vp
}

// SetCamera replaces the camera.
func (s *Scene) SetCamera(cam geom.Camera) {
	s.do(func() {
		s.cam = cam
		s.sched.Invalidate()
	})
}

// Camera returns the current camera.
func (s *Scene) Camera() geom.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam
}

// EngineIDs lists the objects that have an engine, sorted.
func (s *Scene) EngineIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedIDsLocked()
}

// Inspect returns a snapshot of the engine for id.
func (s *Scene) Inspect(id string) (EngineInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eng, ok := s.engines[id]
	if !ok {
		return EngineInfo{}, false
	}
	auth, epoch := eng.Authoritative()
	return EngineInfo{
		ID:            id,
		State:         eng.State(),
		Armed:         eng.Armed(),
		Selected:      eng.Selected(),
		Live:          eng.Live(),
		Local:         eng.Local(),
		Authoritative: auth,
		Epoch:         epoch,
		HasPending:    eng.HasPending(),
	}, true
}

// GestureOwner returns the id holding the gesture lock.
func (s *Scene) GestureOwner() string { return s.arb.Owner() }

// DeleteButton returns where the selected object's delete affordance sits on
// screen.
func (s *Scene) DeleteButton() (gesture.Point, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eng, ok := s.engines[s.store.Selected()]
	if !ok {
		return gesture.Point{}, 0, false
	}
	return eng.DeleteScreenPos()
}

// ScreenPos projects the centre of id's object into the viewport.
func (s *Scene) ScreenPos(id string) (gesture.Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eng, ok := s.engines[id]
	if !ok {
		return gesture.Point{}, false
	}
	x, y, ok := geom.ProjectToScreen(eng.Instance().Center(), s.cam, s.vp)
	return gesture.Point{X: x, Y: y}, ok
}

// Render draws the scene into a w x h image with the software rasterizer.
func (s *Scene) Render(w, h int) *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderLocked(w, h, s.clear)
}

// RenderOverlay draws the scene on a transparent background, ready to be
// composited over a camera frame.
func (s *Scene) RenderOverlay(w, h int) *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderLocked(w, h, color.RGBA{})
}

func (s *Scene) renderLocked(w, h int, bg color.RGBA) *image.RGBA {
	r := newRaster(w, h, s.cam, s.lights, bg)
	r.grid(5)
	sel := s.store.Selected()
	var affordance *drawable
	for _, id := range s.sortedIDsLocked() {
		inst := s.engines[id].Instance()
		d := drawable{
			local:    inst.Asset.Bounds(),
			world:    inst.Content.WorldMatrix(),
			color:    color.RGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff},
			selected: id == sel,
		}
		if t, ok := inst.Asset.(scenegraph.Tinted); ok {
			d.color = t.Color()
		}
		if d.selected {
			d.delCenter, d.delRadius = inst.DeleteAnchor()
			affordance = &d
		}
		r.box(d)
	}
	if affordance != nil {
		r.affordance(affordance.delCenter, affordance.delRadius)
	}
	return r.img
}

// Close tears down every engine and stops observing the store.
func (s *Scene) Close() {
	s.do(func() {
		if s.unsub != nil {
			s.unsub()
			s.unsub = nil
		}
		at := s.now()
		for _, id := range s.sortedIDsLocked() {
			s.dropLocked(id, at)
		}
	})
}
