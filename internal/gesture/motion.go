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
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"roomoverlay/internal/geom"
)

type dragState struct {
	active     bool
	plane      geom.Plane
	offset     mgl64.Vec3
	prevNormal mgl64.Vec3
	hasPrev    bool
}

// activateDrag fixes the drag plane through the object's position, facing
// the camera (or reusing the last drag's normal), and the offset between
// the object and the point under the pointer at press time.
func (e *Engine) activateDrag(down Point) {
	cam, vp := e.view.Camera(), e.view.Viewport()
	normal := cam.Direction()
	if e.drag.hasPrev {
		normal = e.drag.prevNormal
	}
	root := e.inst.Root.Position
	e.drag.plane = geom.PlaneThrough(normal, root)
	e.drag.offset = mgl64.Vec3{}
	if hit, ok := geom.ProjectPointerToPlane(down.X, down.Y, e.drag.plane, cam, vp); ok {
		e.drag.offset = root.Sub(hit)
	}
	e.drag.active = true
	e.armed = false
	e.touched.pos = true
	e.log.Debug("drag activated", slog.Any("normal", e.drag.plane.Normal))
}

func (e *Engine) dragTo(p Point) Effects {
	hit, ok := geom.ProjectPointerToPlane(p.X, p.Y, e.drag.plane, e.view.Camera(), e.view.Viewport())
	if !ok {
		return Effects{Consumed: true}
	}
	e.inst.Root.Position = hit.Add(e.drag.offset)
	return Effects{Consumed: true, Invalidate: true}
}

const settleEpsilon = 1e-5

type rotateState struct {
	yaw, pitch, roll       float64
	targetYaw, targetPitch float64
}

func (r rotateState) settled() bool {
	return math.Abs(r.targetYaw-r.yaw) <= settleEpsilon && math.Abs(r.targetPitch-r.pitch) <= settleEpsilon
}

func (e *Engine) startRotate() {
	cur := e.inst.Pivot.Rotation
	e.rot = rotateState{yaw: cur.Y, pitch: cur.X, roll: cur.Z, targetYaw: cur.Y, targetPitch: cur.X}
	e.state = Rotating
	e.touched.rot = true
}

// rotateBy accumulates pointer deltas into the target angles: horizontal
// movement turns about Y, moving up pitches forward.
func (e *Engine) rotateBy(dx, dy float64) Effects {
	e.rot.targetYaw += dx * e.cfg.RotatePerPixel
	e.rot.targetPitch = mgl64.Clamp(e.rot.targetPitch-dy*e.cfg.RotatePerPixel, -e.cfg.MaxPitch, e.cfg.MaxPitch)
	return Effects{Consumed: true, Invalidate: true, Animating: true}
}

// tick moves the applied angles toward the targets with exponential
// smoothing.
func (e *Engine) tick(dt time.Duration) Effects {
	if e.state != Rotating {
		return Effects{}
	}
	if e.rot.settled() {
		return Effects{}
	}
	s := 1 - math.Exp(-e.cfg.SmoothingRate*math.Max(0.001, dt.Seconds()))
	e.rot.yaw += (e.rot.targetYaw - e.rot.yaw) * s
	e.rot.pitch += (e.rot.targetPitch - e.rot.pitch) * s
	e.inst.Pivot.Rotation = geom.Euler{X: e.rot.pitch, Y: e.rot.yaw, Z: e.rot.roll}
	return Effects{Invalidate: true, Animating: !e.rot.settled()}
}

type pinchState struct {
	ids        [2]int
	startDist  float64
	startScale float64
	lastAngle  float64
}

// pair returns the two tracked pointers in id order.
func (e *Engine) pair() (a, b Point, ok bool) {
	if len(e.pointers) < 2 {
		return Point{}, Point{}, false
	}
	ta, okA := e.pointers[e.pinch.ids[0]]
	tb, okB := e.pointers[e.pinch.ids[1]]
	if !okA || !okB {
		return Point{}, Point{}, false
	}
	return ta.last, tb.last, true
}

func pinchGeometry(a, b Point) (dist, angle float64) {
	return a.dist(b), math.Atan2(b.Y-a.Y, b.X-a.X)
}

func (e *Engine) startPinch(ev PointerDown) Effects {
	var first int
	for id := range e.pointers {
		first = id
	}
	e.pointers[ev.ID] = &tracked{start: ev.Pos, last: ev.Pos, at: ev.At}
	ids := [2]int{first, ev.ID}
	if ids[1] < ids[0] {
		ids[0], ids[1] = ids[1], ids[0]
	}
	e.pinch.ids = ids
	a, b, _ := e.pair()
	dist, angle := pinchGeometry(a, b)
	e.pinch.startDist = math.Max(dist, 1)
	e.pinch.startScale = e.inst.Pivot.Scale.X()
	e.pinch.lastAngle = angle

	if e.state == Rotating {
		// Rotation smoothing stops where it is; the pinch drives the node now.
		e.rot.targetYaw, e.rot.targetPitch = e.rot.yaw, e.rot.pitch
	}
	e.state, e.armed = Pinching, false
	e.touched.scale, e.touched.rot = true, true
	e.arb.SetPinching(e.id, true)
	e.log.Debug("pinch started", slog.Float64("dist", dist), slog.Float64("scale", e.pinch.startScale))
	return Effects{Consumed: true, Capture: []int{ev.ID}, Invalidate: true}
}

// PinchScale maps the distance ratio to a scale: a dead zone around 1
// suppresses jitter, the ratio is raised to the sensitivity exponent and the
// result is clamped.
func (c Config) PinchScale(startScale, ratio float64) float64 {
	f := 1.0
	if math.Abs(ratio-1) >= c.PinchDeadZone {
		f = math.Pow(ratio, c.PinchSensitivity)
	}
	return c.clampScale(startScale * f)
}

// PinchRatio is the finger distance ratio that makes PinchScale change the
// scale by f, ignoring the dead zone and the clamp.
func (c Config) PinchRatio(f float64) float64 {
	if c.PinchSensitivity <= 0 || f <= 0 {
		return f
	}
	return math.Pow(f, 1/c.PinchSensitivity)
}

func (e *Engine) pinchMove() Effects {
	a, b, ok := e.pair()
	if !ok {
		return Effects{Consumed: true}
	}
	dist, angle := pinchGeometry(a, b)
	s := e.cfg.PinchScale(e.pinch.startScale, dist/e.pinch.startDist)
	e.inst.Pivot.Scale = mgl64.Vec3{s, s, s}
	d := geom.NormalizeAngle(angle - e.pinch.lastAngle)
	e.pinch.lastAngle = angle
	if d != 0 {
		e.inst.Pivot.Rotation = e.inst.Pivot.Rotation.RotateOnLocalY(d * e.cfg.PinchRotateMultiplier)
	}
	return Effects{Consumed: true, Invalidate: true}
}
