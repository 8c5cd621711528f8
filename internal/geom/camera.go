/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package geom holds the pure geometry used by the gesture engine: pointer to
// world projection, bounding boxes, pivots and YXZ Euler rotations.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Viewport is the on-screen rectangle the scene is drawn into, in pixels.
type Viewport struct {
	Left, Top     float64
	Width, Height float64
}

// Aspect returns width/height, or 1 for a degenerate viewport.
func (v Viewport) Aspect() float64 {
	if v.Width <= 0 || v.Height <= 0 {
		return 1
	}
	return v.Width / v.Height
}

// Empty reports whether the viewport has zero area.
func (v Viewport) Empty() bool { return v.Width <= 0 || v.Height <= 0 }

// ToNDC converts a client-space pointer position to normalized device
// coordinates (x right, y up, both in [-1, 1] inside the viewport).
func (v Viewport) ToNDC(x, y float64) (float64, float64) {
	if v.Empty() {
		return 0, 0
	}
	nx := (x-v.Left)/v.Width*2 - 1
	ny := -((y-v.Top)/v.Height*2 - 1)
	return nx, ny
}

// FromNDC is the inverse of ToNDC.
func (v Viewport) FromNDC(nx, ny float64) (float64, float64) {
	x := (nx+1)/2*v.Width + v.Left
	y := (1-ny)/2*v.Height + v.Top
	return x, y
}

// Camera is a perspective camera looking from Position at Target.
type Camera struct {
	Position mgl64.Vec3
	Target   mgl64.Vec3
	Up       mgl64.Vec3
	FovY     float64 // degrees
	Near     float64
	Far      float64
}

// DefaultCamera matches the room view: slightly above the floor, looking at
// the origin with a wide field of view.
func DefaultCamera() Camera {
	return Camera{
		Position: mgl64.Vec3{0, 3, 6},
		Target:   mgl64.Vec3{0, 0, 0},
		Up:       mgl64.Vec3{0, 1, 0},
		FovY:     75,
		Near:     0.1,
		Far:      1000,
	}
}

// Direction is the unit vector the camera looks along.
func (c Camera) Direction() mgl64.Vec3 {
	return safeNormalize(c.Target.Sub(c.Position), mgl64.Vec3{0, 0, -1})
}

// Right is the camera's unit right vector in world space.
func (c Camera) Right() mgl64.Vec3 {
	return safeNormalize(c.Direction().Cross(c.up()), mgl64.Vec3{1, 0, 0})
}

func (c Camera) up() mgl64.Vec3 {
	if c.Up.Len() == 0 {
		return mgl64.Vec3{0, 1, 0}
	}
	return c.Up
}

// View returns the world to camera matrix.
func (c Camera) View() mgl64.Mat4 { return mgl64.LookAtV(c.Position, c.Target, c.up()) }

// Projection returns the perspective matrix for the given aspect ratio.
func (c Camera) Projection(aspect float64) mgl64.Mat4 {
	near, far := c.Near, c.Far
	if near <= 0 {
		near = 0.1
	}
	if far <= near {
		far = near * 10000
	}
	fov := c.FovY
	if fov <= 0 || fov >= 180 {
		fov = 75
	}
	return mgl64.Perspective(mgl64.DegToRad(fov), aspect, near, far)
}

// ViewProjection returns Projection*View.
func (c Camera) ViewProjection(aspect float64) mgl64.Mat4 {
	return c.Projection(aspect).Mul4(c.View())
}

// Ray builds the world-space ray through the given NDC coordinates.
func (c Camera) Ray(ndcX, ndcY, aspect float64) Ray {
	inv := c.ViewProjection(aspect).Inv()
	p := inv.Mul4x1(mgl64.Vec4{ndcX, ndcY, 0.5, 1})
	if p.W() == 0 {
		return Ray{Origin: c.Position, Dir: c.Direction()}
	}
	world := p.Vec3().Mul(1 / p.W())
	return Ray{Origin: c.Position, Dir: safeNormalize(world.Sub(c.Position), c.Direction())}
}

// ProjectToScreen maps a world point to client-space pixels. ok is false when
// the point lies behind the camera.
func ProjectToScreen(world mgl64.Vec3, cam Camera, vp Viewport) (x, y float64, ok bool) {
	clip := cam.ViewProjection(vp.Aspect()).Mul4x1(world.Vec4(1))
	if clip.W() <= 1e-9 {
		return 0, 0, false
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	x, y = vp.FromNDC(ndc.X(), ndc.Y())
	return x, y, true
}

func safeNormalize(v, fallback mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < 1e-12 || math.IsNaN(l) {
		return fallback
	}
	return v.Mul(1 / l)
}
