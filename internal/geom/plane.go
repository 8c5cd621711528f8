/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Ray is a half-line starting at Origin with unit direction Dir.
type Ray struct {
	Origin mgl64.Vec3
	Dir    mgl64.Vec3
}

// At returns Origin + Dir*t.
func (r Ray) At(t float64) mgl64.Vec3 { return r.Origin.Add(r.Dir.Mul(t)) }

// Plane is the set of points p with Normal·p + Constant = 0.
type Plane struct {
	Normal   mgl64.Vec3
	Constant float64
}

// PlaneThrough returns the plane with the given normal containing point.
func PlaneThrough(normal, point mgl64.Vec3) Plane {
	n := safeNormalize(normal, mgl64.Vec3{0, 0, 1})
	return Plane{Normal: n, Constant: -n.Dot(point)}
}

// Distance returns the signed distance of p from the plane.
func (pl Plane) Distance(p mgl64.Vec3) float64 { return pl.Normal.Dot(p) + pl.Constant }

// IntersectPlane returns the point where the ray meets pl. ok is false if the
// ray is parallel to the plane or the plane lies behind the origin.
func (r Ray) IntersectPlane(pl Plane) (mgl64.Vec3, bool) {
	denom := pl.Normal.Dot(r.Dir)
	if math.Abs(denom) < 1e-12 {
		if math.Abs(pl.Distance(r.Origin)) < 1e-12 {
			return r.Origin, true
		}
		return mgl64.Vec3{}, false
	}
	t := -(r.Origin.Dot(pl.Normal) + pl.Constant) / denom
	if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return mgl64.Vec3{}, false
	}
	return r.At(t), true
}

// IntersectSphere returns the distance along the ray to the first hit with
// the sphere, or ok=false on a miss.
func (r Ray) IntersectSphere(center mgl64.Vec3, radius float64) (float64, bool) {
	oc := r.Origin.Sub(center)
	b := oc.Dot(r.Dir)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// ProjectPointerToPlane casts a ray from the camera through the client-space
// pointer position and intersects it with pl. The camera and viewport are read
// on every call. ok=false means there is no intersection this frame.
func ProjectPointerToPlane(x, y float64, pl Plane, cam Camera, vp Viewport) (mgl64.Vec3, bool) {
	if vp.Empty() {
		return mgl64.Vec3{}, false
	}
	return PointerRay(x, y, cam, vp).IntersectPlane(pl)
}

// PointerRay returns the camera ray under a client-space pointer position.
func PointerRay(x, y float64, cam Camera, vp Viewport) Ray {
	nx, ny := vp.ToNDC(x, y)
	return cam.Ray(nx, ny, vp.Aspect())
}
