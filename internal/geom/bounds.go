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

// Bounds is an axis-aligned bounding box. The zero value is not empty; use
// EmptyBounds to start accumulating points.
type Bounds struct {
	Min, Max mgl64.Vec3
}

// EmptyBounds returns a box that contains nothing.
func EmptyBounds() Bounds {
	inf := math.Inf(1)
	return Bounds{Min: mgl64.Vec3{inf, inf, inf}, Max: mgl64.Vec3{-inf, -inf, -inf}}
}

// BoxAround returns the box with the given center and full extents.
func BoxAround(center, size mgl64.Vec3) Bounds {
	h := size.Mul(0.5)
	return Bounds{Min: center.Sub(h), Max: center.Add(h)}
}

// Empty reports whether the box contains no point.
func (b Bounds) Empty() bool {
	return b.Max.X() < b.Min.X() || b.Max.Y() < b.Min.Y() || b.Max.Z() < b.Min.Z()
}

// ExpandByPoint grows the box to include p.
func (b Bounds) ExpandByPoint(p mgl64.Vec3) Bounds {
	for i := 0; i < 3; i++ {
		b.Min[i] = math.Min(b.Min[i], p[i])
		b.Max[i] = math.Max(b.Max[i], p[i])
	}
	return b
}

// Union returns the smallest box containing both.
func (b Bounds) Union(o Bounds) Bounds {
	if o.Empty() {
		return b
	}
	return b.ExpandByPoint(o.Min).ExpandByPoint(o.Max)
}

// Center returns the midpoint of the box.
func (b Bounds) Center() mgl64.Vec3 { return b.Min.Add(b.Max).Mul(0.5) }

// Size returns the box extents.
func (b Bounds) Size() mgl64.Vec3 { return b.Max.Sub(b.Min) }

// Corners returns the eight corners of the box.
func (b Bounds) Corners() [8]mgl64.Vec3 {
	var out [8]mgl64.Vec3
	for i := 0; i < 8; i++ {
		x, y, z := b.Min.X(), b.Min.Y(), b.Min.Z()
		if i&1 != 0 {
			x = b.Max.X()
		}
		if i&2 != 0 {
			y = b.Max.Y()
		}
		if i&4 != 0 {
			z = b.Max.Z()
		}
		out[i] = mgl64.Vec3{x, y, z}
	}
	return out
}

// Transform returns the axis-aligned box around b after applying m.
func (b Bounds) Transform(m mgl64.Mat4) Bounds {
	if b.Empty() {
		return b
	}
	out := EmptyBounds()
	for _, c := range b.Corners() {
		out = out.ExpandByPoint(mgl64.TransformCoordinate(c, m))
	}
	return out
}

// Pivot describes where an asset's rotation and scale are applied and how
// large its grab region is.
type Pivot struct {
	Center    mgl64.Vec3
	Size      mgl64.Vec3
	HitRadius float64
}

// Hit-region tuning. The padding keeps thin models easy to grab.
const (
	hitPadding      = 1.6
	minHitRadius    = 0.1
	fallbackHitSize = 0.6
)

// ComputePivot derives the pivot from an asset's bounding box. Empty or
// non-finite boxes fall back to a unit box at the origin.
func ComputePivot(b Bounds) Pivot {
	if b.Empty() || !finite(b.Min) || !finite(b.Max) {
		return Pivot{Size: mgl64.Vec3{1, 1, 1}, HitRadius: fallbackHitSize}
	}
	size := b.Size()
	r := size.Len() / 2 * hitPadding
	if r < minHitRadius {
		r = minHitRadius
	}
	return Pivot{Center: b.Center(), Size: size, HitRadius: r}
}

// DeleteAnchor returns the delete affordance position relative to the pivot
// (upper right corner of the box, pushed slightly outwards) and its radius in
// the pivot's unscaled units.
func DeleteAnchor(p Pivot) (offset mgl64.Vec3, radius float64) {
	sx, sy := p.Size.X(), p.Size.Y()
	ox := sx/2 + mgl64.Clamp(sx*0.15, 0.03, 0.12)
	oy := sy/2 + mgl64.Clamp(sy*0.1, 0.03, 0.15)
	radius = mgl64.Clamp(math.Max(sx, sy)*0.12, 0.05, 0.14)
	return mgl64.Vec3{ox, oy, 0}, radius
}

func finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
