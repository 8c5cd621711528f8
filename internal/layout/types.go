/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package layout is the authoritative list of placed objects. Every mutation
// goes through Store; observers are notified with immutable snapshots.
package layout

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"roomoverlay/internal/geom"
	"roomoverlay/internal/scenegraph"
)

// Tolerance below which two stored values are considered equal.
const Tolerance = 1e-4

// Vec3 is a JSON-friendly 3-vector ([x, y, z]).
type Vec3 [3]float64

// ApproxEqual compares component-wise within tol.
func (v Vec3) ApproxEqual(o Vec3, tol float64) bool {
	for i := range v {
		if math.Abs(v[i]-o[i]) > tol {
			return false
		}
	}
	return true
}

// Mgl converts to a math vector.
func (v Vec3) Mgl() mgl64.Vec3 { return mgl64.Vec3(v) }

// FromMgl converts from a math vector.
func FromMgl(v mgl64.Vec3) Vec3 { return Vec3(v) }

// PlacedObject is one entry of the layout. Rotation holds YXZ Euler angles
// applied about the asset's pivot.
type PlacedObject struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Position Vec3   `json:"position"`
	Rotation Vec3   `json:"rotation"`
	Scale    Vec3   `json:"scale"`
}

// Transform converts the stored values to a scene transform.
func (o PlacedObject) Transform() scenegraph.Transform {
	return scenegraph.Transform{
		Position: o.Position.Mgl(),
		Rotation: geom.EulerFromVec(o.Rotation),
		Scale:    o.Scale.Mgl(),
	}
}

// SameTransform reports whether both objects sit at the same place within
// Tolerance.
func (o PlacedObject) SameTransform(p PlacedObject) bool {
	return o.Position.ApproxEqual(p.Position, Tolerance) &&
		o.Rotation.ApproxEqual(p.Rotation, Tolerance) &&
		o.Scale.ApproxEqual(p.Scale, Tolerance)
}

// Patch is a partial transform update; nil fields are left untouched.
type Patch struct {
	Position *Vec3
	Rotation *Vec3
	Scale    *Vec3
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool { return p.Position == nil && p.Rotation == nil && p.Scale == nil }

// PatchFrom builds a patch carrying the requested fields of t.
func PatchFrom(t scenegraph.Transform, position, rotation, scale bool) Patch {
	var p Patch
	if position {
		v := FromMgl(t.Position)
		p.Position = &v
	}
	if rotation {
		v := Vec3(t.Rotation.Vec())
		p.Rotation = &v
	}
	if scale {
		v := FromMgl(t.Scale)
		p.Scale = &v
	}
	return p
}

// apply merges p into o and reports whether anything moved beyond Tolerance.
func (p Patch) apply(o PlacedObject) (PlacedObject, bool) {
	changed := false
	if p.Position != nil && !p.Position.ApproxEqual(o.Position, Tolerance) {
		o.Position, changed = *p.Position, true
	}
	if p.Rotation != nil && !p.Rotation.ApproxEqual(o.Rotation, Tolerance) {
		o.Rotation, changed = *p.Rotation, true
	}
	if p.Scale != nil && !p.Scale.ApproxEqual(o.Scale, Tolerance) {
		o.Scale, changed = *p.Scale, true
	}
	return o, changed
}

// Snapshot is an immutable view of the layout. A new pointer is published
// for every real change; a no-op update keeps the old one.
type Snapshot struct {
	Objects []PlacedObject
	Epoch   uint64
}

// Find returns the entry with id.
func (s *Snapshot) Find(id string) (PlacedObject, bool) {
	if s == nil {
		return PlacedObject{}, false
	}
	for _, o := range s.Objects {
		if o.ID == id {
			return o, true
		}
	}
	return PlacedObject{}, false
}

// IDs returns the object ids in layout order.
func (s *Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.Objects))
	for _, o := range s.Objects {
		ids = append(ids, o.ID)
	}
	return ids
}

// ChangeKind tells observers what happened.
type ChangeKind int

const (
	// Updated is an in-place transform change.
	Updated ChangeKind = iota
	// Structural covers add, remove and replace; the epoch was bumped.
	Structural
	// SelectionChanged only moves the selection.
	SelectionChanged
)

func (k ChangeKind) String() string {
	switch k {
	case Updated:
		return "updated"
	case Structural:
		return "structural"
	case SelectionChanged:
		return "selection"
	default:
		return "unknown"
	}
}

// Change is delivered to subscribers after every mutation.
type Change struct {
	Kind     ChangeKind
	Snapshot *Snapshot
	Selected string
	// ID names the affected object for Updated changes.
	ID string
}
