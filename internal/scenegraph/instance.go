/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package scenegraph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"roomoverlay/internal/geom"
	applog "roomoverlay/internal/log"
)

// Instance is one placed object in the scene: a root carrying translation, a
// pivot at the bounding-box centre carrying rotation and scale, and the
// content offset by -centre so it renders around the pivot.
type Instance struct {
	ID       string
	AssetRef string
	Root     *Node
	Pivot    *Node
	Content  *Node
	Asset    Asset
	Shape    geom.Pivot
}

func newInstance(id, ref string, a Asset) *Instance {
	shape := geom.ComputePivot(a.Bounds())
	root := NewNode(nil)
	pivot := NewNode(root)
	pivot.Position = shape.Center
	content := NewNode(pivot)
	content.Position = shape.Center.Mul(-1)
	return &Instance{ID: id, AssetRef: ref, Root: root, Pivot: pivot, Content: content, Asset: a, Shape: shape}
}

// Transform is the part of an instance that the layout persists.
type Transform struct {
	Position mgl64.Vec3
	Rotation geom.Euler
	Scale    mgl64.Vec3
}

// IdentityTransform has zero translation and rotation and unit scale.
func IdentityTransform() Transform { return Transform{Scale: mgl64.Vec3{1, 1, 1}} }

// SetTransform writes position to the root and rotation/scale to the pivot.
func (in *Instance) SetTransform(t Transform) {
	in.Root.Position = t.Position
	in.Pivot.Rotation = t.Rotation
	in.Pivot.Scale = t.Scale
}

// Transform reads the live transform back.
func (in *Instance) Transform() Transform {
	return Transform{Position: in.Root.Position, Rotation: in.Pivot.Rotation, Scale: in.Pivot.Scale}
}

// Center returns the bounding-box centre in world space. Rotation and scale
// happen about this point, so only the root position moves it.
func (in *Instance) Center() mgl64.Vec3 { return in.Pivot.WorldPosition() }

// HitSphere returns the padded grab sphere in world space.
func (in *Instance) HitSphere() (mgl64.Vec3, float64) {
	return in.Center(), in.Shape.HitRadius * in.Pivot.Scale.X()
}

// DeleteAnchor returns the world-space centre and radius of the delete
// affordance, which hangs off the pivot and follows its rotation and scale.
func (in *Instance) DeleteAnchor() (mgl64.Vec3, float64) {
	off, r := geom.DeleteAnchor(in.Shape)
	return in.Pivot.LocalToWorld(off), r * in.Pivot.Scale.X()
}

// WorldBounds returns the content's box after the full transform.
func (in *Instance) WorldBounds() geom.Bounds {
	return in.Asset.Bounds().Transform(in.Content.WorldMatrix())
}

// Arena owns the instances, indexed by object id. Each instance holds its
// own clone of the loaded template; no two instances share an asset.
type Arena struct {
	loader Loader
	log    *slog.Logger

	mu        sync.Mutex
	instances map[string]*Instance
}

// NewArena creates an arena that loads templates through loader.
func NewArena(loader Loader) *Arena {
	return &Arena{loader: loader, log: applog.WithComponent("scenegraph"), instances: map[string]*Instance{}}
}

// Attach loads ref, clones it and creates the instance for id. Attaching an
// id that already exists with the same ref returns the existing instance; a
// different ref replaces it.
func (a *Arena) Attach(ctx context.Context, id, ref string) (*Instance, error) {
	a.mu.Lock()
	if in, ok := a.instances[id]; ok {
		if in.AssetRef == ref {
			a.mu.Unlock()
			return in, nil
		}
		delete(a.instances, id)
		in.Asset.Dispose()
	}
	a.mu.Unlock()

	tpl, err := a.loader.Load(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("attach %s: %w", id, err)
	}
	in := newInstance(id, ref, tpl.Clone())

	a.mu.Lock()
	defer a.mu.Unlock()
	if prev, ok := a.instances[id]; ok {
		prev.Asset.Dispose()
	}
	a.instances[id] = in
	a.log.Debug("instance attached", slog.String("id", id), slog.String("ref", ref),
		slog.Float64("hit_radius", in.Shape.HitRadius))
	return in, nil
}

// Detach disposes the instance's asset and forgets it.
func (a *Arena) Detach(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	in, ok := a.instances[id]
	if !ok {
		return false
	}
	delete(a.instances, id)
	in.Asset.Dispose()
	a.log.Debug("instance detached", slog.String("id", id))
	return true
}

// Get returns the instance for id.
func (a *Arena) Get(id string) (*Instance, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	in, ok := a.instances[id]
	return in, ok
}

// IDs returns the attached ids in sorted order.
func (a *Arena) IDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.instances))
	for id := range a.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of attached instances.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.instances)
}
