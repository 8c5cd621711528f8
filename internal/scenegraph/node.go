/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package scenegraph keeps the per-instance transform hierarchy
// (root -> pivot -> content) and the arena of cloned asset handles.
package scenegraph

import (
	"github.com/go-gl/mathgl/mgl64"

	"roomoverlay/internal/geom"
)

// Node is a transform in the hierarchy. Position, Rotation and Scale are
// relative to Parent.
type Node struct {
	Position mgl64.Vec3
	Rotation geom.Euler
	Scale    mgl64.Vec3
	Parent   *Node
}

// NewNode returns an identity node attached to parent (which may be nil).
func NewNode(parent *Node) *Node {
	return &Node{Scale: mgl64.Vec3{1, 1, 1}, Parent: parent}
}

// LocalMatrix returns T*R*S.
func (n *Node) LocalMatrix() mgl64.Mat4 {
	t := mgl64.Translate3D(n.Position.X(), n.Position.Y(), n.Position.Z())
	s := mgl64.Scale3D(n.Scale.X(), n.Scale.Y(), n.Scale.Z())
	return t.Mul4(n.Rotation.Mat4()).Mul4(s)
}

// WorldMatrix composes the local matrices up to the root.
func (n *Node) WorldMatrix() mgl64.Mat4 {
	m := n.LocalMatrix()
	for p := n.Parent; p != nil; p = p.Parent {
		m = p.LocalMatrix().Mul4(m)
	}
	return m
}

// LocalToWorld maps a point in this node's space to world space.
func (n *Node) LocalToWorld(p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.TransformCoordinate(p, n.WorldMatrix())
}

// WorldPosition returns the node origin in world space.
func (n *Node) WorldPosition() mgl64.Vec3 { return n.LocalToWorld(mgl64.Vec3{}) }
