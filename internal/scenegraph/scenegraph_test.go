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
	"errors"
	"image/color"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomoverlay/internal/geom"
)

func TestPivotInvariance(t *testing.T) {
	arena := NewArena(NewStaticLoader())
	in, err := arena.Attach(context.Background(), "a", "/models/cot.glb")
	require.NoError(t, err)

	in.SetTransform(Transform{Position: mgl64.Vec3{1, 0, -2}, Scale: mgl64.Vec3{1, 1, 1}})
	center := in.Center()

	for _, tr := range []Transform{
		{Position: mgl64.Vec3{1, 0, -2}, Rotation: geom.Euler{X: 0.5, Y: 1.2}, Scale: mgl64.Vec3{1, 1, 1}},
		{Position: mgl64.Vec3{1, 0, -2}, Rotation: geom.Euler{Y: -2.1, Z: 0.3}, Scale: mgl64.Vec3{2.5, 2.5, 2.5}},
		{Position: mgl64.Vec3{1, 0, -2}, Scale: mgl64.Vec3{0.1, 0.1, 0.1}},
	} {
		in.SetTransform(tr)
		assert.InDelta(t, 0, in.Center().Sub(center).Len(), 1e-9)
		assert.InDelta(t, 0, in.WorldBounds().Center().Sub(center).Len(), 1e-9)
	}

	in.SetTransform(Transform{Position: mgl64.Vec3{3, 0, 0}, Scale: mgl64.Vec3{1, 1, 1}})
	assert.InDelta(t, 0, in.Center().Sub(center.Add(mgl64.Vec3{2, 0, 2})).Len(), 1e-9)
}

func TestAttachClonesPerInstance(t *testing.T) {
	loader := NewStaticLoader()
	arena := NewArena(loader)
	a, err := arena.Attach(context.Background(), "a", "chair")
	require.NoError(t, err)
	b, err := arena.Attach(context.Background(), "b", "/models/chair.glb")
	require.NoError(t, err)

	require.NotSame(t, a.Asset, b.Asset)
	assert.True(t, arena.Detach("a"))
	assert.True(t, a.Asset.(*Box).Disposed())
	assert.False(t, b.Asset.(*Box).Disposed())
	assert.False(t, arena.Detach("a"))
	assert.Equal(t, []string{"b"}, arena.IDs())

	tpl, _ := loader.Load(context.Background(), "chair")
	assert.False(t, tpl.(*Box).Disposed(), "template must never be disposed")
}

func TestAttachUnknownAsset(t *testing.T) {
	arena := NewArena(NewStaticLoader())
	_, err := arena.Attach(context.Background(), "x", "/models/spaceship.glb")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAssetNotFound))

	l := NewStaticLoader()
	l.Fallback = NewBox(mgl64.Vec3{1, 1, 1}, color.RGBA{A: 0xff})
	_, err = NewArena(l).Attach(context.Background(), "x", "/models/spaceship.glb")
	require.NoError(t, err)
}

func TestDeleteAnchorFollowsPivot(t *testing.T) {
	arena := NewArena(NewStaticLoader())
	in, err := arena.Attach(context.Background(), "a", "table")
	require.NoError(t, err)
	in.SetTransform(IdentityTransform())

	pos, r := in.DeleteAnchor()
	off, base := geom.DeleteAnchor(in.Shape)
	assert.InDelta(t, 0, pos.Sub(in.Shape.Center.Add(off)).Len(), 1e-12)
	assert.Equal(t, base, r)

	in.SetTransform(Transform{Scale: mgl64.Vec3{2, 2, 2}})
	_, r2 := in.DeleteAnchor()
	assert.InDelta(t, base*2, r2, 1e-12)
}

func TestTemplateKey(t *testing.T) {
	assert.Equal(t, "window-screen", TemplateKey("/models/Window-Screen.glb"))
	assert.Equal(t, "cot", TemplateKey(`C:\assets\cot.glb`))
	assert.Equal(t, "table", TemplateKey("table"))
}
