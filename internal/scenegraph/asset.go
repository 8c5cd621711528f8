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
	"fmt"
	"image/color"
	"path"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"roomoverlay/internal/geom"
)

// ErrAssetNotFound is returned by loaders for unknown references.
var ErrAssetNotFound = errors.New("asset not found")

// Asset is a loaded visual owned by exactly one instance once cloned.
type Asset interface {
	// Bounds returns the asset's box in its own coordinates.
	Bounds() geom.Bounds
	// Clone returns an independent copy safe to mutate and dispose.
	Clone() Asset
	// Dispose frees geometry, material and texture resources.
	Dispose()
}

// Tinted is implemented by assets that carry a display colour.
type Tinted interface {
	Color() color.RGBA
}

// Loader resolves an asset reference (URL or path) into a template asset.
type Loader interface {
	Load(ctx context.Context, ref string) (Asset, error)
}

// Box is a solid box asset used for previews and as a stand-in for models
// whose geometry is not available.
type Box struct {
	Min, Max mgl64.Vec3
	Tint     color.RGBA

	disposed bool
}

// NewBox returns a box of the given size standing on the floor (min y = 0)
// and centred on x/z.
func NewBox(size mgl64.Vec3, tint color.RGBA) *Box {
	return &Box{
		Min:  mgl64.Vec3{-size.X() / 2, 0, -size.Z() / 2},
		Max:  mgl64.Vec3{size.X() / 2, size.Y(), size.Z() / 2},
		Tint: tint,
	}
}

func (b *Box) Bounds() geom.Bounds { return geom.Bounds{Min: b.Min, Max: b.Max} }
func (b *Box) Color() color.RGBA   { return b.Tint }
func (b *Box) Disposed() bool      { return b.disposed }
func (b *Box) Dispose()            { b.disposed = true }
func (b *Box) Clone() Asset        { c := *b; c.disposed = false; return &c }
func (b *Box) String() string      { return fmt.Sprintf("box(%v..%v)", b.Min, b.Max) }

// StaticLoader serves templates from an in-memory table keyed by the
// reference's base name without extension ("/models/chair.glb" -> "chair").
type StaticLoader struct {
	mu        sync.RWMutex
	templates map[string]Asset
	// Fallback, when set, is cloned for unknown references.
	Fallback Asset
}

// NewStaticLoader returns a loader preloaded with the room furniture set.
func NewStaticLoader() *StaticLoader {
	l := &StaticLoader{templates: map[string]Asset{}}
	for name, shape := range furniture {
		l.templates[name] = NewBox(shape.size, shape.tint)
	}
	return l
}

// Register adds or replaces a template.
func (l *StaticLoader) Register(name string, a Asset) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[name] = a
}

// Load implements Loader.
func (l *StaticLoader) Load(ctx context.Context, ref string) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := TemplateKey(ref)
	l.mu.RLock()
	a, ok := l.templates[key]
	l.mu.RUnlock()
	if ok {
		return a, nil
	}
	if l.Fallback != nil {
		return l.Fallback, nil
	}
	return nil, fmt.Errorf("load %q: %w", ref, ErrAssetNotFound)
}

// TemplateKey normalizes an asset reference to its lookup key.
func TemplateKey(ref string) string {
	base := path.Base(strings.ReplaceAll(ref, "\\", "/"))
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return strings.ToLower(base)
}

type furnitureShape struct {
	size mgl64.Vec3
	tint color.RGBA
}

var furniture = map[string]furnitureShape{
	"cot":           {mgl64.Vec3{2.0, 0.9, 0.95}, color.RGBA{R: 0xb0, G: 0xc4, B: 0xde, A: 0xff}},
	"trolley":       {mgl64.Vec3{0.8, 1.0, 0.5}, color.RGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff}},
	"table":         {mgl64.Vec3{1.2, 0.75, 0.7}, color.RGBA{R: 0xa1, G: 0x88, B: 0x7f, A: 0xff}},
	"divider":       {mgl64.Vec3{1.8, 1.7, 0.05}, color.RGBA{R: 0x80, G: 0xcb, B: 0xc4, A: 0xff}},
	"chair":         {mgl64.Vec3{0.5, 0.9, 0.5}, color.RGBA{R: 0x8d, G: 0x6e, B: 0x63, A: 0xff}},
	"window-screen": {mgl64.Vec3{1.2, 1.5, 0.05}, color.RGBA{R: 0xe1, G: 0xf5, B: 0xfe, A: 0xff}},
}
