/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package scene

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"roomoverlay/internal/geom"
)

// Lights is the fixed room lighting: an ambient term plus one directional
// light shining from Position toward the origin.
type Lights struct {
	Ambient     float64
	Position    mgl64.Vec3
	Directional float64
}

// DefaultLights matches the room preset.
func DefaultLights() Lights {
	return Lights{Ambient: 0.7, Position: mgl64.Vec3{10, 10, 10}, Directional: 0.5}
}

func (l Lights) shade(c color.RGBA, normal mgl64.Vec3) color.RGBA {
	dir := l.Position
	if dir.Len() > 0 {
		dir = dir.Normalize()
	}
	k := l.Ambient + l.Directional*math.Max(0, normal.Dot(dir))
	ch := func(v uint8) uint8 { return uint8(math.Min(255, float64(v)*k)) }
	return color.RGBA{R: ch(c.R), G: ch(c.G), B: ch(c.B), A: c.A}
}

// drawable is one box to rasterize.
type drawable struct {
	local    geom.Bounds
	world    mgl64.Mat4
	color    color.RGBA
	selected bool
	// delete affordance, only for the selected object
	delCenter mgl64.Vec3
	delRadius float64
}

var (
	outlineColor = color.RGBA{R: 0x21, G: 0x96, B: 0xf3, A: 0xff}
	deleteColor  = color.RGBA{R: 0xe5, G: 0x39, B: 0x35, A: 0xff}
	gridColor    = color.RGBA{R: 0xbd, G: 0xbd, B: 0xbd, A: 0xff}
	white        = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// boxFaces lists the corner indices of each quad, wound outward, using the
// corner order of geom.Bounds.Corners (bit 0 = x, bit 1 = y, bit 2 = z).
var boxFaces = [6][4]int{
	{0, 2, 3, 1}, // -z
	{4, 5, 7, 6}, // +z
	{0, 4, 6, 2}, // -x
	{1, 3, 7, 5}, // +x
	{0, 1, 5, 4}, // -y
	{2, 6, 7, 3}, // +y
}

var boxEdges = [12][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7},
	{0, 2}, {1, 3}, {4, 6}, {5, 7},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

type raster struct {
	img    *image.RGBA
	zbuf   []float64
	cam    geom.Camera
	vp     geom.Viewport
	lights Lights
}

func newRaster(w, h int, cam geom.Camera, lights Lights, clear color.RGBA) *raster {
	img := image.NewRGBA(image.Rect(0, 0, max(w, 0), max(h, 0)))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: clear}, image.Point{}, draw.Src)
	z := make([]float64, max(w, 0)*max(h, 0))
	for i := range z {
		z[i] = math.Inf(1)
	}
	return &raster{img: img, zbuf: z, cam: cam, vp: geom.Viewport{Width: float64(w), Height: float64(h)}, lights: lights}
}

// project maps a world point to pixel coordinates and NDC depth.
func (r *raster) project(p mgl64.Vec3) (mgl64.Vec3, bool) {
	clip := r.cam.ViewProjection(r.vp.Aspect()).Mul4x1(p.Vec4(1))
	if clip.W() <= 1e-6 {
		return mgl64.Vec3{}, false
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	x, y := r.vp.FromNDC(ndc.X(), ndc.Y())
	return mgl64.Vec3{x, y, ndc.Z()}, true
}

func (r *raster) grid(half int) {
	for i := -half; i <= half; i++ {
		f := float64(i)
		r.line3(mgl64.Vec3{f, 0, float64(-half)}, mgl64.Vec3{f, 0, float64(half)}, gridColor)
		r.line3(mgl64.Vec3{float64(-half), 0, f}, mgl64.Vec3{float64(half), 0, f}, gridColor)
	}
}

func (r *raster) line3(a, b mgl64.Vec3, c color.RGBA) {
	pa, okA := r.project(a)
	pb, okB := r.project(b)
	if !okA || !okB {
		return
	}
	drawLine(r.img, int(pa.X()), int(pa.Y()), int(pb.X()), int(pb.Y()), c)
}

func (r *raster) box(d drawable) {
	corners := d.local.Corners()
	var world [8]mgl64.Vec3
	for i, c := range corners {
		world[i] = mgl64.TransformCoordinate(c, d.world)
	}
	for _, f := range boxFaces {
		n := world[f[1]].Sub(world[f[0]]).Cross(world[f[2]].Sub(world[f[0]]))
		if n.Len() == 0 {
			continue
		}
		col := r.lights.shade(d.color, n.Normalize())
		r.triangle(world[f[0]], world[f[1]], world[f[2]], col)
		r.triangle(world[f[0]], world[f[2]], world[f[3]], col)
	}
	if d.selected {
		for _, e := range boxEdges {
			r.line3(world[e[0]], world[e[1]], outlineColor)
		}
	}
}

func (r *raster) triangle(a, b, c mgl64.Vec3, col color.RGBA) {
	pa, okA := r.project(a)
	pb, okB := r.project(b)
	pc, okC := r.project(c)
	if !okA || !okB || !okC {
		return
	}
	fillTriangleWithDepth(r.img, r.zbuf, pa, pb, pc, col)
}

// affordance draws the billboarded delete button on top of everything.
func (r *raster) affordance(center mgl64.Vec3, radius float64) {
	pc, ok := r.project(center)
	if !ok {
		return
	}
	pe, ok := r.project(center.Add(r.cam.Right().Mul(radius)))
	if !ok {
		return
	}
	pr := mgl64.Vec2{pe.X() - pc.X(), pe.Y() - pc.Y()}.Len()
	fillCircle(r.img, pc.X(), pc.Y(), pr, deleteColor)
	arm := pr * 0.45
	cx, cy := int(pc.X()), int(pc.Y())
	drawLine(r.img, cx-int(arm), cy-int(arm), cx+int(arm), cy+int(arm), white)
	drawLine(r.img, cx-int(arm), cy+int(arm), cx+int(arm), cy-int(arm), white)
}

// fillTriangleWithDepth rasterizes a screen-space triangle with per-pixel
// depth testing (smaller z is closer).
func fillTriangleWithDepth(img *image.RGBA, zbuf []float64, a, b, c mgl64.Vec3, col color.RGBA) {
	bounds := img.Bounds()
	minX := int(math.Max(0, math.Floor(math.Min(a.X(), math.Min(b.X(), c.X())))))
	maxX := int(math.Min(float64(bounds.Max.X-1), math.Ceil(math.Max(a.X(), math.Max(b.X(), c.X())))))
	minY := int(math.Max(0, math.Floor(math.Min(a.Y(), math.Min(b.Y(), c.Y())))))
	maxY := int(math.Min(float64(bounds.Max.Y-1), math.Ceil(math.Max(a.Y(), math.Max(b.Y(), c.Y())))))

	area := edge(a, b, c.X(), c.Y())
	if math.Abs(area) < 1e-12 {
		return
	}
	width := bounds.Max.X
	for y := minY; y <= maxY; y++ {
		py := float64(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float64(x) + 0.5
			w0 := edge(b, c, px, py) / area
			w1 := edge(c, a, px, py) / area
			w2 := edge(a, b, px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*a.Z() + w1*b.Z() + w2*c.Z()
			idx := y*width + x
			if idx >= 0 && idx < len(zbuf) && z < zbuf[idx] {
				zbuf[idx] = z
				img.SetRGBA(x, y, col)
			}
		}
	}
}

func edge(a, b mgl64.Vec3, x, y float64) float64 {
	return (b.X()-a.X())*(y-a.Y()) - (b.Y()-a.Y())*(x-a.X())
}

func fillCircle(img *image.RGBA, cx, cy, r float64, col color.RGBA) {
	bounds := img.Bounds()
	for y := int(cy - r); y <= int(cy+r); y++ {
		for x := int(cx - r); x <= int(cx+r); x++ {
			if !(image.Point{X: x, Y: y}).In(bounds) {
				continue
			}
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(x, y, col)
			}
		}
	}
}

// drawLine draws a line on an image using Bresenham's algorithm
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, col color.RGBA) {
	bounds := img.Bounds()
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx, sy := 1, 1
	if x1 >= x2 {
		sx = -1
	}
	if y1 >= y2 {
		sy = -1
	}
	// Lines far outside the image are skipped rather than walked.
	if dx > 1<<16 || dy > 1<<16 {
		return
	}
	err := dx - dy
	for {
		if x1 >= 0 && x1 < bounds.Max.X && y1 >= 0 && y1 < bounds.Max.Y {
			img.SetRGBA(x1, y1, col)
		}
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
