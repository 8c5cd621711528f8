//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image"
	"math"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"roomoverlay/internal/capture"
	"roomoverlay/internal/geom"
	"roomoverlay/internal/gesture"
	"roomoverlay/internal/scene"
)

// mousePointer is the pointer id used for the mouse; synthetic pinch
// fingers use mousePointer+1 and +2.
const mousePointer = 1

// pinchSpread is the distance in pixels between the two synthetic fingers
// a wheel step starts from. Both must land on the object.
const pinchSpread = 40

// wheelStep is the scale factor of one wheel notch (Fyne reports 10 units
// per notch).
const wheelStep = 1.1

// pointerInput is the part of the scene the mouse drives.
type pointerInput interface {
	PointerDown(pointer int, p gesture.Point)
	PointerMove(pointer int, p gesture.Point, coalesced ...gesture.Point)
	PointerUp(pointer int, p gesture.Point)
	PointerCancel(pointer int)
	GlobalRelease()
}

// RoomCanvas shows a scene and feeds mouse input into it. The wheel scales
// the selected object through a synthetic two-finger pinch.
type RoomCanvas struct {
	widget.BaseWidget

	sc    *scene.Scene
	input pointerInput

	mu         sync.Mutex
	background image.Image
	down       bool
	last       fyne.Position
	size       fyne.Size
}

// NewRoomCanvas wraps sc.
func NewRoomCanvas(sc *scene.Scene) *RoomCanvas {
	rc := &RoomCanvas{sc: sc, input: sc}
	rc.ExtendBaseWidget(rc)
	return rc
}

// SetBackground sets the frame drawn under the overlay; nil shows the plain
// room.
func (rc *RoomCanvas) SetBackground(img image.Image) {
	rc.mu.Lock()
	rc.background = img
	rc.mu.Unlock()
	rc.sc.Invalidate()
}

// Background returns the current frame under the overlay.
func (rc *RoomCanvas) Background() image.Image {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.background
}

// CreateRenderer implements fyne.Widget.
func (rc *RoomCanvas) CreateRenderer() fyne.WidgetRenderer {
	raster := canvas.NewRaster(rc.draw)
	raster.ScaleMode = canvas.ImageScaleFastest
	return &roomCanvasRenderer{rc: rc, raster: raster, objects: []fyne.CanvasObject{raster}}
}

// PreferredSize sets a decent default size for the widget.
func (rc *RoomCanvas) PreferredSize() fyne.Size { return fyne.NewSize(960, 540) }

func (rc *RoomCanvas) draw(w, h int) image.Image {
	bg := rc.Background()
	if bg == nil {
		return rc.sc.Render(w, h)
	}
	img, err := capture.Composite(rc.sc.RenderOverlay(w, h), bg)
	if err != nil {
		return rc.sc.Render(w, h)
	}
	return img
}

func point(p fyne.Position) gesture.Point {
	return gesture.Point{X: float64(p.X), Y: float64(p.Y)}
}

// MouseDown implements desktop.Mouseable.
func (rc *RoomCanvas) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	rc.mu.Lock()
	rc.down, rc.last = true, e.Position
	rc.mu.Unlock()
	rc.input.PointerDown(mousePointer, point(e.Position))
}

// MouseUp implements desktop.Mouseable.
func (rc *RoomCanvas) MouseUp(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	rc.mu.Lock()
	rc.down = false
	rc.mu.Unlock()
	rc.input.PointerUp(mousePointer, point(e.Position))
}

// MouseIn implements desktop.Hoverable.
func (rc *RoomCanvas) MouseIn(*desktop.MouseEvent) {}

// MouseMoved implements desktop.Hoverable.
func (rc *RoomCanvas) MouseMoved(e *desktop.MouseEvent) { rc.moveTo(e.Position) }

// moveTo forwards the mouse position while the primary button is held. A
// drag can arrive as both MouseMoved and Dragged; a position already sent
// is dropped.
func (rc *RoomCanvas) moveTo(p fyne.Position) {
	rc.mu.Lock()
	if !rc.down || p == rc.last {
		rc.mu.Unlock()
		return
	}
	rc.last = p
	rc.mu.Unlock()
	rc.input.PointerMove(mousePointer, point(p))
}

// MouseOut implements desktop.Hoverable. Leaving the view while pressed
// ends the gesture like a release outside the window.
func (rc *RoomCanvas) MouseOut() {
	rc.mu.Lock()
	down := rc.down
	rc.down = false
	rc.mu.Unlock()
	if down {
		rc.input.PointerCancel(mousePointer)
	}
}

// Dragged implements fyne.Draggable.
func (rc *RoomCanvas) Dragged(e *fyne.DragEvent) { rc.moveTo(e.Position) }

// DragEnd implements fyne.Draggable.
func (rc *RoomCanvas) DragEnd() { rc.input.GlobalRelease() }

// Scrolled implements fyne.Scrollable: one wheel notch scales the selected
// object by wheelStep, a notch back undoes it.
func (rc *RoomCanvas) Scrolled(e *fyne.ScrollEvent) {
	id := rc.sc.Selected()
	if id == "" {
		return
	}
	c, ok := rc.sc.ScreenPos(id)
	if !ok {
		return
	}
	if e.Scrolled.DY == 0 {
		return
	}
	factor := math.Pow(wheelStep, float64(e.Scrolled.DY)/10)
	ratio := rc.sc.GestureConfig().PinchRatio(factor)
	a := gesture.Point{X: c.X - pinchSpread/2, Y: c.Y}
	b := gesture.Point{X: c.X + pinchSpread/2, Y: c.Y}
	b2 := gesture.Point{X: a.X + pinchSpread*ratio, Y: c.Y}
	rc.input.PointerDown(mousePointer+1, a)
	rc.input.PointerDown(mousePointer+2, b)
	rc.input.PointerMove(mousePointer+2, b2)
	rc.input.PointerUp(mousePointer+2, b2)
	rc.input.PointerUp(mousePointer+1, a)
}

type roomCanvasRenderer struct {
	rc      *RoomCanvas
	raster  *canvas.Raster
	objects []fyne.CanvasObject
}

func (r *roomCanvasRenderer) Destroy()                     {}
func (r *roomCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *roomCanvasRenderer) MinSize() fyne.Size           { return fyne.NewSize(320, 180) }
func (r *roomCanvasRenderer) Refresh()                     { canvas.Refresh(r.raster) }

func (r *roomCanvasRenderer) Layout(size fyne.Size) {
	r.raster.Resize(size)
	r.raster.Move(fyne.NewPos(0, 0))
	r.rc.mu.Lock()
	changed := r.rc.size != size
	r.rc.size = size
	r.rc.mu.Unlock()
	if changed {
		r.rc.sc.SetViewport(geom.Viewport{Width: float64(size.Width), Height: float64(size.Height)})
	}
}
