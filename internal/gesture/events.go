/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package gesture

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"roomoverlay/internal/layout"
)

// State of one object's gesture machine.
type State int

const (
	Idle State = iota
	Dragging
	Rotating
	Pinching
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Rotating:
		return "rotating"
	case Pinching:
		return "pinching"
	default:
		return "unknown"
	}
}

// Point is a pointer position in client pixels.
type Point struct{ X, Y float64 }

func (p Point) dist(o Point) float64 { return mgl64.Vec2{p.X - o.X, p.Y - o.Y}.Len() }

// Event is the input of Engine.Dispatch.
type Event interface{ when() time.Time }

// PointerDown is a pointer touching the object.
type PointerDown struct {
	ID  int
	Pos Point
	At  time.Time
}

// PointerMove reports a new position. When Coalesced carries samples the
// last one is used instead of Pos.
type PointerMove struct {
	ID        int
	Pos       Point
	Coalesced []Point
	At        time.Time
}

// PointerUp is a pointer lifting.
type PointerUp struct {
	ID  int
	Pos Point
	At  time.Time
}

// PointerCancel is a pointer taken away by the platform.
type PointerCancel struct {
	ID int
	At time.Time
}

// GlobalRelease is the document-level fallback fired on any release.
type GlobalRelease struct{ At time.Time }

// FocusLost tells the engine that it no longer owns the gesture lock.
type FocusLost struct{ At time.Time }

// Tick advances time-based behaviour by DT.
type Tick struct {
	DT time.Duration
	At time.Time
}

func (e PointerDown) when() time.Time   { return e.At }
func (e PointerMove) when() time.Time   { return e.At }
func (e PointerUp) when() time.Time     { return e.At }
func (e PointerCancel) when() time.Time { return e.At }
func (e GlobalRelease) when() time.Time { return e.At }
func (e FocusLost) when() time.Time     { return e.At }
func (e Tick) when() time.Time          { return e.At }

// latest returns the freshest sample of a move.
func (e PointerMove) latest() Point {
	if n := len(e.Coalesced); n > 0 {
		return e.Coalesced[n-1]
	}
	return e.Pos
}

// Effects are what the caller has to do after a dispatch.
type Effects struct {
	// Commit is the patch to push into the layout store.
	Commit *layout.Patch
	// Select asks for this object to become the selection.
	Select bool
	// Remove asks for this object to be deleted.
	Remove bool
	// FocusCenter is the object's centre, offered as a new orbit target.
	FocusCenter *mgl64.Vec3
	// Invalidate requests a redraw.
	Invalidate bool
	// Animating means more ticks are needed to settle.
	Animating bool
	// Capture and Uncapture list pointer ids to route to this engine or stop
	// routing.
	Capture   []int
	Uncapture []int
	// Consumed is set when the engine handled the event.
	Consumed bool
}

func (f *Effects) merge(o Effects) {
	if o.Commit != nil {
		f.Commit = o.Commit
	}
	if o.FocusCenter != nil {
		f.FocusCenter = o.FocusCenter
	}
	f.Select = f.Select || o.Select
	f.Remove = f.Remove || o.Remove
	f.Invalidate = f.Invalidate || o.Invalidate
	f.Animating = f.Animating || o.Animating
	f.Consumed = f.Consumed || o.Consumed
	f.Capture = append(f.Capture, o.Capture...)
	f.Uncapture = append(f.Uncapture, o.Uncapture...)
}
