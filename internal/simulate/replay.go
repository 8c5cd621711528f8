/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package simulate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"roomoverlay/internal/geom"
	"roomoverlay/internal/gesture"
	"roomoverlay/internal/layout"
	applog "roomoverlay/internal/log"
	"roomoverlay/internal/scene"
)

// Epoch is the simulated wall time at which every replay starts.
var Epoch = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

// Report summarizes a replay.
type Report struct {
	Name     string
	Steps    int
	Elapsed  time.Duration
	Drawn    int
	Added    []string
	Selected string
	Objects  []layout.PlacedObject
}

// ErrUnknownTarget is returned when a step names an object that is not in
// the scene.
var ErrUnknownTarget = errors.New("unknown target")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Replay runs script against store. opts.Clock is replaced by the simulated
// clock; the store keeps the final layout.
func Replay(ctx context.Context, store *layout.Store, opts scene.Options, script Script) (Report, error) {
	if err := script.Validate(); err != nil {
		return Report{}, err
	}
	l := applog.WithOperation(applog.WithComponent("simulate"), "replay").With(slog.String("script", script.Name))
	clk := &clock{now: Epoch}
	opts.Clock = clk.Now
	if len(script.Viewport) == 2 {
		opts.Viewport = geom.Viewport{Width: script.Viewport[0], Height: script.Viewport[1]}
	}
	sc := scene.New(store, opts)
	defer sc.Close()

	r := &runner{sc: sc, clk: clk, dt: script.step(), downs: map[int]gesture.Point{}, rep: Report{Name: script.Name}}
	for i, st := range script.Steps {
		if err := ctx.Err(); err != nil {
			return r.rep, err
		}
		if err := r.run(st); err != nil {
			l.Warn("step failed", slog.Int("step", i+1), slog.Any("err", err))
			return r.rep, fmt.Errorf("step %d: %w", i+1, err)
		}
		r.rep.Steps++
	}
	sc.GlobalRelease()
	r.tick(r.dt)
	r.rep.Selected = sc.Selected()
	r.rep.Objects = store.Snapshot().Objects
	l.Info("replayed", slog.Int("steps", r.rep.Steps), slog.Int("objects", len(r.rep.Objects)),
		slog.Duration("elapsed", r.rep.Elapsed))
	return r.rep, nil
}

type runner struct {
	sc    *scene.Scene
	clk   *clock
	dt    time.Duration
	last  string
	downs map[int]gesture.Point
	rep   Report
}

func (r *runner) tick(d time.Duration) {
	r.clk.advance(d)
	r.rep.Elapsed += d
	if r.sc.Frame(d) {
		r.rep.Drawn++
	}
}

func (r *runner) run(st Step) error {
	switch {
	case st.Add != "":
		r.last = r.sc.Add(st.Add)
		r.rep.Added = append(r.rep.Added, r.last)
	case st.Select != nil:
		id := r.resolve(*st.Select)
		if id != "" && !r.known(id) {
			return fmt.Errorf("select %q: %w", id, ErrUnknownTarget)
		}
		r.sc.Select(id)
	case st.Down != nil:
		p, err := r.point(*st.Down)
		if err != nil {
			return err
		}
		r.downs[st.Down.Pointer] = p
		r.sc.PointerDown(st.Down.Pointer, p)
	case st.Move != nil:
		p, err := r.point(*st.Move)
		if err != nil {
			return err
		}
		r.sc.PointerMove(st.Move.Pointer, p)
	case st.Up != nil:
		p, err := r.point(*st.Up)
		if err != nil {
			return err
		}
		r.sc.PointerUp(st.Up.Pointer, p)
	case st.Cancel != nil:
		r.sc.PointerCancel(*st.Cancel)
	case st.Wait > 0:
		for left := st.Wait; left > 0; left -= r.dt {
			r.tick(min(left, r.dt))
		}
		return nil
	case st.RotateMode != nil:
		r.sc.SetRotateMode(*st.RotateMode)
	case st.TapDelete:
		p, _, ok := r.sc.DeleteButton()
		if !ok {
			return errors.New("tap_delete: nothing selected")
		}
		r.sc.PointerDown(0, p)
		r.tick(r.dt)
		r.sc.PointerUp(0, p)
	case st.FocusLost:
		r.sc.FocusLost()
	}
	r.tick(r.dt)
	return nil
}

func (r *runner) resolve(target string) string {
	if target == LastAdded {
		return r.last
	}
	return target
}

func (r *runner) known(id string) bool {
	for _, e := range r.sc.EngineIDs() {
		if e == id {
			return true
		}
	}
	return false
}

func (r *runner) point(p PointerStep) (gesture.Point, error) {
	if p.Target == "" {
		return gesture.Point{X: *p.X, Y: *p.Y}, nil
	}
	if p.Target == DownPoint {
		d, ok := r.downs[p.Pointer]
		if !ok {
			return gesture.Point{}, fmt.Errorf("pointer %d never went down", p.Pointer)
		}
		return gesture.Point{X: d.X + p.DX, Y: d.Y + p.DY}, nil
	}
	id := r.resolve(p.Target)
	c, ok := r.sc.ScreenPos(id)
	if !ok {
		return gesture.Point{}, fmt.Errorf("%q: %w", p.Target, ErrUnknownTarget)
	}
	return gesture.Point{X: c.X + p.DX, Y: c.Y + p.DY}, nil
}
