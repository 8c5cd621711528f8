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
	"context"
	"sync"
	"time"
)

// Scheduler is the render-on-demand flag. Anything that changes what is on
// screen calls Invalidate; the frame loop takes the flag and draws at most
// once per frame.
type Scheduler struct {
	mu     sync.Mutex
	dirty  bool
	frames uint64
}

// Invalidate requests one more frame.
func (s *Scheduler) Invalidate() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Dirty reports whether a frame is pending.
func (s *Scheduler) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Frames returns how many frames have been drawn.
func (s *Scheduler) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// take clears the flag and counts a frame if one was due.
func (s *Scheduler) take(force bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty && !force {
		return false
	}
	s.dirty = false
	s.frames++
	return true
}

// Run calls frame on every tick until ctx is done. dt is the wall time since
// the previous tick.
func Run(ctx context.Context, interval time.Duration, frame func(dt time.Duration)) error {
	if interval <= 0 {
		interval = time.Second / 60
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			frame(now.Sub(last))
			last = now
		}
	}
}
