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
	"log/slog"
	"sort"
	"sync"

	applog "roomoverlay/internal/log"
)

// Arbiter is the scene-wide gesture lock. Only the owner may manipulate its
// object; everybody else stays idle until the owner releases.
type Arbiter struct {
	mu         sync.Mutex
	owner      string
	pinching   map[string]struct{}
	rotateMode bool
	log        *slog.Logger
}

// NewArbiter returns an arbiter with no owner.
func NewArbiter() *Arbiter {
	return &Arbiter{pinching: map[string]struct{}{}, log: applog.WithComponent("gesture")}
}

// TryAcquire takes the lock for id. It succeeds when nobody holds it or id
// already does.
func (a *Arbiter) TryAcquire(id string) bool {
	if id == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.owner != "" && a.owner != id {
		a.log.Debug("gesture lock busy", slog.String("id", id), slog.String("owner", a.owner))
		return false
	}
	a.owner = id
	return true
}

// Release gives the lock up if id holds it.
func (a *Arbiter) Release(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.owner == id {
		a.owner = ""
	}
}

// Owner returns the current owner or "".
func (a *Arbiter) Owner() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owner
}

// Owns reports whether id holds the lock.
func (a *Arbiter) Owns(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return id != "" && a.owner == id
}

// SetPinching marks id as mid-pinch or clears it.
func (a *Arbiter) SetPinching(id string, on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if on {
		a.pinching[id] = struct{}{}
	} else {
		delete(a.pinching, id)
	}
}

// PinchActive reports whether any object is pinching.
func (a *Arbiter) PinchActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pinching) > 0
}

// Pinching lists the objects currently pinching.
func (a *Arbiter) Pinching() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.pinching))
	for id := range a.pinching {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetRotateMode toggles the scene-wide rotate mode.
func (a *Arbiter) SetRotateMode(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rotateMode = on
}

// RotateMode returns the requested mode, ignoring pinch suspension.
func (a *Arbiter) RotateMode() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rotateMode
}

// RotateModeActive reports whether rotate mode is on and not suspended by
// a pinch.
func (a *Arbiter) RotateModeActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rotateMode && len(a.pinching) == 0
}

// Forget drops every trace of id, used when its object is removed.
func (a *Arbiter) Forget(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.owner == id {
		a.owner = ""
	}
	delete(a.pinching, id)
}
