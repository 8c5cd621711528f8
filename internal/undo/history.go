/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo keeps bounded undo/redo stacks of serialized states, one pair
// of stacks per key (for example one per stored layout).
package undo

import (
	"sync"
	"time"
)

// Snapshot is a serialized state recorded before a change was applied.
// Blob content is opaque to the history; size is estimated as len(Blob).
type Snapshot struct {
	Key  string
	Blob []byte
	TS   time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxPerKey limits the undo depth per key (0 means unlimited).
	MaxPerKey int
	// MinInterval coalesces bursts: a snapshot recorded within the interval of
	// the previous one for the same key is dropped, so a single undo jumps
	// back to the state before the whole burst.
	MinInterval time.Duration
}

// History provides undo/redo stacks per key. It is safe for concurrent use.
type History struct {
	cfg Config
	mu  sync.Mutex

	undo map[string][]Snapshot
	redo map[string][]Snapshot

	totalBytes int
}

// NewHistory returns a history with defaults applied to zero fields.
func NewHistory(cfg Config) *History {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 4 * 1024 * 1024
	}
	if cfg.MaxPerKey < 0 {
		cfg.MaxPerKey = 0
	}
	return &History{cfg: cfg, undo: map[string][]Snapshot{}, redo: map[string][]Snapshot{}}
}

// Record stores the state as it was before a change. Redo for the key is
// invalidated because the timeline has forked.
func (h *History) Record(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropRedoLocked(s.Key)
	stack := h.undo[s.Key]
	if n := len(stack); n > 0 && h.cfg.MinInterval > 0 && s.TS.Sub(stack[n-1].TS) < h.cfg.MinInterval {
		// Keep the older pre-burst state but extend the burst window.
		stack[n-1].TS = s.TS
		return
	}
	h.undo[s.Key] = append(stack, s)
	h.totalBytes += len(s.Blob)
	h.enforceCapsLocked(s.Key)
}

// Undo pops the latest recorded state for key and pushes current onto the
// redo stack. ok is false if there is nothing to undo.
func (h *History) Undo(key string, current []byte, now time.Time) (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	stack := h.undo[key]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	h.undo[key] = stack[:len(stack)-1]
	h.totalBytes -= len(s.Blob)
	h.redo[key] = append(h.redo[key], Snapshot{Key: key, Blob: current, TS: now})
	h.totalBytes += len(current)
	h.enforceCapsLocked(key)
	return s, true
}

// Redo reverses the last Undo for key, pushing current back onto the undo
// stack.
func (h *History) Redo(key string, current []byte, now time.Time) (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.redo[key]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	h.redo[key] = r[:len(r)-1]
	h.totalBytes -= len(s.Blob)
	h.undo[key] = append(h.undo[key], Snapshot{Key: key, Blob: current, TS: now})
	h.totalBytes += len(current)
	h.enforceCapsLocked(key)
	return s, true
}

// CanUndo reports whether key has recorded states.
func (h *History) CanUndo(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo[key]) > 0
}

// CanRedo reports whether key has undone states.
func (h *History) CanRedo(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo[key]) > 0
}

// Clear forgets both stacks for key.
func (h *History) Clear(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.undo[key] {
		h.totalBytes -= len(s.Blob)
	}
	h.dropRedoLocked(key)
	delete(h.undo, key)
	if h.totalBytes < 0 {
		h.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (h *History) Stats() (totalBytes int, keys int, undoDepth int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys = len(h.undo)
	for _, v := range h.undo {
		undoDepth += len(v)
	}
	return h.totalBytes, keys, undoDepth
}

func (h *History) dropRedoLocked(key string) {
	for _, s := range h.redo[key] {
		h.totalBytes -= len(s.Blob)
	}
	delete(h.redo, key)
}

func (h *History) enforceCapsLocked(key string) {
	if h.cfg.MaxPerKey > 0 {
		stack := h.undo[key]
		if extra := len(stack) - h.cfg.MaxPerKey; extra > 0 {
			for i := 0; i < extra; i++ {
				h.totalBytes -= len(stack[i].Blob)
			}
			h.undo[key] = append([]Snapshot{}, stack[extra:]...)
		}
	}
	// Global memory cap: prune the oldest undo entry across all keys.
	for h.totalBytes > h.cfg.MaxBytes {
		oldestKey := ""
		found := false
		var oldestTS time.Time
		for k, stack := range h.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldestKey, oldestTS, found = k, stack[0].TS, true
			}
		}
		if !found {
			break
		}
		stack := h.undo[oldestKey]
		h.totalBytes -= len(stack[0].Blob)
		h.undo[oldestKey] = stack[1:]
		if len(h.undo[oldestKey]) == 0 {
			delete(h.undo, oldestKey)
		}
	}
}
