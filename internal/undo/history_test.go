/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func TestUndoRedoBasic(t *testing.T) {
	h := NewHistory(Config{MaxBytes: 1024 * 1024, MaxPerKey: 10, MinInterval: 10 * time.Millisecond})
	t0 := time.Now()
	h.Record(Snapshot{Key: "room", Blob: []byte("a"), TS: t0})
	h.Record(Snapshot{Key: "room", Blob: []byte("b"), TS: t0.Add(20 * time.Millisecond)})
	if _, keys, depth := h.Stats(); keys != 1 || depth != 2 {
		t.Fatalf("expected 1 key and 2 snapshots, got keys=%d depth=%d", keys, depth)
	}

	s, ok := h.Undo("room", []byte("c"), t0.Add(time.Second))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("undo expected 'b', got ok=%v blob=%q", ok, s.Blob)
	}
	s, ok = h.Undo("room", []byte("b"), t0.Add(time.Second))
	if !ok || string(s.Blob) != "a" {
		t.Fatalf("second undo expected 'a', got ok=%v blob=%q", ok, s.Blob)
	}
	if _, ok := h.Undo("room", []byte("a"), t0); ok {
		t.Fatalf("undo past the beginning must fail")
	}

	s, ok = h.Redo("room", []byte("a"), t0.Add(2*time.Second))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("redo expected 'b', got ok=%v blob=%q", ok, s.Blob)
	}
	s, ok = h.Redo("room", []byte("b"), t0.Add(2*time.Second))
	if !ok || string(s.Blob) != "c" {
		t.Fatalf("redo expected 'c', got ok=%v blob=%q", ok, s.Blob)
	}
	if h.CanRedo("room") {
		t.Fatalf("redo stack should be empty")
	}
}

func TestRecordForksTimeline(t *testing.T) {
	h := NewHistory(Config{})
	t0 := time.Now()
	h.Record(Snapshot{Key: "k", Blob: []byte("1"), TS: t0})
	h.Undo("k", []byte("2"), t0.Add(time.Second))
	if !h.CanRedo("k") {
		t.Fatalf("expected redo after undo")
	}
	h.Record(Snapshot{Key: "k", Blob: []byte("1"), TS: t0.Add(2 * time.Second)})
	if h.CanRedo("k") {
		t.Fatalf("new record must drop redo")
	}
}

func TestCoalesceKeepsPreBurstState(t *testing.T) {
	h := NewHistory(Config{MaxBytes: 1024, MaxPerKey: 10, MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	h.Record(Snapshot{Key: "k", Blob: []byte("before"), TS: t0})
	h.Record(Snapshot{Key: "k", Blob: []byte("mid1"), TS: t0.Add(10 * time.Millisecond)})
	h.Record(Snapshot{Key: "k", Blob: []byte("mid2"), TS: t0.Add(50 * time.Millisecond)})
	if _, _, depth := h.Stats(); depth != 1 {
		t.Fatalf("expected coalesced to 1 snapshot, got %d", depth)
	}
	s, ok := h.Undo("k", []byte("now"), t0.Add(time.Second))
	if !ok || string(s.Blob) != "before" {
		t.Fatalf("expected pre-burst snapshot, got ok=%v blob=%q", ok, s.Blob)
	}
}

func TestCaps(t *testing.T) {
	h := NewHistory(Config{MaxBytes: 1 << 20, MaxPerKey: 2})
	t0 := time.Now()
	for i := 0; i < 10; i++ {
		h.Record(Snapshot{Key: "k", Blob: []byte("xxxxx"), TS: t0.Add(time.Duration(i) * time.Second)})
	}
	if _, _, depth := h.Stats(); depth != 2 {
		t.Fatalf("expected MaxPerKey cap to limit to 2, got %d", depth)
	}
}

func TestGlobalPruneAcrossKeys(t *testing.T) {
	h := NewHistory(Config{MaxBytes: 8})
	t0 := time.Now()
	h.Record(Snapshot{Key: "a", Blob: []byte("xxxx"), TS: t0})
	h.Record(Snapshot{Key: "b", Blob: []byte("yyyy"), TS: t0.Add(time.Second)})
	h.Record(Snapshot{Key: "b", Blob: []byte("zzzz"), TS: t0.Add(2 * time.Second)})
	if h.CanUndo("a") {
		t.Fatalf("expected oldest key to be pruned")
	}
	if !h.CanUndo("b") {
		t.Fatalf("expected key b to keep snapshots")
	}
}

func TestClearAndStats(t *testing.T) {
	h := NewHistory(Config{MaxBytes: 1024})
	h.Record(Snapshot{Key: "k", Blob: []byte("abcdef"), TS: time.Now()})
	if tb, keys, depth := h.Stats(); tb == 0 || keys != 1 || depth != 1 {
		t.Fatalf("unexpected stats before clear: tb=%d keys=%d depth=%d", tb, keys, depth)
	}
	h.Clear("k")
	if tb, keys, depth := h.Stats(); tb != 0 || keys != 0 || depth != 0 {
		t.Fatalf("expected cleared stats to be zero, got tb=%d keys=%d depth=%d", tb, keys, depth)
	}
}
