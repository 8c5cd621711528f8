/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSQLiteKVRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	kv, err := OpenSQLite(ctx, dir)
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	if v, err := kv.SchemaVersion(ctx); err != nil || v != schemaVersion {
		t.Fatalf("schema version = %d (err %v), want %d", v, err, schemaVersion)
	}
	if _, ok, err := kv.Get(ctx, KeyLayout); err != nil || ok {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, KeyLayout, `[]`); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := kv.Set(ctx, KeyLayout, `[{"url":"/models/cot.glb"}]`); err != nil {
		t.Fatalf("Set (overwrite) error: %v", err)
	}
	if err := kv.Set(ctx, KeyGallery, `[]`); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	kv, err = OpenSQLite(ctx, dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer kv.Close()
	v, ok, err := kv.Get(ctx, KeyLayout)
	if err != nil || !ok || v != `[{"url":"/models/cot.glb"}]` {
		t.Fatalf("Get after reopen = %q ok=%v err=%v", v, ok, err)
	}
	keys, err := kv.Keys(ctx)
	if err != nil || len(keys) != 2 || keys[0] != KeyGallery || keys[1] != KeyLayout {
		t.Fatalf("Keys = %v err=%v", keys, err)
	}
	if err := kv.Delete(ctx, KeyGallery); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, KeyGallery); ok {
		t.Fatalf("key still present after delete")
	}
	if err := kv.SetMeta(ctx, "last_export", "/tmp/a.pdf"); err != nil {
		t.Fatalf("SetMeta error: %v", err)
	}
	if m, _ := kv.Meta(ctx, "last_export"); m != "/tmp/a.pdf" {
		t.Fatalf("Meta = %q", m)
	}
}

func TestOpenOrRecoverReplacesDamagedFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(StorePath(dir), []byte("this is not a database, just some text padding it out"), 0o644); err != nil {
		t.Fatalf("seed junk: %v", err)
	}
	kv, recovered, err := OpenOrRecover(ctx, dir)
	if err != nil {
		t.Fatalf("OpenOrRecover error: %v", err)
	}
	defer kv.Close()
	if !recovered {
		t.Fatalf("expected recovery for damaged file")
	}
	entries, err := os.ReadDir(filepath.Join(dir, BackupsDirName))
	if err != nil || len(entries) == 0 {
		t.Fatalf("expected a backup of the damaged file, err=%v", err)
	}
	if err := kv.Set(ctx, "k", "[]"); err != nil {
		t.Fatalf("recovered store not writable: %v", err)
	}
}

func TestOpenSQLiteRequiresDir(t *testing.T) {
	if _, err := OpenSQLite(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty data dir")
	}
}

func TestMemoryKV(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	_ = kv.Set(ctx, "b", "1")
	_ = kv.Set(ctx, "a", "2")
	keys, _ := kv.Keys(ctx)
	if len(keys) != 2 || keys[0] != "a" {
		t.Fatalf("Keys = %v", keys)
	}
	_ = kv.Delete(ctx, "a")
	if _, ok, _ := kv.Get(ctx, "a"); ok {
		t.Fatalf("a should be deleted")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "out.png")
	if err := WriteFileAtomic(p, []byte("first")); err != nil {
		t.Fatalf("WriteFileAtomic error: %v", err)
	}
	if err := WriteFileAtomic(p, []byte("second")); err != nil {
		t.Fatalf("WriteFileAtomic overwrite error: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil || string(b) != "second" {
		t.Fatalf("content = %q err=%v", b, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(p))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}
