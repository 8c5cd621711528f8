/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"roomoverlay/internal/layout"
	"roomoverlay/internal/storage"
	"roomoverlay/internal/telemetry"
)

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	defer os.Remove(path)
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "Room Overlay Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") {
		t.Fatalf("panic content missing: %s", s)
	}
}

func TestWriteReportCreatesFileInDataDir(t *testing.T) {
	dir := t.TempDir()
	st := layout.NewStore()
	st.Add("cot")

	path, err := writeReport(&Target{DataDir: dir, Layout: st}, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(dir, ReportsDirName) {
		t.Fatalf("expected crash report under data dir, got %s", path)
	}
	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), "Layout: 1 objects") {
		t.Fatalf("layout summary missing: %s", b)
	}
}

func TestAutosaveWritesLayout(t *testing.T) {
	kv := storage.NewMemoryKV()
	st := layout.NewStore()
	st.Add("cot")
	st.Add("chair")

	n, err := autosave(&Target{KV: kv, Layout: st})
	if err != nil || n != 2 {
		t.Fatalf("autosave = %d, %v", n, err)
	}
	if got := layout.LoadObjects(context.Background(), kv); len(got) != 2 {
		t.Fatalf("reloaded %d objects", len(got))
	}
	if n, err := autosave(&Target{Layout: st}); n != -1 || err != nil {
		t.Fatalf("autosave without kv = %d, %v", n, err)
	}
}

func TestWriteReportUploadsWhenOptedIn(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got <- string(b)
	}))
	defer srv.Close()
	telemetry.NewDefault(telemetry.Config{OptIn: true, CrashURL: srv.URL})
	t.Cleanup(func() { telemetry.NewDefault(telemetry.Config{}).Close() })

	path, err := writeReport(&Target{DataDir: t.TempDir()}, "uploaded", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	select {
	case body := <-got:
		if !strings.Contains(body, "Panic: uploaded") {
			t.Fatalf("uploaded body = %q", body)
		}
	default:
		t.Fatalf("report %s was not uploaded before writeReport returned", path)
	}
}
