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
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"roomoverlay/internal/layout"
	"roomoverlay/internal/storage"
)

// TestRecover_PanickingCommand ensures Recover handles a panic, writes a report,
// autosaves the layout, and does not terminate the test process due to injected exitFn.
func TestRecover_PanickingCommand(t *testing.T) {
	// Capture stderr temporarily to avoid noisy test logs
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r) // drain pipe
	}()

	// Override exitFn to avoid os.Exit during test and to assert it was called
	called := 0
	oldExit := exitFn
	exitFn = func(code int) { called = code }
	defer func() { exitFn = oldExit }()

	dir := t.TempDir()
	kv := storage.NewMemoryKV()
	st := layout.NewStore()
	st.Add("trolley")

	func() {
		defer Recover(&Target{DataDir: dir, KV: kv, Layout: st})
		panic("boom")
	}()

	var found string
	rdir := filepath.Join(dir, ReportsDirName)
	files, _ := os.ReadDir(rdir)
	for _, f := range files {
		if strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log") {
			found = filepath.Join(rdir, f.Name())
			break
		}
	}
	if found == "" {
		t.Fatalf("expected crash report file under %s", rdir)
	}
	b, err := os.ReadFile(found)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Contains(b, []byte("Panic: boom")) {
		t.Fatalf("report does not contain panic: %s", string(b))
	}
	if got := layout.LoadObjects(context.Background(), kv); len(got) != 1 || got[0].URL != "trolley" {
		t.Fatalf("layout not autosaved: %+v", got)
	}

	// Ensure exit was attempted with code 2 (but intercepted)
	if called != 2 {
		t.Fatalf("expected exit code 2, got %d", called)
	}
}
