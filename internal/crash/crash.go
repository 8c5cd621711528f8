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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"roomoverlay/internal/layout"
	applog "roomoverlay/internal/log"
	"roomoverlay/internal/storage"
	"roomoverlay/internal/telemetry"
	"roomoverlay/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// ReportsDirName is the folder under the data dir that holds crash reports.
const ReportsDirName = "crash"

// uploadWait bounds how long a crash waits for the opt-in report upload.
const uploadWait = 2 * time.Second

// Target tells Recover where to put the report and what to autosave. Every
// field is optional.
type Target struct {
	DataDir string
	KV      storage.KV
	Layout  *layout.Store
}

// Recover captures a panic, logs an error with stacktrace,
// writes an error report file, and attempts a crash-safe autosave
// of the current layout (if a store and key-value store are set).
//
// Usage: defer crash.Recover(t)
func Recover(t *Target) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, _ := writeReport(t, r, stack)
		if n, err := autosave(t); err != nil {
			l.Error("autosave layout failed", slog.Any("err", err))
		} else if n >= 0 {
			l.Info("layout autosaved", slog.Int("objects", n))
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		// Exit with a non-zero code to indicate failure in CLI context.
		exitFn(2)
	}
}

// autosave writes the layout and returns the object count, or -1 when
// there is nothing to save to.
func autosave(t *Target) (n int, err error) {
	if t == nil || t.KV == nil || t.Layout == nil {
		return -1, nil
	}
	// The store may be the thing that panicked.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("autosave panicked: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	objs := t.Layout.Snapshot().Objects
	return len(objs), layout.SaveObjects(ctx, t.KV, objs)
}

func reportDir(t *Target) string {
	if t != nil && t.DataDir != "" {
		dir := filepath.Join(t.DataDir, ReportsDirName)
		if err := os.MkdirAll(dir, 0o755); err == nil {
			return dir
		}
	}
	return os.TempDir()
}

func writeReport(t *Target, panicVal any, stack []byte) (string, error) {
	dir := reportDir(t)
	stamp := time.Now().Format("20060102-150405")
	fname := fmt.Sprintf("crash-%s.log", stamp)
	path := filepath.Join(dir, fname)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Room Overlay Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if t != nil && t.Layout != nil {
		snap := t.Layout.Snapshot()
		_, _ = fmt.Fprintf(&buf, "Layout: %d objects, epoch %d\n", len(snap.Objects), snap.Epoch)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()

	// Uploaded only when the user opted in.
	telemetry.UploadCrash(buf.Bytes())
	ctx, cancel := context.WithTimeout(context.Background(), uploadWait)
	defer cancel()
	telemetry.Flush(ctx)
	return path, nil
}
