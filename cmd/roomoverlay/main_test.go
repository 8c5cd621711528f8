/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomoverlay/internal/version"
)

type cli struct {
	t   *testing.T
	cfg string
	dir string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	for _, k := range []string{"ROV_DATA_DIR", "ROV_TELEMETRY_OPT_IN", "ROV_TELEMETRY_URL", "ROV_LOG_FILE"} {
		t.Setenv(k, "")
	}
	root := t.TempDir()
	return &cli{t: t, cfg: filepath.Join(root, "config.yaml"), dir: filepath.Join(root, "data")}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	layoutShowJSON = false
	simulateOpts.dryRun, simulateOpts.render = false, ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", c.cfg, "--data-dir", c.dir}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) must(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	return out
}

func TestVersionCommand(t *testing.T) {
	out := newCLI(t).must("version")
	assert.Contains(t, out, "Room Overlay")
	assert.Contains(t, out, version.String())
}

func TestLayoutAddClearUndo(t *testing.T) {
	c := newCLI(t)
	out := c.must("layout", "add", "chair")
	assert.Contains(t, out, "Added /models/chair.glb as ")

	assert.Contains(t, c.must("layout", "show", "--json"), `"url": "/models/chair.glb"`)
	assert.Contains(t, c.must("layout", "clear"), "Cleared 1 objects.")
	assert.Contains(t, c.must("layout", "show"), "Layout is empty.")

	assert.Contains(t, c.must("layout", "undo"), "Restored layout with 1 objects.")
	assert.Contains(t, c.must("layout", "show"), "/models/chair.glb")
}

func TestLayoutRemoveUnknown(t *testing.T) {
	_, err := newCLI(t).run("layout", "remove", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no object "nope"`)
}

func TestSimulateCommitsUnlessDryRun(t *testing.T) {
	c := newCLI(t)
	script := filepath.Join(t.TempDir(), "place.yaml")
	require.NoError(t, os.WriteFile(script, []byte("name: place\nsteps:\n  - add: /models/table.glb\n"), 0o644))

	out := c.must("simulate", script, "--dry-run")
	assert.Contains(t, out, "Replayed 1 steps")
	assert.Contains(t, c.must("layout", "show"), "Layout is empty.")

	c.must("simulate", script)
	assert.Contains(t, c.must("layout", "show"), "/models/table.glb")
}
