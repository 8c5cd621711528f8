/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"roomoverlay/internal/gallery"
	"roomoverlay/internal/layout"
	"roomoverlay/internal/scenegraph"
)

func sampleObjects() []layout.PlacedObject {
	return []layout.PlacedObject{
		{ID: "a", URL: "/models/table.glb", Position: layout.Vec3{1, 0, 0}, Scale: layout.Vec3{1, 1, 1}},
		{ID: "b", URL: "/models/cot.glb", Position: layout.Vec3{-1, 0, 1}, Rotation: layout.Vec3{0, math.Pi / 2, 0}, Scale: layout.Vec3{1, 1, 1}},
	}
}

func TestLayoutJSONRoundTrip(t *testing.T) {
	objs := sampleObjects()
	data, err := LayoutJSON(objs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), "\n  {\n    \"id\": \"a\"") {
		t.Fatalf("expected two-space indentation, got:\n%s", data)
	}
	got, err := ParseLayoutJSON(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 || got[1] != objs[1] {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	path := filepath.Join(t.TempDir(), "l.json")
	if err := WriteLayoutJSON(path, objs); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, err := ReadLayoutJSON(path); err != nil || len(got) != 2 {
		t.Fatalf("read back: %v %v", got, err)
	}
}

func TestParseLayoutJSONRejectsInvalid(t *testing.T) {
	for _, raw := range []string{`{`, `{"url":"x"}`, `[{"position":[1,2,3]}]`, `[{"url":"x","scale":[1,2]}]`} {
		if _, err := ParseLayoutJSON([]byte(raw)); err == nil {
			t.Errorf("expected %s to be rejected", raw)
		}
	}
}

func TestPlanSVGDrawsFootprints(t *testing.T) {
	objs := append(sampleObjects(), layout.PlacedObject{ID: "ghost", URL: "/models/ghost.glb", Scale: layout.Vec3{1, 1, 1}})
	data, err := PlanSVG(context.Background(), objs, scenegraph.NewStaticLoader(), PlanOptions{Labels: true})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	s := string(data)
	if n := strings.Count(s, "<polygon"); n != 2 {
		t.Fatalf("expected 2 footprints, got %d", n)
	}
	for _, want := range []string{`id="a"`, `id="b"`, ">table<", ">cot<"} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %s", want)
		}
	}
	if strings.Contains(s, "ghost") {
		t.Error("unloadable asset should be left out")
	}
}

func TestFootprintFollowsRotation(t *testing.T) {
	arena := scenegraph.NewArena(scenegraph.NewStaticLoader())
	inst, err := arena.Attach(context.Background(), "b", "/models/cot.glb")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	o := sampleObjects()[1]
	inst.SetTransform(o.Transform())
	fp := footprintOf(inst)
	xs := []float64{fp.corners[0].X(), fp.corners[1].X(), fp.corners[2].X(), fp.corners[3].X()}
	sort.Float64s(xs)
	// The cot is 2m long on x; turned a quarter it spans 0.95m on x.
	if w := xs[3] - xs[0]; math.Abs(w-0.95) > 1e-6 {
		t.Fatalf("rotated footprint width = %v", w)
	}
	if math.Abs(fp.center.X()+1) > 1e-6 || math.Abs(fp.center.Y()-1) > 1e-6 {
		t.Fatalf("footprint centre = %v", fp.center)
	}
}

func TestArchiveZIPContents(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bundle")
	photos := []gallery.Photo{testPhoto(t, "p1", false), testPhoto(t, "p2", true)}
	m, err := ArchiveZIP(out, photos, sampleObjects())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(m.Photos) != 2 || m.Objects != 2 {
		t.Fatalf("manifest = %+v", m)
	}
	zr, err := zip.OpenReader(out + ".zip")
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer func() { _ = zr.Close() }()
	names := map[string]*zip.File{}
	for _, f := range zr.File {
		names[f.Name] = f
	}
	for _, want := range []string{"photos/1.png", "photos/2.jpg", "layout.json", "manifest.json"} {
		if names[want] == nil {
			t.Fatalf("missing %s in %v", want, names)
		}
	}
	rc, err := names["manifest.json"].Open()
	if err != nil {
		t.Fatalf("open manifest: %v", err)
	}
	raw, _ := io.ReadAll(rc)
	_ = rc.Close()
	var back Manifest
	if err := json.Unmarshal(raw, &back); err != nil || back.Photos[1].ID != "p2" {
		t.Fatalf("manifest round trip: %v %+v", err, back)
	}
}

func TestBatchExportPresets(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	in := BatchInput{Photos: []gallery.Photo{testPhoto(t, "p", false)}, Objects: sampleObjects(), Loader: scenegraph.NewStaticLoader()}

	files, err := BatchExport(ctx, in, BatchOptions{Preset: PresetArchive, OutDir: filepath.Join(dir, "archive")})
	if err != nil {
		t.Fatalf("archive preset: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("archive preset wrote %v", files)
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			t.Fatalf("stat %s: %v", f, err)
		}
	}

	in.Photos = nil
	files, err = BatchExport(ctx, in, BatchOptions{Preset: PresetShare, OutDir: filepath.Join(dir, "share")})
	if err != nil {
		t.Fatalf("share preset: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "room.json" {
		t.Fatalf("share preset without photos wrote %v", files)
	}

	if _, err := BatchExport(ctx, in, BatchOptions{Formats: []string{"gif"}, OutDir: dir}); err == nil {
		t.Fatal("expected unknown format error")
	}
}
