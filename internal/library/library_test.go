/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package library

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomoverlay/internal/events"
	"roomoverlay/internal/storage"
)

var glbHeader = []byte{'g', 'l', 'T', 'F', 2, 0, 0, 0, 20, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	cases := []struct {
		name string
		head []byte
		want Kind
	}{
		{"glb", glbHeader, KindModel},
		{"gltf", []byte(` {"asset":{"version":"2.0"},"scenes":[]}`), KindModel},
		{"svg", []byte(`<?xml version="1.0"?><SVG xmlns="http://www.w3.org/2000/svg"></SVG>`), KindSVG},
		{"png", pngBytes(t), KindImage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, _, err := Sniff(tc.head)
			require.NoError(t, err)
			assert.Equal(t, tc.want, kind)
		})
	}

	for _, bad := range [][]byte{nil, []byte("just some notes"), {'g', 'l', 'T', 'F', 1, 0, 0, 0, 0, 0, 0, 0}} {
		_, _, err := Sniff(bad)
		assert.ErrorIs(t, err, ErrUnsupportedFile)
	}
}

func TestLibraryStartsWithDefaults(t *testing.T) {
	l := New(storage.NewMemoryKV(), nil)
	items := l.List(context.Background())
	require.Len(t, items, 6)
	assert.Equal(t, "cot", items[0].ID)
	assert.Equal(t, "/models/window-screen.glb", items[5].URL)
}

func TestLibraryAddRemoveReset(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	bus := events.NewBus()
	var updates int
	bus.Subscribe(events.LibraryUpdated, func(string, any) { updates++ })
	l := New(kv, bus)
	l.SetClock(func() time.Time { return time.UnixMilli(1000) })

	it, err := l.Add(ctx, "  Bed  ", writeFile(t, "bed.glb", glbHeader))
	require.NoError(t, err)
	assert.Equal(t, "custom-1000", it.ID)
	assert.Equal(t, "Bed", it.Label)
	assert.Equal(t, KindModel, it.Kind)
	assert.True(t, filepath.IsAbs(it.URL))

	items := l.List(ctx)
	require.Len(t, items, 7)
	assert.Equal(t, it, items[6])

	_, err = l.Add(ctx, " ", writeFile(t, "x.glb", glbHeader))
	assert.ErrorIs(t, err, ErrLabelRequired)
	_, err = l.Add(ctx, "notes", writeFile(t, "notes.txt", []byte("hello")))
	assert.ErrorIs(t, err, ErrUnsupportedFile)
	_, err = l.Add(ctx, "gone", filepath.Join(t.TempDir(), "missing.glb"))
	assert.Error(t, err)

	ok, err := l.Remove(ctx, "cot")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = l.Remove(ctx, "cot")
	require.NoError(t, err)
	assert.False(t, ok)
	_, found := l.Find(ctx, "cot")
	assert.False(t, found)
	assert.Len(t, l.List(ctx), 6)

	require.NoError(t, l.Reset(ctx))
	_, found = l.Find(ctx, "cot")
	assert.True(t, found)
	assert.Equal(t, 3, updates)
}

func TestLibraryRemovingEverythingStaysEmpty(t *testing.T) {
	ctx := context.Background()
	l := New(storage.NewMemoryKV(), nil)
	for _, it := range Defaults() {
		_, err := l.Remove(ctx, it.ID)
		require.NoError(t, err)
	}
	assert.Empty(t, l.List(ctx))
}
