/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package gallery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomoverlay/internal/events"
	"roomoverlay/internal/layout"
	"roomoverlay/internal/storage"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func stepClock() func() time.Time {
	t := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	u := DataURL("image/png", pngHeader)
	assert.Contains(t, u, "data:image/png;base64,")
	data, mime, err := DecodeDataURL(u)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, pngHeader, data)

	for _, bad := range []string{"", "http://x/y.png", "data:text/plain;base64,aGk=", "data:image/png,raw", "data:image/png;base64,@@@"} {
		_, _, err := DecodeDataURL(bad)
		assert.ErrorIs(t, err, ErrBadDataURL, bad)
	}
}

func TestPhotosAppendListDelete(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	var published int
	bus.Subscribe(events.GalleryUpdated, func(string, any) { published++ })

	n := 0
	g := NewPhotos(storage.NewMemoryKV(), bus, WithClock(stepClock()), WithIDs(func() string { n++; return fmt.Sprintf("p%d", n) }))
	first, err := g.Append(ctx, DataURL("image/png", pngHeader), "a.png")
	require.NoError(t, err)
	second, err := g.Append(ctx, DataURL("image/jpeg", []byte{0xff, 0xd8, 0xff}), "")
	require.NoError(t, err)

	list := g.List(ctx)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Greater(t, list[0].CreatedAt, list[1].CreatedAt)
	assert.Equal(t, 2, published)

	got, ok := g.Get(ctx, "p1")
	require.True(t, ok)
	data, _, err := got.Decode()
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	removed, err := g.Delete(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = g.Delete(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Len(t, g.List(ctx), 1)
	assert.Equal(t, 3, published)
}

func TestPhotosRejectNonImages(t *testing.T) {
	g := NewPhotos(storage.NewMemoryKV(), nil)
	_, err := g.Append(context.Background(), "hello", "")
	assert.ErrorIs(t, err, ErrBadDataURL)
	assert.Empty(t, g.List(context.Background()))
}

func TestPhotosCorruptStoreReadsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, storage.KeyGallery, "{broken"))
	g := NewPhotos(kv, nil)
	assert.Empty(t, g.List(ctx))
	_, err := g.Append(ctx, DataURL("image/png", pngHeader), "")
	require.NoError(t, err)
	assert.Len(t, g.List(ctx), 1)
}

func TestNamedLayouts(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	bus := events.NewBus()
	var saved []string
	bus.Subscribe(events.LayoutSaved, func(_ string, p any) { saved = append(saved, p.(NamedLayout).Name) })
	l := NewLayouts(kv, bus, WithClock(stepClock()))

	_, err := l.SaveCurrent(ctx, "x", nil)
	assert.ErrorIs(t, err, ErrEmptyLayout)

	objs := []layout.PlacedObject{{ID: "a", URL: "/models/cot.glb", Scale: layout.Vec3{1, 1, 1}}}
	first, err := l.SaveCurrent(ctx, "  Ward   A ", objs)
	require.NoError(t, err)
	assert.Equal(t, "Ward   A", first.Name)
	assert.Equal(t, "Ward-A.json", first.FileName())
	assert.Equal(t, fmt.Sprintf("layout-%d", first.CreatedAt), first.ID)

	objs[0].Position = layout.Vec3{1, 0, 0}
	second, err := l.SaveCurrent(ctx, "", objs)
	require.NoError(t, err)
	assert.Contains(t, second.Name, "Layout 2025-03-01")
	assert.Equal(t, []string{"Ward   A", second.Name}, saved)

	list := l.List(ctx)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, layout.Vec3{}, list[1].Data[0].Position)

	cur, err := l.SetAsCurrent(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Data, cur)
	assert.Equal(t, first.Data, layout.LoadObjects(ctx, kv))

	_, err = l.SetAsCurrent(ctx, "nope")
	assert.ErrorIs(t, err, ErrLayoutNotFound)

	ok, err := l.Delete(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, l.List(ctx), 1)
}
