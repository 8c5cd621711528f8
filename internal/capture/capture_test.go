/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomoverlay/internal/gallery"
	"roomoverlay/internal/storage"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// halfOverlay is opaque red on the left half and transparent elsewhere.
type halfOverlay struct{}

func (halfOverlay) RenderOverlay(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, image.Rect(0, 0, w/2, h), &image.Uniform{C: color.RGBA{R: 255, A: 255}}, image.Point{}, draw.Src)
	return img
}

func TestCompositeWithoutBackgroundIsWhite(t *testing.T) {
	out, err := Composite(halfOverlay{}.RenderOverlay(40, 20), nil)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), out.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, out.RGBAAt(5, 5))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, out.RGBAAt(35, 5))
}

func TestCompositeScalesBackgroundToSurface(t *testing.T) {
	bg := solid(8, 4, color.RGBA{B: 200, A: 255})
	out, err := Composite(halfOverlay{}.RenderOverlay(64, 32), bg)
	require.NoError(t, err)
	assert.Equal(t, 64, out.Bounds().Dx())
	px := out.RGBAAt(60, 30)
	assert.InDelta(t, 200, int(px.B), 2)
	assert.Equal(t, uint8(0), px.R)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, out.RGBAAt(1, 1))
}

func TestCompositeRejectsZeroSizedInputs(t *testing.T) {
	_, err := Composite(image.NewRGBA(image.Rect(0, 0, 0, 10)), nil)
	assert.ErrorIs(t, err, ErrSurfaceNotReady)
	_, err = Composite(nil, nil)
	assert.ErrorIs(t, err, ErrSurfaceNotReady)
	_, err = Composite(solid(4, 4, color.RGBA{A: 255}), image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, ErrVideoNotReady)
}

func TestEncodeFormats(t *testing.T) {
	img := solid(16, 16, color.RGBA{G: 128, A: 255})

	data, err := Encode(img, FormatPNG)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	data, err = Encode(img, FormatJPEG)
	require.NoError(t, err)
	_, err = jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	_, err = Encode(image.NewRGBA(image.Rect(0, 0, 0, 0)), FormatPNG)
	assert.ErrorIs(t, err, ErrSurfaceNotReady)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"png": FormatPNG, "": FormatPNG, ".JPG": FormatJPEG, "jpeg": FormatJPEG} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("gif")
	assert.Error(t, err)
}

func TestSaveFileNaming(t *testing.T) {
	dir := t.TempDir()
	at := time.UnixMilli(1_735_000_000_123)
	path, err := SaveFile(filepath.Join(dir, "out"), []byte("x"), FormatPNG, at)
	require.NoError(t, err)
	assert.Equal(t, "infimary-room-1735000000123.png", filepath.Base(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", string(b))

	_, err = SaveFile(dir, nil, FormatPNG, at)
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func TestTakeAndSendToGallery(t *testing.T) {
	ctx := context.Background()
	shot, err := Take(halfOverlay{}, 32, 16, nil, FormatJPEG, time.UnixMilli(42))
	require.NoError(t, err)
	assert.Equal(t, "infimary-room-42.jpg", shot.FileName())

	g := gallery.NewPhotos(storage.NewMemoryKV(), nil)
	p, err := ToGallery(ctx, g, shot.Data, shot.Format, shot.FileName())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.DataURL, "data:image/jpeg;base64,"))
	data, mime, err := p.Decode()
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.Equal(t, shot.Data, data)

	_, err = Take(halfOverlay{}, 0, 16, nil, FormatPNG, time.Now())
	assert.ErrorIs(t, err, ErrSurfaceNotReady)
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bg.png")
	data, err := Encode(solid(3, 2, color.RGBA{R: 9, A: 255}), FormatPNG)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	img, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())

	_, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
