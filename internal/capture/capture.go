/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package capture composites the rendered scene over a camera frame and
// turns the result into a downloadable or gallery-ready image.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"

	// Extra decoders for background frames loaded from disk.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"roomoverlay/internal/gallery"
	"roomoverlay/internal/storage"
)

var (
	// ErrSurfaceNotReady means the render surface has no area yet.
	ErrSurfaceNotReady = errors.New("render surface not ready")
	// ErrVideoNotReady means a camera frame was given but has no area.
	ErrVideoNotReady = errors.New("camera frame not ready")
	// ErrEmptyOutput means encoding produced nothing usable.
	ErrEmptyOutput = errors.New("encoded image is empty")
)

// JPEGQuality is used for JPEG output.
const JPEGQuality = 92

// FilePrefix starts every saved capture file name.
const FilePrefix = "infimary-room-"

// Format is an output encoding.
type Format int

const (
	FormatPNG Format = iota
	FormatJPEG
)

// ParseFormat accepts "png", "jpg" and "jpeg".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	}
	return 0, fmt.Errorf("unsupported image format %q", s)
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// MIME returns the content type.
func (f Format) MIME() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

func (f Format) String() string { return f.Ext() }

// Composite lays frame over background at the frame's size. The background
// is scaled to fill the surface; without one the surface is white.
func Composite(frame, background image.Image) (*image.RGBA, error) {
	if frame == nil || frame.Bounds().Empty() {
		return nil, ErrSurfaceNotReady
	}
	fb := frame.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, fb.Dx(), fb.Dy()))
	switch {
	case background == nil:
		draw.Draw(out, out.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	case background.Bounds().Empty():
		return nil, ErrVideoNotReady
	default:
		xdraw.BiLinear.Scale(out, out.Bounds(), background, background.Bounds(), xdraw.Src, nil)
	}
	draw.Draw(out, out.Bounds(), frame, fb.Min, draw.Over)
	return out, nil
}

// Encode serializes img.
func Encode(img image.Image, f Format) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrSurfaceNotReady
	}
	var buf bytes.Buffer
	var err error
	switch f {
	case FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality})
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", f, err)
	}
	if buf.Len() == 0 {
		return nil, ErrEmptyOutput
	}
	return buf.Bytes(), nil
}

// FileName returns the download name for a capture taken at at.
func FileName(at time.Time, f Format) string {
	return fmt.Sprintf("%s%d.%s", FilePrefix, at.UnixMilli(), f.Ext())
}

// SaveFile writes data into dir under FileName and returns the full path.
func SaveFile(dir string, data []byte, f Format, at time.Time) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyOutput
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure capture dir: %w", err)
	}
	path := filepath.Join(dir, FileName(at, f))
	if err := storage.WriteFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("save capture: %w", err)
	}
	return path, nil
}

// ToGallery appends data to the photo gallery as a data URL.
func ToGallery(ctx context.Context, g *gallery.Photos, data []byte, f Format, fileName string) (gallery.Photo, error) {
	if len(data) == 0 {
		return gallery.Photo{}, ErrEmptyOutput
	}
	return g.Append(ctx, gallery.DataURL(f.MIME(), data), fileName)
}

// LoadImage decodes a background frame from disk (PNG, JPEG, BMP or WebP).
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open background: %w", err)
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode background %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Overlay renders the scene on a transparent surface.
type Overlay interface {
	RenderOverlay(w, h int) *image.RGBA
}

// Shot is one finished capture.
type Shot struct {
	Image  *image.RGBA
	Data   []byte
	Format Format
	At     time.Time
}

// FileName returns the shot's download name.
func (s Shot) FileName() string { return FileName(s.At, s.Format) }

// Take renders src at w x h, composites it over background and encodes it.
func Take(src Overlay, w, h int, background image.Image, f Format, at time.Time) (Shot, error) {
	if w <= 0 || h <= 0 {
		return Shot{}, ErrSurfaceNotReady
	}
	img, err := Composite(src.RenderOverlay(w, h), background)
	if err != nil {
		return Shot{}, err
	}
	data, err := Encode(img, f)
	if err != nil {
		return Shot{}, err
	}
	return Shot{Image: img, Data: data, Format: f, At: at}, nil
}
