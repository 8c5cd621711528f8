/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package gallery keeps the captured photos and the named layout library.
package gallery

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"roomoverlay/internal/events"
	applog "roomoverlay/internal/log"
	"roomoverlay/internal/storage"
)

// ErrBadDataURL is returned when a photo does not hold a base64 image.
var ErrBadDataURL = errors.New("not a base64 image data URL")

// Photo is one captured image, stored inline as a data URL.
type Photo struct {
	ID        string `json:"id"`
	DataURL   string `json:"dataUrl"`
	CreatedAt int64  `json:"createdAt"`
	FileName  string `json:"fileName,omitempty"`
}

// Created returns CreatedAt as a time.
func (p Photo) Created() time.Time { return time.UnixMilli(p.CreatedAt) }

// Decode returns the image bytes and their MIME type.
func (p Photo) Decode() ([]byte, string, error) {
	return DecodeDataURL(p.DataURL)
}

// DataURL encodes data as a base64 data URL of the given MIME type.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL is the inverse of DataURL.
func DecodeDataURL(u string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return nil, "", ErrBadDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", ErrBadDataURL
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok || !strings.HasPrefix(mime, "image/") {
		return nil, "", ErrBadDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}
	return data, mime, nil
}

// Option customizes a Photos or Layouts collection.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

// WithClock overrides the creation timestamp source.
func WithClock(fn func() time.Time) Option { return func(o *options) { o.now = fn } }

// WithIDs overrides id generation.
func WithIDs(fn func() string) Option { return func(o *options) { o.newID = fn } }

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Photos is the captured-photo collection, newest first.
type Photos struct {
	mu  sync.Mutex
	kv  storage.KV
	bus *events.Bus
	opt options
	log *slog.Logger
}

// NewPhotos binds the photo collection to kv. bus may be nil.
func NewPhotos(kv storage.KV, bus *events.Bus, opts ...Option) *Photos {
	o := buildOptions(opts)
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return &Photos{kv: kv, bus: bus, opt: o, log: applog.WithComponent("gallery")}
}

// List returns every photo, newest first.
func (g *Photos) List(ctx context.Context) []Photo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return storage.ReadCollection[Photo](ctx, g.kv, storage.KeyGallery)
}

// Get returns the photo with id.
func (g *Photos) Get(ctx context.Context, id string) (Photo, bool) {
	for _, p := range g.List(ctx) {
		if p.ID == id {
			return p, true
		}
	}
	return Photo{}, false
}

// Append stores a new photo in front of the others.
func (g *Photos) Append(ctx context.Context, dataURL, fileName string) (Photo, error) {
	if _, _, err := DecodeDataURL(dataURL); err != nil {
		return Photo{}, err
	}
	g.mu.Lock()
	p := Photo{ID: g.opt.newID(), DataURL: dataURL, CreatedAt: g.opt.now().UnixMilli(), FileName: fileName}
	items := storage.ReadCollection[Photo](ctx, g.kv, storage.KeyGallery)
	items = append([]Photo{p}, items...)
	err := storage.WriteCollection(ctx, g.kv, storage.KeyGallery, items)
	g.mu.Unlock()
	if err != nil {
		return Photo{}, fmt.Errorf("append photo: %w", err)
	}
	g.log.Info("photo added", slog.String("id", p.ID), slog.Int("count", len(items)))
	g.bus.Publish(events.GalleryUpdated, p)
	return p, nil
}

// Delete removes the photo with id. Deleting an unknown id is not an error.
func (g *Photos) Delete(ctx context.Context, id string) (bool, error) {
	g.mu.Lock()
	items := storage.ReadCollection[Photo](ctx, g.kv, storage.KeyGallery)
	kept := items[:0]
	for _, p := range items {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	removed := len(kept) != len(items)
	var err error
	if removed {
		err = storage.WriteCollection(ctx, g.kv, storage.KeyGallery, kept)
	}
	g.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("delete photo: %w", err)
	}
	if removed {
		g.bus.Publish(events.GalleryUpdated, id)
	}
	return removed, nil
}
