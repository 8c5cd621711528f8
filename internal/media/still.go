/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package media

import (
	"context"
	"errors"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"roomoverlay/internal/capture"
)

// Stills is a Device whose cameras are image files. It stands in for a live
// camera on the command line and in the desktop preview.
type Stills struct {
	paths map[string]string
}

// NewStills registers the given files. Each is a camera whose id is the file
// name.
func NewStills(paths ...string) *Stills {
	s := &Stills{paths: make(map[string]string, len(paths))}
	for _, p := range paths {
		s.paths[filepath.Base(p)] = p
	}
	return s
}

// StillsFromDir registers every png, jpeg, bmp or webp file in dir.
func StillsFromDir(dir string) (*Stills, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".bmp", ".webp":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return NewStills(paths...), nil
}

// Devices lists the registered files as video inputs labeled by stem.
func (s *Stills) Devices(context.Context) ([]DeviceInfo, error) {
	out := make([]DeviceInfo, 0, len(s.paths))
	for id := range s.paths {
		out = append(out, DeviceInfo{ID: id, Label: strings.TrimSuffix(id, filepath.Ext(id)), Kind: KindVideoInput})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Open decodes the requested file. Without a device id the first file by
// name is used.
func (s *Stills) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := s.paths[c.DeviceID]
	if c.DeviceID == "" {
		ids := make([]string, 0, len(s.paths))
		for id := range s.paths {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		if len(ids) > 0 {
			path, ok = s.paths[ids[0]], true
		}
	}
	if !ok {
		return nil, FromName("NotFoundError")
	}
	img, err := capture.LoadImage(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, FromName("NotAllowedError")
		}
		return nil, FromName("NotReadableError")
	}
	return &stillStream{img: img}, nil
}

type stillStream struct {
	img image.Image

	mu      sync.Mutex
	stopped bool
}

func (s *stillStream) Tracks() []Track                 { return []Track{stillTrack{s}} }
func (s *stillStream) Ready(ctx context.Context) error { return ctx.Err() }
func (s *stillStream) Play(ctx context.Context) error  { return ctx.Err() }

func (s *stillStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrNoStream
	}
	return s.img, nil
}

type stillTrack struct{ s *stillStream }

func (stillTrack) Kind() string { return "video" }

func (t stillTrack) Stop() {
	t.s.mu.Lock()
	t.s.stopped = true
	t.s.mu.Unlock()
}
