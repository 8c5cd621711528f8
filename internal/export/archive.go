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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"roomoverlay/internal/gallery"
	"roomoverlay/internal/layout"
)

// Manifest describes the contents of a gallery archive.
type Manifest struct {
	Photos  []ManifestPhoto `json:"photos"`
	Objects int             `json:"objects"`
}

// ManifestPhoto maps an archived file back to its gallery entry.
type ManifestPhoto struct {
	File      string `json:"file"`
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	FileName  string `json:"fileName,omitempty"`
}

// ArchiveZIP packages the photos as image files plus the layout as
// layout.json and a manifest.json into a ZIP at outPath. Photos that do not
// decode are skipped.
func ArchiveZIP(outPath string, photos []gallery.Photo, objs []layout.PlacedObject) (Manifest, error) {
	if !strings.HasSuffix(strings.ToLower(outPath), ".zip") {
		outPath += ".zip"
	}
	zw, f, err := createZip(outPath)
	if err != nil {
		return Manifest{}, err
	}
	defer func() { _ = f.Close() }()

	pad := len(fmt.Sprint(len(photos)))
	m := Manifest{Photos: []ManifestPhoto{}, Objects: len(objs)}
	for i, p := range photos {
		data, mime, err := p.Decode()
		if err != nil {
			continue
		}
		ext := "png"
		if mime == "image/jpeg" {
			ext = "jpg"
		}
		name := fmt.Sprintf("photos/%0*d.%s", pad, i+1, ext)
		if err := addZipFile(zw, name, data); err != nil {
			return Manifest{}, fmt.Errorf("zip add photo: %w", err)
		}
		m.Photos = append(m.Photos, ManifestPhoto{File: name, ID: p.ID, CreatedAt: p.CreatedAt, FileName: p.FileName})
	}

	lj, err := LayoutJSON(objs)
	if err != nil {
		return Manifest{}, err
	}
	if err := addZipFile(zw, "layout.json", lj); err != nil {
		return Manifest{}, fmt.Errorf("zip add layout: %w", err)
	}
	mj, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("build manifest: %w", err)
	}
	if err := addZipFile(zw, "manifest.json", mj); err != nil {
		return Manifest{}, fmt.Errorf("zip add manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return Manifest{}, fmt.Errorf("close zip: %w", err)
	}
	return m, nil
}

func createZip(outPath string) (*zip.Writer, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create zip: %w", err)
	}
	return zip.NewWriter(f), f, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
