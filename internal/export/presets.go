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
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"roomoverlay/internal/gallery"
	"roomoverlay/internal/layout"
	"roomoverlay/internal/scenegraph"
	"roomoverlay/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	// PresetShare is what gets sent around: the contact sheet and the layout.
	PresetShare PresetName = "share"
	// PresetArchive keeps everything: photos, plan and layout.
	PresetArchive PresetName = "archive"
)

// BatchInput is what a batch export draws from.
type BatchInput struct {
	Photos  []gallery.Photo
	Objects []layout.PlacedObject
	// Loader resolves asset footprints for the floor plan.
	Loader scenegraph.Loader
}

// BatchOptions controls batch export across formats.
//
// Path semantics: OutDir defaults to the preset name; every format writes
// room.<ext> inside it.
type BatchOptions struct {
	Preset  PresetName
	Formats []string // allowed: pdf, zip, svg, json; empty means preset defaults
	OutDir  string
	Title   string
}

// BatchExport runs the requested exporters and returns the files written.
// Formats that have nothing to export (a PDF without photos) are skipped.
func BatchExport(ctx context.Context, in BatchInput, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	outDir := opt.OutDir
	if outDir == "" {
		outDir = string(opt.Preset)
	}

	var written []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		out := filepath.Join(outDir, "room."+f)
		switch f {
		case "pdf":
			if len(in.Photos) == 0 {
				continue
			}
			if _, err := ContactSheetPDF(in.Photos, out, PDFOptions{Title: opt.Title, Captions: true}); err != nil {
				return written, fmt.Errorf("pdf: %w", err)
			}
		case "zip":
			if _, err := ArchiveZIP(out, in.Photos, in.Objects); err != nil {
				return written, fmt.Errorf("zip: %w", err)
			}
		case "svg":
			data, err := PlanSVG(ctx, in.Objects, in.Loader, PlanOptions{Labels: true})
			if err != nil {
				return written, fmt.Errorf("svg: %w", err)
			}
			if err := storage.WriteFileAtomic(out, data); err != nil {
				return written, fmt.Errorf("svg: %w", err)
			}
		case "json":
			if err := WriteLayoutJSON(out, in.Objects); err != nil {
				return written, fmt.Errorf("json: %w", err)
			}
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
		written = append(written, out)
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetArchive:
		return []string{"zip", "svg", "json"}
	default:
		return []string{"pdf", "json"}
	}
}
