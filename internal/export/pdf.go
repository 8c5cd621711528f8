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
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // DecodeConfig for JPEG photos
	_ "image/png"  // DecodeConfig for PNG photos
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"

	"roomoverlay/internal/gallery"
)

// PDFOptions controls the gallery contact sheet.
// Units are points; pages are A4 landscape.
type PDFOptions struct {
	// Title, when set, adds a cover page.
	Title string
	// Margin around the photo on each page; 0 means 36pt.
	Margin float64
	// Captions prints the file name and capture time under each photo.
	Captions bool
}

const captionSize = 10.0

// ContactSheetPDF writes one page per photo to outPath. Photos that cannot
// be decoded are skipped; the number placed is returned.
func ContactSheetPDF(photos []gallery.Photo, outPath string, opt PDFOptions) (int, error) {
	if len(photos) == 0 {
		return 0, fmt.Errorf("no photos to export")
	}
	margin := opt.Margin
	if margin <= 0 {
		margin = 36
	}

	pdf := gofpdf.New("L", "pt", "A4", "")
	pdf.SetTitle(opt.Title, true)
	pdf.SetAuthor("Room Overlay", false)
	pdf.SetFont("Helvetica", "", 12)
	pageW, pageH := pdf.GetPageSize()

	if opt.Title != "" {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 28)
		pdf.Text(margin, pageH/2-20, opt.Title)
		pdf.SetFont("Helvetica", "", 12)
		pdf.Text(margin, pageH/2+10, fmt.Sprintf("%d photo(s)", len(photos)))
	}

	placed := 0
	for i, p := range photos {
		data, mime, err := p.Decode()
		if err != nil {
			continue
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil || cfg.Width == 0 || cfg.Height == 0 {
			continue
		}
		imgType := "PNG"
		if mime == "image/jpeg" {
			imgType = "JPG"
		}
		name := fmt.Sprintf("photo-%d", i)
		iopt := gofpdf.ImageOptions{ImageType: imgType}
		pdf.RegisterImageOptionsReader(name, iopt, bytes.NewReader(data))

		boxW := pageW - 2*margin
		boxH := pageH - 2*margin
		if opt.Captions {
			boxH -= captionSize * 2
		}
		s := math.Min(boxW/float64(cfg.Width), boxH/float64(cfg.Height))
		w, h := float64(cfg.Width)*s, float64(cfg.Height)*s
		x := (pageW - w) / 2
		y := margin + (boxH-h)/2

		pdf.AddPage()
		pdf.ImageOptions(name, x, y, w, h, false, iopt, 0, "")
		if opt.Captions {
			pdf.SetFont("Helvetica", "", captionSize)
			pdf.Text(x, y+h+captionSize*1.5, caption(p))
		}
		placed++
	}
	if placed == 0 {
		return 0, fmt.Errorf("none of %d photo(s) could be decoded", len(photos))
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return 0, fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return 0, fmt.Errorf("write pdf: %w", err)
	}
	return placed, nil
}

func caption(p gallery.Photo) string {
	when := p.Created().UTC().Format(time.RFC3339)
	if p.FileName == "" {
		return when
	}
	return p.FileName + "  " + when
}
