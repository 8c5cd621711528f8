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
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"roomoverlay/internal/layout"
	applog "roomoverlay/internal/log"
	"roomoverlay/internal/scenegraph"
)

// PlanOptions controls the top-down floor plan.
type PlanOptions struct {
	// PixelsPerMeter sets the SVG's pixel size; 0 means 100.
	PixelsPerMeter float64
	// Margin around the furniture in meters; 0 means 0.5.
	Margin float64
	// Labels prints each object's asset name at its centre.
	Labels bool
}

// footprint is an object's floor outline in world x/z.
type footprint struct {
	id, label string
	corners   [4]mgl64.Vec2
	center    mgl64.Vec2
	tint      color.RGBA
}

// PlanSVG draws each object's floor footprint as seen from above. Objects
// whose asset cannot be loaded are left out and logged.
func PlanSVG(ctx context.Context, objs []layout.PlacedObject, loader scenegraph.Loader, opt PlanOptions) ([]byte, error) {
	ppm := opt.PixelsPerMeter
	if ppm <= 0 {
		ppm = 100
	}
	margin := opt.Margin
	if margin <= 0 {
		margin = 0.5
	}
	log := applog.WithComponent("export")

	arena := scenegraph.NewArena(loader)
	var feet []footprint
	minX, minZ := math.Inf(1), math.Inf(1)
	maxX, maxZ := math.Inf(-1), math.Inf(-1)
	for _, o := range objs {
		inst, err := arena.Attach(ctx, o.ID, o.URL)
		if err != nil {
			log.Warn("plan: asset unavailable", slog.String("id", o.ID), slog.Any("err", err))
			continue
		}
		inst.SetTransform(o.Transform())
		fp := footprintOf(inst)
		fp.id, fp.label = o.ID, scenegraph.TemplateKey(o.URL)
		for _, c := range fp.corners {
			minX, maxX = math.Min(minX, c.X()), math.Max(maxX, c.X())
			minZ, maxZ = math.Min(minZ, c.Y()), math.Max(maxZ, c.Y())
		}
		feet = append(feet, fp)
		arena.Detach(o.ID)
	}
	if len(feet) == 0 {
		minX, minZ, maxX, maxZ = -1, -1, 1, 1
	}
	minX, minZ = minX-margin, minZ-margin
	maxX, maxZ = maxX+margin, maxZ+margin
	w, h := maxX-minX, maxZ-minZ

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}
	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%dpx\" height=\"%dpx\" viewBox=\"%g %g %g %g\">\n",
		int(math.Round(w*ppm)), int(math.Round(h*ppm)), minX, minZ, w, h)
	wf("  <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"#ffffff\"/>\n", minX, minZ, w, h)
	for x := math.Ceil(minX); x <= maxX; x++ {
		wf("  <line x1=\"%g\" y1=\"%g\" x2=\"%g\" y2=\"%g\" stroke=\"#e0e0e0\" stroke-width=\"0.01\"/>\n", x, minZ, x, maxZ)
	}
	for z := math.Ceil(minZ); z <= maxZ; z++ {
		wf("  <line x1=\"%g\" y1=\"%g\" x2=\"%g\" y2=\"%g\" stroke=\"#e0e0e0\" stroke-width=\"0.01\"/>\n", minX, z, maxX, z)
	}
	for _, fp := range feet {
		wf("  <polygon id=\"%s\" points=\"", escAttr(fp.id))
		for i, c := range fp.corners {
			if i > 0 {
				wf(" ")
			}
			wf("%.4f,%.4f", c.X(), c.Y())
		}
		wf("\" fill=\"%s\" fill-opacity=\"0.6\" stroke=\"#424242\" stroke-width=\"0.02\"/>\n", svgColor(fp.tint))
		if opt.Labels {
			wf("  <text x=\"%.4f\" y=\"%.4f\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"0.15\" text-anchor=\"middle\" fill=\"#000\">%s</text>\n",
				fp.center.X(), fp.center.Y(), escText(fp.label))
		}
	}
	wf("</svg>\n")
	if werr != nil {
		return nil, fmt.Errorf("build svg: %w", werr)
	}
	return buf.Bytes(), nil
}

// footprintOf projects the bottom face of the instance's box onto the floor.
func footprintOf(inst *scenegraph.Instance) footprint {
	m := inst.Content.WorldMatrix()
	all := inst.Asset.Bounds().Corners()
	var fp footprint
	// Bottom face corners in winding order.
	for i, idx := range [4]int{0, 1, 5, 4} {
		p := mgl64.TransformCoordinate(all[idx], m)
		fp.corners[i] = mgl64.Vec2{p.X(), p.Z()}
		fp.center = fp.center.Add(fp.corners[i].Mul(0.25))
	}
	fp.tint = color.RGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff}
	if t, ok := inst.Asset.(scenegraph.Tinted); ok {
		fp.tint = t.Color()
	}
	return fp
}

func svgColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func escAttr(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			out = append(out, '&', 'q', 'u', 'o', 't', ';')
		case '&':
			out = append(out, '&', 'a', 'm', 'p', ';')
		case '<':
			out = append(out, '&', 'l', 't', ';')
		case '\n':
			out = append(out, ' ')
		case '\r':
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '&':
			out = append(out, '&', 'a', 'm', 'p', ';')
		case '<':
			out = append(out, '&', 'l', 't', ';')
		case '>':
			out = append(out, '&', 'g', 't', ';')
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
