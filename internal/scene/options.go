/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package scene

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"roomoverlay/internal/config"
	"roomoverlay/internal/geom"
	"roomoverlay/internal/gesture"
	"roomoverlay/internal/scenegraph"
)

// FallbackSize is the box shown for assets the loader has no template for.
var FallbackSize = mgl64.Vec3{0.6, 0.6, 0.6}

// NewLoader returns the furniture loader with a neutral box for custom
// library entries.
func NewLoader() *scenegraph.StaticLoader {
	l := scenegraph.NewStaticLoader()
	l.Fallback = scenegraph.NewBox(FallbackSize, color.RGBA{R: 0x90, G: 0xa4, B: 0xae, A: 0xff})
	return l
}

// OptionsFromConfig builds scene options from the settings file.
func OptionsFromConfig(cfg config.AppConfig) (Options, error) {
	bg, err := ParseHexColor(cfg.Scene.Background)
	if err != nil {
		return Options{}, fmt.Errorf("scene.background: %w", err)
	}
	cam := geom.DefaultCamera()
	cam.Position = mgl64.Vec3(cfg.Scene.CameraPosition)
	cam.Target = mgl64.Vec3(cfg.Scene.CameraTarget)
	if cfg.Scene.FovDeg > 0 {
		cam.FovY = cfg.Scene.FovDeg
	}
	if cam.Position == cam.Target {
		cam = geom.DefaultCamera()
	}
	g := gesture.ConfigFromSettings(cfg.Gesture)
	return Options{
		Camera:     cam,
		Viewport:   geom.Viewport{Width: float64(cfg.Scene.Width), Height: float64(cfg.Scene.Height)},
		Gesture:    &g,
		Loader:     NewLoader(),
		Background: bg,
	}, nil
}

// ParseHexColor reads #rgb or #rrggbb. An empty string is white.
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, nil
	}
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("bad colour %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("bad colour %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
