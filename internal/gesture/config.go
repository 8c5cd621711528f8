/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package gesture turns pointer input on placed objects into transforms. Each
// object gets an Engine, a small state machine that owns the object's live
// scene node while a drag, rotation or pinch is in progress. A scene-wide
// Arbiter makes sure at most one Engine is active at any time.
package gesture

import (
	"math"
	"time"

	"roomoverlay/internal/config"
)

// Config holds the tuning of the engine. Distances are screen pixels.
type Config struct {
	DragThreshold     float64
	DragGrace         time.Duration
	DeleteGrace       time.Duration
	DeleteMaxMove     float64
	DeleteMaxDuration time.Duration
	DeleteHitFactor   float64

	RotatePerPixel float64 // radians per pixel
	MaxPitch       float64 // radians
	SmoothingRate  float64 // 1/s

	PinchSensitivity      float64 // exponent applied to the distance ratio
	PinchRotateMultiplier float64
	PinchDeadZone         float64
	MinScale, MaxScale    float64

	EndCooldown time.Duration
}

// DefaultConfig returns the shipped tuning.
func DefaultConfig() Config { return ConfigFromSettings(config.DefaultGesture()) }

// ConfigFromSettings converts the user-facing gesture settings.
func ConfigFromSettings(g config.GestureConfig) Config {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return Config{
		DragThreshold:         g.DragThresholdPx,
		DragGrace:             ms(g.DragGraceMs),
		DeleteGrace:           ms(g.DeleteGraceMs),
		DeleteMaxMove:         g.DeleteMaxMovePx,
		DeleteMaxDuration:     ms(g.DeleteMaxDurationMs),
		DeleteHitFactor:       g.DeleteHitFactor,
		RotatePerPixel:        g.RotateRadPerPx,
		MaxPitch:              g.MaxPitchDeg * math.Pi / 180,
		SmoothingRate:         g.SmoothingRate,
		PinchSensitivity:      g.PinchSensitivity,
		PinchRotateMultiplier: g.PinchRotateMultiplier,
		PinchDeadZone:         g.PinchDeadZone,
		MinScale:              g.MinScale,
		MaxScale:              g.MaxScale,
		EndCooldown:           ms(g.EndCooldownMs),
	}
}

func (c Config) clampScale(s float64) float64 {
	if s < c.MinScale {
		return c.MinScale
	}
	if s > c.MaxScale {
		return c.MaxScale
	}
	return s
}
