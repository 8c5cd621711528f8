/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package simulate replays scripted pointer sessions against a scene. Scripts
// are YAML; time is simulated so replays are deterministic.
package simulate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Special targets.
const (
	// LastAdded refers to the object created by the most recent add step.
	LastAdded = "$last"
	// DownPoint is where the same pointer last went down.
	DownPoint = "$down"
)

// DefaultStep is the simulated time between two steps.
const DefaultStep = 16 * time.Millisecond

// Script is a recorded interaction.
type Script struct {
	Name string `yaml:"name"`
	// Viewport overrides the scene viewport as [width, height].
	Viewport []float64 `yaml:"viewport,omitempty"`
	StepMs   int       `yaml:"step_ms,omitempty"`
	Steps    []Step    `yaml:"steps"`
}

// Step holds exactly one action.
type Step struct {
	Add        string        `yaml:"add,omitempty"`
	Select     *string       `yaml:"select,omitempty"`
	Down       *PointerStep  `yaml:"down,omitempty"`
	Move       *PointerStep  `yaml:"move,omitempty"`
	Up         *PointerStep  `yaml:"up,omitempty"`
	Cancel     *int          `yaml:"cancel,omitempty"`
	Wait       time.Duration `yaml:"wait,omitempty"`
	RotateMode *bool         `yaml:"rotate_mode,omitempty"`
	TapDelete  bool          `yaml:"tap_delete,omitempty"`
	FocusLost  bool          `yaml:"focus_lost,omitempty"`
}

// PointerStep places a pointer either at X/Y or relative to an object's
// projected centre.
type PointerStep struct {
	Pointer int      `yaml:"pointer"`
	X       *float64 `yaml:"x,omitempty"`
	Y       *float64 `yaml:"y,omitempty"`
	Target  string   `yaml:"target,omitempty"`
	DX      float64  `yaml:"dx,omitempty"`
	DY      float64  `yaml:"dy,omitempty"`
}

// ErrEmptyScript is returned for a script without steps.
var ErrEmptyScript = errors.New("script has no steps")

// Parse decodes and checks a script. Unknown fields are rejected.
func Parse(r io.Reader) (Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return s, ErrEmptyScript
		}
		return s, fmt.Errorf("parse script: %w", err)
	}
	return s, s.Validate()
}

// Load reads a script file.
func Load(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	return Parse(bytes.NewReader(data))
}

// Validate checks that every step holds one well-formed action.
func (s Script) Validate() error {
	if len(s.Steps) == 0 {
		return ErrEmptyScript
	}
	if len(s.Viewport) != 0 && (len(s.Viewport) != 2 || s.Viewport[0] <= 0 || s.Viewport[1] <= 0) {
		return fmt.Errorf("viewport must be [width, height], got %v", s.Viewport)
	}
	if s.StepMs < 0 {
		return fmt.Errorf("step_ms must not be negative")
	}
	for i, st := range s.Steps {
		if n := st.actions(); n != 1 {
			return fmt.Errorf("step %d: want exactly one action, got %d", i+1, n)
		}
		for _, p := range []*PointerStep{st.Down, st.Move, st.Up} {
			if p == nil {
				continue
			}
			if p.Target == "" && (p.X == nil || p.Y == nil) {
				return fmt.Errorf("step %d: pointer needs x and y or a target", i+1)
			}
		}
		if st.Wait < 0 {
			return fmt.Errorf("step %d: negative wait", i+1)
		}
	}
	return nil
}

func (st Step) actions() int {
	n := 0
	for _, set := range []bool{
		st.Add != "", st.Select != nil, st.Down != nil, st.Move != nil, st.Up != nil,
		st.Cancel != nil, st.Wait > 0, st.RotateMode != nil, st.TapDelete, st.FocusLost,
	} {
		if set {
			n++
		}
	}
	return n
}

func (s Script) step() time.Duration {
	if s.StepMs > 0 {
		return time.Duration(s.StepMs) * time.Millisecond
	}
	return DefaultStep
}
