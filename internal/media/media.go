/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package media is the camera acquisition boundary. A Device hands out video
// streams; a Session owns at most one of them and replaces it safely when the
// user switches cameras.
package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strings"
	"sync"

	applog "roomoverlay/internal/log"
)

// FacingEnvironment asks for the rear camera.
const FacingEnvironment = "environment"

// Acquisition failures, mapped from platform error names.
var (
	ErrPermissionDenied = errors.New("camera access denied")
	ErrDeviceNotFound   = errors.New("camera not found")
	ErrDeviceBusy       = errors.New("camera busy")
	ErrStartFailed      = errors.New("camera start failed")
	ErrPlayFailed       = errors.New("video play failed")
	// ErrPlayAborted is what a Stream returns when playback was interrupted
	// by a newer request. It is never shown to the user.
	ErrPlayAborted = errors.New("play aborted")
	// ErrNoStream means no stream is attached or it is not playing yet.
	ErrNoStream = errors.New("no camera stream")
)

var messages = []struct {
	err error
	msg string
}{
	{ErrPermissionDenied, "Camera access denied."},
	{ErrDeviceNotFound, "Camera not found."},
	{ErrDeviceBusy, "Camera is busy by another application."},
	{ErrPlayFailed, "Failed to play video"},
}

// Constraints selects a camera. DeviceID wins over FacingMode when set.
type Constraints struct {
	DeviceID   string
	FacingMode string
	Width      int
	Height     int
}

// DefaultConstraints asks for the rear camera at full HD.
func DefaultConstraints() Constraints {
	return Constraints{FacingMode: FacingEnvironment, Width: 1920, Height: 1080}
}

// ForDevice pins one device and leaves the resolution to it.
func ForDevice(id string) Constraints { return Constraints{DeviceID: id} }

func (c Constraints) String() string {
	if c.DeviceID != "" {
		return "device=" + c.DeviceID
	}
	return fmt.Sprintf("facing=%s %dx%d", c.FacingMode, c.Width, c.Height)
}

// Track is one media track of a stream.
type Track interface {
	Kind() string
	Stop()
}

// Stream is a granted video stream. Ready blocks until frame metadata is
// known; Play blocks until playback started. Both honour ctx.
type Stream interface {
	Tracks() []Track
	Ready(ctx context.Context) error
	Play(ctx context.Context) error
}

// FrameSource is implemented by streams that can hand out the current frame.
type FrameSource interface {
	Frame() (image.Image, error)
}

// Device grants streams.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// DeviceInfo describes one enumerated input.
type DeviceInfo struct {
	ID    string
	Label string
	Kind  string
}

// KindVideoInput is the DeviceInfo.Kind of cameras.
const KindVideoInput = "videoinput"

// Enumerator lists available inputs.
type Enumerator interface {
	Devices(ctx context.Context) ([]DeviceInfo, error)
}

// VideoInputs keeps the cameras of all and gives unlabeled ones a name
// derived from their id.
func VideoInputs(all []DeviceInfo) []DeviceInfo {
	out := make([]DeviceInfo, 0, len(all))
	for _, d := range all {
		if d.Kind != KindVideoInput {
			continue
		}
		if strings.TrimSpace(d.Label) == "" {
			id := d.ID
			if len(id) > 6 {
				id = id[:6]
			}
			d.Label = "Camera " + id
		}
		out = append(out, d)
	}
	return out
}

// AcquireError carries the platform error name next to the mapped sentinel.
type AcquireError struct {
	Name string
	Err  error
}

func (e *AcquireError) Error() string { return e.Name + ": " + e.Err.Error() }
func (e *AcquireError) Unwrap() error { return e.Err }

// FromName maps a platform error name to an AcquireError.
func FromName(name string) error {
	var base error
	switch name {
	case "NotAllowedError", "SecurityError":
		base = ErrPermissionDenied
	case "NotFoundError", "OverconstrainedError":
		base = ErrDeviceNotFound
	case "NotReadableError", "AbortError":
		base = ErrDeviceBusy
	default:
		base = ErrStartFailed
	}
	if name == "" {
		name = "Error"
	}
	return &AcquireError{Name: name, Err: base}
}

// UserMessage renders err for display. Cancellation yields "".
func UserMessage(err error) string {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, ErrPlayAborted):
		return ""
	}
	msg := "Failed to start camera."
	for _, m := range messages {
		if errors.Is(err, m.err) {
			msg = m.msg
			break
		}
	}
	var ae *AcquireError
	if errors.As(err, &ae) {
		return msg + " (" + ae.Name + ")"
	}
	return msg
}

// StopTracks stops every track of s. A nil stream is ignored.
func StopTracks(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

// Session owns the attached stream.
type Session struct {
	dev Device
	log *slog.Logger

	mu      sync.Mutex
	cur     Stream
	ready   bool
	cancel  context.CancelFunc
	playing chan struct{}
	gen     uint64
}

// NewSession returns an empty session on dev.
func NewSession(dev Device) *Session {
	return &Session{dev: dev, log: applog.WithComponent("media")}
}

// Switch replaces the current stream with one matching c. The old stream's
// tracks are stopped before the new one is opened. A later Switch or Stop
// cancels this one; the cancelled call returns context.Canceled and leaves
// no tracks running.
func (s *Session) Switch(ctx context.Context, c Constraints) error {
	l := applog.WithOperation(s.log, "switch").With(slog.String("constraints", c.String()))
	ctx, cancel := context.WithCancel(ctx)
	gen := s.teardown(cancel)

	if err := ctx.Err(); err != nil {
		return err
	}
	st, err := s.dev.Open(ctx, c)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.Warn("open failed", slog.Any("err", err))
		return err
	}
	if !s.attach(gen, st) {
		StopTracks(st)
		return context.Canceled
	}
	if ctx.Err() != nil {
		s.detach(gen)
		return ctx.Err()
	}

	if err := st.Ready(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.Warn("stream never became ready", slog.Any("err", err))
		return fmt.Errorf("%w: %v", ErrPlayFailed, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	done := make(chan struct{})
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		close(done)
		return context.Canceled
	}
	s.playing = done
	s.mu.Unlock()

	err = st.Play(ctx)
	close(done)
	if err != nil {
		if errors.Is(err, ErrPlayAborted) || ctx.Err() != nil {
			return context.Canceled
		}
		l.Warn("play failed", slog.Any("err", err))
		return fmt.Errorf("%w: %v", ErrPlayFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return context.Canceled
	}
	s.ready = true
	l.Info("camera ready")
	return nil
}

// teardown cancels the running switch, waits for its play, stops the old
// tracks and starts a new generation owned by cancel.
func (s *Session) teardown(cancel context.CancelFunc) uint64 {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	old, playing := s.cur, s.playing
	s.cur, s.playing, s.ready = nil, nil, false
	s.mu.Unlock()

	if playing != nil {
		<-playing
	}
	StopTracks(old)
	return gen
}

func (s *Session) attach(gen uint64, st Stream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.cur = st
	return true
}

func (s *Session) detach(gen uint64) {
	s.mu.Lock()
	var st Stream
	if s.gen == gen {
		st = s.cur
		s.cur = nil
	}
	s.mu.Unlock()
	StopTracks(st)
}

// Stop cancels any pending switch and releases the current stream.
func (s *Session) Stop() {
	s.teardown(func() {})
	s.mu.Lock()
	s.cancel = nil
	s.mu.Unlock()
}

// Current returns the attached stream, or nil.
func (s *Session) Current() Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Ready reports whether the attached stream is playing.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Frame returns the current camera frame.
func (s *Session) Frame() (image.Image, error) {
	s.mu.Lock()
	st, ready := s.cur, s.ready
	s.mu.Unlock()
	if !ready || st == nil {
		return nil, ErrNoStream
	}
	fs, ok := st.(FrameSource)
	if !ok {
		return nil, ErrNoStream
	}
	return fs.Frame()
}

// Cameras enumerates e and returns its video inputs sorted by label.
func Cameras(ctx context.Context, e Enumerator) ([]DeviceInfo, error) {
	all, err := e.Devices(ctx)
	if err != nil {
		return nil, err
	}
	out := VideoInputs(all)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}
