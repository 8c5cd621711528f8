/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"roomoverlay/internal/capture"
	"roomoverlay/internal/events"
	"roomoverlay/internal/geom"
	applog "roomoverlay/internal/log"
	"roomoverlay/internal/media"
	"roomoverlay/internal/scene"
	"roomoverlay/internal/share"
	"roomoverlay/internal/workspace"
)

var captureOpts struct {
	background string
	cameraDir  string
	camera     string
	format     string
	width      int
	height     int
	out        string
	noFile     bool
	toGallery  bool
	share      bool
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Render the current layout over a background and save it",
	Long: `capture renders the current layout and composites it over a background:
either an image file (--background) or a frame from a camera. Cameras are
the image files of --camera-dir; --camera picks one by file name.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		return runCapture(ctx, cmd, w)
	},
}

func runCapture(ctx context.Context, cmd *cobra.Command, w *workspace.Workspace) error {
	l := applog.WithOperation(cliLog(), "capture")
	f, err := capture.ParseFormat(captureOpts.format)
	if err != nil {
		return err
	}
	opts := w.Scene
	if captureOpts.width > 0 && captureOpts.height > 0 {
		opts.Viewport = geom.Viewport{Width: float64(captureOpts.width), Height: float64(captureOpts.height)}
	}
	sc := scene.New(w.Layout, opts)
	defer sc.Close()

	bg, err := background(ctx)
	if err != nil {
		// A missing camera is reported but the capture goes on without it.
		if msg := media.UserMessage(err); msg != "" && errors.Is(err, errCamera) {
			fmt.Fprintln(cmd.ErrOrStderr(), msg)
			l.Warn("capturing without camera frame", slog.Any("err", err))
			bg = nil
		} else {
			return err
		}
	}

	vp := sc.Viewport()
	shot, err := capture.Take(sc, int(vp.Width), int(vp.Height), bg, f, time.Now())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !captureOpts.noFile {
		dir := captureOpts.out
		if dir == "" {
			if dir, err = w.CapturesDir(); err != nil {
				return err
			}
		}
		path, err := capture.SaveFile(dir, shot.Data, f, shot.At)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Saved", path)
	}
	if captureOpts.toGallery {
		p, err := capture.ToGallery(ctx, w.Photos, shot.Data, f, shot.FileName())
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Added to gallery as", p.ID)
	}
	w.Bus.Publish(events.CaptureSaved, f.String())

	if captureOpts.share {
		c, err := share.FromConfig(w.Config)
		if err != nil {
			return err
		}
		res, err := c.Upload(ctx, shot.Data, f.MIME(), shot.FileName())
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Shared:", res.URL)
	}
	return nil
}

// errCamera marks camera failures, which are not fatal to a capture.
var errCamera = errors.New("camera")

func background(ctx context.Context) (image.Image, error) {
	if captureOpts.cameraDir != "" {
		stills, err := media.StillsFromDir(captureOpts.cameraDir)
		if err != nil {
			return nil, err
		}
		sess := media.NewSession(stills)
		defer sess.Stop()
		c := media.DefaultConstraints()
		if captureOpts.camera != "" {
			c = media.ForDevice(captureOpts.camera)
		}
		if err := sess.Switch(ctx, c); err != nil {
			return nil, errors.Join(errCamera, err)
		}
		img, err := sess.Frame()
		if err != nil {
			return nil, errors.Join(errCamera, err)
		}
		return img, nil
	}
	if captureOpts.background != "" {
		return capture.LoadImage(captureOpts.background)
	}
	return nil, nil
}

var camerasCmd = &cobra.Command{
	Use:   "cameras <dir>",
	Short: "List the cameras (image files) capture --camera-dir would offer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stills, err := media.StillsFromDir(args[0])
		if err != nil {
			return err
		}
		cams, err := media.Cameras(cmd.Context(), stills)
		if err != nil {
			return err
		}
		for _, c := range cams {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.ID, c.Label)
		}
		return nil
	},
}

func init() {
	fl := captureCmd.Flags()
	fl.StringVar(&captureOpts.background, "background", "", "image file to composite under the overlay")
	fl.StringVar(&captureOpts.cameraDir, "camera-dir", "", "directory of still images served as cameras")
	fl.StringVar(&captureOpts.camera, "camera", "", "camera id (file name) within --camera-dir")
	fl.StringVar(&captureOpts.format, "format", "png", "png or jpeg")
	fl.IntVar(&captureOpts.width, "width", 0, "surface width (default scene.width)")
	fl.IntVar(&captureOpts.height, "height", 0, "surface height (default scene.height)")
	fl.StringVar(&captureOpts.out, "out", "", "directory for the image file (default <data-dir>/captures)")
	fl.BoolVar(&captureOpts.noFile, "no-file", false, "do not write an image file")
	fl.BoolVar(&captureOpts.toGallery, "gallery", true, "add the capture to the gallery")
	fl.BoolVar(&captureOpts.share, "share", false, "upload the capture to share.endpoint")
	rootCmd.AddCommand(captureCmd, camerasCmd)
}
