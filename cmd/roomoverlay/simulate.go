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
	"fmt"

	"github.com/spf13/cobra"

	"roomoverlay/internal/capture"
	"roomoverlay/internal/scene"
	"roomoverlay/internal/simulate"
	"roomoverlay/internal/storage"
)

var simulateOpts struct {
	dryRun bool
	render string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <script.yaml>",
	Short: "Replay scripted pointer input on the current layout and save the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		script, err := simulate.Load(args[0])
		if err != nil {
			return err
		}
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)

		rep, err := simulate.Replay(ctx, w.Layout, w.Scene, script)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Replayed %d steps over %s (%d frames drawn), %d objects, selected %q\n",
			rep.Steps, rep.Elapsed, rep.Drawn, len(rep.Objects), rep.Selected)

		if simulateOpts.render != "" {
			opts := w.Scene
			if len(script.Viewport) == 2 {
				opts.Viewport.Width, opts.Viewport.Height = script.Viewport[0], script.Viewport[1]
			}
			sc := scene.New(w.Layout, opts)
			vp := sc.Viewport()
			img := sc.Render(int(vp.Width), int(vp.Height))
			sc.Close()
			data, err := capture.Encode(img, capture.FormatPNG)
			if err != nil {
				return err
			}
			if err := storage.WriteFileAtomic(simulateOpts.render, data); err != nil {
				return err
			}
			fmt.Fprintln(out, "Rendered", simulateOpts.render)
		}
		if simulateOpts.dryRun {
			return nil
		}
		return w.Commit(ctx)
	},
}

func init() {
	simulateCmd.Flags().BoolVar(&simulateOpts.dryRun, "dry-run", false, "do not save the resulting layout")
	simulateCmd.Flags().StringVar(&simulateOpts.render, "render", "", "write a PNG preview of the result")
	rootCmd.AddCommand(simulateCmd)
}
