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
	"log/slog"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"roomoverlay/internal/export"
	"roomoverlay/internal/layout"
	applog "roomoverlay/internal/log"
	"roomoverlay/internal/storage"
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Inspect and edit the current room layout",
}

var layoutShowJSON bool

var layoutShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current layout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		objs := w.Layout.Snapshot().Objects
		out := cmd.OutOrStdout()
		if layoutShowJSON {
			data, err := export.LayoutJSON(objs)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		}
		if len(objs) == 0 {
			fmt.Fprintln(out, "Layout is empty.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tASSET\tPOSITION\tROTATION\tSCALE")
		for _, o := range objs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.ID, o.URL, vec(o.Position), vec(o.Rotation), vec(o.Scale))
		}
		return tw.Flush()
	},
}

func vec(v layout.Vec3) string { return fmt.Sprintf("%.2f %.2f %.2f", v[0], v[1], v[2]) }

var layoutAddCmd = &cobra.Command{
	Use:   "add <asset>",
	Short: "Place an asset (library id, model name or file) in the layout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		ref := args[0]
		if it, ok := w.Library.Find(ctx, ref); ok {
			ref = it.URL
		}
		id := w.Layout.Add(ref)
		if err := w.Commit(ctx); err != nil {
			return err
		}
		cliLog().InfoContext(applog.WithObject(ctx, id), "object added", slog.String("asset", ref))
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s as %s\n", ref, id)
		return nil
	},
}

var layoutRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove one object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		if !w.Layout.Remove(args[0]) {
			return fmt.Errorf("no object %q in the layout", args[0])
		}
		if err := w.Commit(ctx); err != nil {
			return err
		}
		cliLog().InfoContext(applog.WithObject(ctx, args[0]), "object removed")
		return nil
	},
}

var layoutClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every object (undo restores them)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		n := len(w.Layout.Snapshot().Objects)
		w.Layout.Clear()
		if err := w.Commit(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d objects.\n", n)
		return nil
	},
}

var layoutExportCmd = &cobra.Command{
	Use:   "export <file.json|file.svg>",
	Short: "Write the layout as JSON or as an SVG floor plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		objs := w.Layout.Snapshot().Objects
		out := args[0]
		switch strings.ToLower(filepath.Ext(out)) {
		case ".svg":
			data, err := export.PlanSVG(ctx, objs, w.Scene.Loader, export.PlanOptions{Labels: true})
			if err != nil {
				return err
			}
			if err := storage.WriteFileAtomic(out, data); err != nil {
				return err
			}
		case ".json", "":
			if err := export.WriteLayoutJSON(out, objs); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported export type %q (use .json or .svg)", filepath.Ext(out))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d objects to %s\n", len(objs), out)
		return nil
	},
}

var layoutImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Replace the layout with a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		objs, err := export.ReadLayoutJSON(args[0])
		if err != nil {
			return err
		}
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		w.Layout.ReplaceAll(objs)
		if err := w.Commit(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d objects.\n", len(objs))
		return nil
	},
}

var layoutUndoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Swap back to the layout before the last change (run again to redo)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		ok, err := layout.Revert(ctx, w.KV)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to undo.")
			return nil
		}
		w.Layout.Load(ctx, w.KV)
		fmt.Fprintf(cmd.OutOrStdout(), "Restored layout with %d objects.\n", len(w.Layout.Snapshot().Objects))
		return nil
	},
}

var layoutSaveAsCmd = &cobra.Command{
	Use:   "save-as [name]",
	Short: "Keep the current layout under a name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		n, err := w.Layouts.SaveCurrent(ctx, name, w.Layout.Snapshot().Objects)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %q as %s\n", n.Name, n.ID)
		return nil
	},
}

var layoutSavedCmd = &cobra.Command{
	Use:   "saved",
	Short: "List named layouts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		list := w.Layouts.List(ctx)
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No saved layouts.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tOBJECTS\tSAVED")
		for _, n := range list {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", n.ID, n.Name, len(n.Data), time.UnixMilli(n.CreatedAt).Format(time.DateTime))
		}
		return tw.Flush()
	},
}

var layoutUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Make a named layout the current one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		objs, err := w.Layouts.SetAsCurrent(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d objects.\n", len(objs))
		return nil
	},
}

var layoutForgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Delete a named layout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		ok, err := w.Layouts.Delete(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no saved layout %q", args[0])
		}
		return nil
	},
}

func init() {
	layoutShowCmd.Flags().BoolVar(&layoutShowJSON, "json", false, "print JSON instead of a table")
	layoutCmd.AddCommand(layoutShowCmd, layoutAddCmd, layoutRemoveCmd, layoutClearCmd, layoutExportCmd,
		layoutImportCmd, layoutUndoCmd, layoutSaveAsCmd, layoutSavedCmd, layoutUseCmd, layoutForgetCmd)
	rootCmd.AddCommand(layoutCmd)
}
