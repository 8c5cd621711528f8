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
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"roomoverlay/internal/export"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Browse and export captured photos",
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured photos, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		photos := w.Photos.List(ctx)
		if len(photos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Gallery is empty.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tFILE\tTYPE\tSIZE\tTAKEN")
		for _, p := range photos {
			data, mime, err := p.Decode()
			size := "?"
			if err == nil {
				size = fmt.Sprintf("%d KiB", (len(data)+1023)/1024)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.FileName, mime, size, p.Created().Format(time.DateTime))
		}
		return tw.Flush()
	},
}

var galleryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		ok, err := w.Photos.Delete(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no photo %q", args[0])
		}
		return nil
	},
}

var galleryPDFTitle string

var galleryExportPDFCmd = &cobra.Command{
	Use:   "export-pdf <out.pdf>",
	Short: "Write every photo into a PDF contact sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		n, err := export.ContactSheetPDF(w.Photos.List(ctx), args[0], export.PDFOptions{Title: galleryPDFTitle, Captions: true})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d photos to %s\n", n, args[0])
		return nil
	},
}

var (
	galleryExportPreset  string
	galleryExportFormats []string
	galleryExportTitle   string
)

var galleryExportCmd = &cobra.Command{
	Use:   "export <dir>",
	Short: "Export photos and layout with a preset (share: pdf+json, archive: zip+svg+json)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		written, err := export.BatchExport(ctx, export.BatchInput{
			Photos:  w.Photos.List(ctx),
			Objects: w.Layout.Snapshot().Objects,
			Loader:  w.Scene.Loader,
		}, export.BatchOptions{
			Preset:  export.PresetName(galleryExportPreset),
			Formats: galleryExportFormats,
			OutDir:  args[0],
			Title:   galleryExportTitle,
		})
		for _, f := range written {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return err
	},
}

func init() {
	galleryExportPDFCmd.Flags().StringVar(&galleryPDFTitle, "title", "", "add a cover page with this title")
	galleryExportCmd.Flags().StringVar(&galleryExportPreset, "preset", string(export.PresetShare), "share or archive")
	galleryExportCmd.Flags().StringSliceVar(&galleryExportFormats, "format", nil, "formats to write instead of the preset's (pdf, zip, svg, json)")
	galleryExportCmd.Flags().StringVar(&galleryExportTitle, "title", "", "PDF cover title")
	galleryCmd.AddCommand(galleryListCmd, galleryDeleteCmd, galleryExportPDFCmd, galleryExportCmd)
	rootCmd.AddCommand(galleryCmd)
}
