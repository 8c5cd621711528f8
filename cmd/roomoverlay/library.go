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

	"github.com/spf13/cobra"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage the asset library",
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List library assets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		items := w.Library.List(ctx)
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Library is empty. Run 'library reset' to restore the defaults.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tLABEL\tKIND\tURL")
		for _, it := range items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.ID, it.Label, it.Kind, it.URL)
		}
		return tw.Flush()
	},
}

var libraryAddCmd = &cobra.Command{
	Use:   "add <label> <file>",
	Short: "Add a model (.glb/.gltf), SVG or image to the library",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		it, err := w.Library.Add(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s) as %s\n", it.Label, it.Kind, it.ID)
		return nil
	},
}

var libraryRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an asset from the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		ok, err := w.Library.Remove(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no library asset %q", args[0])
		}
		return nil
	},
}

var libraryResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default assets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		return w.Library.Reset(ctx)
	},
}

func init() {
	libraryCmd.AddCommand(libraryListCmd, libraryAddCmd, libraryRemoveCmd, libraryResetCmd)
	rootCmd.AddCommand(libraryCmd)
}
