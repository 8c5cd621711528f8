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
	"github.com/spf13/cobra"

	"roomoverlay/internal/config"
	"roomoverlay/internal/ui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the desktop room preview (needs a -tags fyne build)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer closeWorkspace(w)
		path := flagConfig
		if path == "" {
			path, _ = config.ConfigPath()
		}
		return ui.Run(w, path)
	},
}

func init() { rootCmd.AddCommand(uiCmd) }
