/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/lineup/internal/version"
)

var versionCheck bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, version.String())
		if !versionCheck {
			return nil
		}
		info, err := version.Check(cmd.Context(), nil, version.ReleasesURL)
		if err != nil {
			return err
		}
		if info.UpdateAvailable {
			fmt.Fprintf(out, "update available: %s %s\n", info.LatestVersion, info.ReleaseURL)
			if info.ReleaseNotes != "" {
				fmt.Fprintf(out, "  %s\n", info.ReleaseNotes)
			}
		} else {
			fmt.Fprintln(out, "up to date")
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "Query the latest published release")
	rootCmd.AddCommand(versionCmd)
}
