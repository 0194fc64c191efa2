/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/friendsincode/lineup/internal/importer"
)

var importStrict bool

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import an event schedule from YAML",
	Long: `Create an event with its tracks, sessions and display settings from a YAML file.

Sessions that conflict or fall outside the schedule are skipped and reported,
unless --strict is given, in which case the first rejection aborts the import.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importStrict, "strict", false, "Abort on the first rejected session")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	st, sched, closeFn, err := openSchedule()
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := importer.New(st, sched, logger).Import(cmd.Context(), f, importer.Options{Strict: importStrict})
	if err != nil {
		return fmt.Errorf("import %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "event %s (%s): %d tracks, %d sessions\n", res.Event.ID, res.Event.Name, res.Tracks, res.Sessions)
	for _, r := range res.Rejected {
		fmt.Fprintf(out, "  skipped %v\n", r)
	}
	return nil
}
