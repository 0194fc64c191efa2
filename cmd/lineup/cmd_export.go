/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/friendsincode/lineup/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <event-id>",
	Short: "Render the iCalendar feed of an event",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write the feed to this file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	_, sched, closeFn, err := openSchedule()
	if err != nil {
		return err
	}
	defer closeFn()

	feed, err := export.NewService(sched, nil, logger).Feed(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if exportOut == "" {
		_, err = cmd.OutOrStdout().Write(feed.Data)
		return err
	}
	if err := os.WriteFile(exportOut, feed.Data, 0o644); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	logger.Info().Str("file", exportOut).Int("bytes", len(feed.Data)).Msg("feed written")
	return nil
}
