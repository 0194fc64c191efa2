/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/lineup/internal/placement"
	"github.com/friendsincode/lineup/internal/schedule"
	"github.com/friendsincode/lineup/internal/timeslot"
)

var gridDay string

var gridCmd = &cobra.Command{
	Use:   "grid <event-id>",
	Short: "Print the visible grid of one day",
	Long:  "Print the tracks of an event as columns over the visible time slots of one day.",
	Args:  cobra.ExactArgs(1),
	RunE:  runGrid,
}

func init() {
	gridCmd.Flags().StringVar(&gridDay, "day", "", "Day to print as YYYY-MM-DD (default: first visible day)")
	rootCmd.AddCommand(gridCmd)
}

func runGrid(cmd *cobra.Command, args []string) error {
	_, sched, closeFn, err := openSchedule()
	if err != nil {
		return err
	}
	defer closeFn()

	settings, err := sched.Display(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	day := settings.VisibleFrom
	if gridDay != "" {
		day, err = time.Parse(time.DateOnly, gridDay)
		if err != nil {
			return fmt.Errorf("invalid --day %q: %w", gridDay, err)
		}
	}

	g, err := sched.Grid(cmd.Context(), args[0], day)
	if err != nil {
		return err
	}
	return renderGrid(cmd.OutOrStdout(), g)
}

// renderGrid writes one row per slot. A session is named in the slot it starts in
// and marked with "|" in the slots it continues through.
func renderGrid(w io.Writer, g schedule.Grid) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t", g.Day.Format("Mon 2006-01-02"))
	for _, t := range g.Tracks {
		fmt.Fprintf(tw, "%s\t", t.Track.Name)
	}
	fmt.Fprintln(tw)

	for i, slot := range g.Slots {
		row := make([]string, 0, len(g.Tracks)+1)
		row = append(row, timeslot.FormatTime(slot.Start))
		for _, t := range g.Tracks {
			row = append(row, cellText(t.Cells[i], g.Sessions))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t")+"\t")
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return renderLegend(w, g)
}

// renderLegend lists every visible session with its full time range.
func renderLegend(w io.Writer, g schedule.Grid) error {
	if len(g.Spans) == 0 {
		return nil
	}
	names := make(map[string]string, len(g.Tracks))
	for _, t := range g.Tracks {
		names[t.Track.ID] = t.Track.Name
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw)
	for _, sp := range g.Spans {
		note := fmt.Sprintf("%d slots", len(sp.Slots))
		if sp.Clipped {
			note += ", continues outside the window"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", sp.Label, names[sp.TrackID], cellText(schedule.Cell{SessionID: sp.SessionID, Starts: true}, g.Sessions), note)
	}
	return tw.Flush()
}

func cellText(c schedule.Cell, sessions map[string]placement.Session) string {
	if c.SessionID == "" {
		return "."
	}
	if !c.Starts {
		return "|"
	}
	s := sessions[c.SessionID]
	title := s.Title
	if title == "" {
		title = "(untitled)"
	}
	if len(s.Emojis) > 0 {
		title = strings.Join(s.Emojis, "") + " " + title
	}
	return title
}
