/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/friendsincode/lineup/internal/display"
	"github.com/friendsincode/lineup/internal/interval"
	"github.com/friendsincode/lineup/internal/placement"
	"github.com/friendsincode/lineup/internal/timeslot"
)

// Cell is one selectable slot of one track.
type Cell struct {
	Slot      interval.Interval `json:"slot"`
	Label     string            `json:"label"`
	SessionID string            `json:"session_id,omitempty"`
	Starts    bool              `json:"starts,omitempty"`  // the session begins in this slot
	Covered   bool              `json:"covered,omitempty"` // the session spans the whole slot
}

// GridTrack is the column of one track.
type GridTrack struct {
	Track placement.Track `json:"track"`
	Cells []Cell          `json:"cells"`
}

// Span is the visible part of one session on the grid.
type Span struct {
	SessionID string              `json:"session_id"`
	TrackID   string              `json:"track_id"`
	Label     string              `json:"label"` // full time range, "HH:MM - HH:MM"
	Slots     []interval.Interval `json:"slots"`
	Clipped   bool                `json:"clipped,omitempty"` // runs past the visible window
}

// Grid is the rendered day view of a schedule.
type Grid struct {
	Day         time.Time                    `json:"day"`
	Window      interval.Interval            `json:"window"`
	Granularity int                          `json:"granularity"`
	HourLabels  []string                     `json:"hour_labels"`
	Slots       []interval.Interval          `json:"slots"`
	Tracks      []GridTrack                  `json:"tracks"`
	Sessions    map[string]placement.Session `json:"sessions"`
	Spans       []Span                       `json:"spans"`
}

// Grid lays the sessions of day out over the visible slots of every track. day is
// interpreted in the event timezone.
func (s *Service) Grid(ctx context.Context, eventID string, day time.Time) (Grid, error) {
	e, unlock, err := s.acquire(ctx, eventID)
	if err != nil {
		return Grid{}, err
	}
	defer unlock()

	loc := e.event.Location()
	y, m, d := day.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if date.Before(e.display.StartDate) || date.After(e.display.EndDate) {
		return Grid{}, fmt.Errorf("%w: day %s outside schedule", display.ErrInvalidSettings, date.Format(time.DateOnly))
	}

	slots := e.display.Slots(date)
	g := Grid{
		Day:         date,
		Window:      e.display.Window(date),
		Granularity: e.display.Granularity(),
		HourLabels:  e.display.HourLabels(),
		Slots:       slots,
		Sessions:    make(map[string]placement.Session),
	}
	for _, t := range e.engine.Tracks() {
		g.Tracks = append(g.Tracks, GridTrack{Track: t, Cells: cells(e.engine, t.ID, slots, g.Sessions)})
		for _, sess := range e.engine.SessionsOnTrack(t.ID) {
			if _, ok := g.Sessions[sess.ID]; ok {
				g.Spans = append(g.Spans, span(sess, g.Window, slots))
			}
		}
	}
	return g, nil
}

// span lists the slots a session fully covers inside window.
func span(sess placement.Session, window interval.Interval, slots []interval.Interval) Span {
	start, end := sess.Interval.Start, sess.Interval.End
	clipped := false
	if start.Before(window.Start) {
		start, clipped = window.Start, true
	}
	if end.After(window.End) {
		end, clipped = window.End, true
	}
	return Span{
		SessionID: sess.ID,
		TrackID:   sess.TrackID,
		Label:     timeslot.FormatTimeSlot(sess.Interval),
		Slots:     timeslot.ExtractTimeSlots(slots, start, end),
		Clipped:   clipped,
	}
}

func cells(engine *placement.Engine, trackID string, slots []interval.Interval, seen map[string]placement.Session) []Cell {
	sessions := engine.SessionsOnTrack(trackID)
	cells := make([]Cell, len(slots))
	next := 0
	for i, slot := range slots {
		cells[i] = Cell{Slot: slot, Label: timeslot.FormatTime(slot.Start)}
		for next < len(sessions) && !sessions[next].Interval.End.After(slot.Start) {
			next++
		}
		if next == len(sessions) || !sessions[next].Interval.Overlaps(slot) {
			continue
		}
		sess := sessions[next]
		cells[i].SessionID = sess.ID
		// A session already running when the window opens starts in the first cell.
		cells[i].Starts = !sess.Interval.Start.Before(slot.Start) || i == 0
		cells[i].Covered = engine.Covers(trackID, slot)
		seen[sess.ID] = sess
	}
	return cells
}
