/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package display derives the rendered viewport of a schedule: which days, which time of
// day and which slot granularity. Nothing here touches sessions.
package display

import (
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/lineup/internal/interval"
	"github.com/friendsincode/lineup/internal/timeslot"
)

// ErrInvalidSettings is wrapped by every validation failure.
var ErrInvalidSettings = errors.New("invalid display settings")

// Zoom is the slot granularity in minutes.
type Zoom int

const (
	ZoomCoarse Zoom = 15
	ZoomMedium Zoom = 10
	ZoomFine   Zoom = 5
)

var zoomLevels = []Zoom{ZoomCoarse, ZoomMedium, ZoomFine}

// ParseZoom accepts a granularity in minutes.
func ParseZoom(minutes int) (Zoom, error) {
	for _, z := range zoomLevels {
		if int(z) == minutes {
			return z, nil
		}
	}
	return 0, fmt.Errorf("%w: unsupported granularity %d", ErrInvalidSettings, minutes)
}

// Settings is the viewport of one schedule.
type Settings struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	VisibleFrom time.Time `json:"visible_from"`
	VisibleTo   time.Time `json:"visible_to"`

	DayStart timeslot.Clock `json:"day_start"`
	DayEnd   timeslot.Clock `json:"day_end"`

	VisibleStart timeslot.Clock `json:"visible_start"`
	VisibleEnd   timeslot.Clock `json:"visible_end"`

	Zoom Zoom `json:"zoom"`
}

// Default shows every day of the schedule from 08:00 to 20:00 at coarse granularity.
func Default(start, end time.Time) Settings {
	start, end = Date(start), Date(end)
	return Settings{
		StartDate:    start,
		EndDate:      end,
		VisibleFrom:  start,
		VisibleTo:    end,
		DayStart:     8 * 60,
		DayEnd:       20 * 60,
		VisibleStart: 8 * 60,
		VisibleEnd:   20 * 60,
		Zoom:         ZoomCoarse,
	}
}

// Date truncates t to midnight in its own location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Validate checks the settings are internally consistent.
func (s Settings) Validate() error {
	if s.StartDate.IsZero() || s.EndDate.IsZero() {
		return fmt.Errorf("%w: schedule dates required", ErrInvalidSettings)
	}
	if s.EndDate.Before(s.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidSettings)
	}
	if s.VisibleTo.Before(s.VisibleFrom) {
		return fmt.Errorf("%w: visible day range inverted", ErrInvalidSettings)
	}
	if s.VisibleFrom.Before(s.StartDate) || s.VisibleTo.After(s.EndDate) {
		return fmt.Errorf("%w: visible days outside schedule", ErrInvalidSettings)
	}
	if s.DayStart < 0 || s.DayEnd > timeslot.MinutesPerDay || s.DayStart >= s.DayEnd {
		return fmt.Errorf("%w: day window %s-%s", ErrInvalidSettings, s.DayStart, s.DayEnd)
	}
	if s.VisibleStart >= s.VisibleEnd {
		return fmt.Errorf("%w: visible time window %s-%s", ErrInvalidSettings, s.VisibleStart, s.VisibleEnd)
	}
	if s.VisibleStart < s.DayStart || s.VisibleEnd > s.DayEnd {
		return fmt.Errorf("%w: visible time outside day window", ErrInvalidSettings)
	}
	if _, err := ParseZoom(int(s.Zoom)); err != nil {
		return err
	}
	return nil
}

// Granularity returns the slot length in minutes.
func (s Settings) Granularity() int {
	return int(s.Zoom)
}

// Days lists every date of the schedule.
func (s Settings) Days() []time.Time {
	return dateRange(s.StartDate, s.EndDate)
}

// VisibleDays lists the dates currently rendered.
func (s Settings) VisibleDays() []time.Time {
	return dateRange(s.VisibleFrom, s.VisibleTo)
}

func dateRange(from, to time.Time) []time.Time {
	var out []time.Time
	for d := Date(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// ZoomIn moves to the next finer granularity; the finest level stays put.
func (s Settings) ZoomIn() Settings {
	for i, z := range zoomLevels {
		if z == s.Zoom && i+1 < len(zoomLevels) {
			s.Zoom = zoomLevels[i+1]
			break
		}
	}
	return s
}

// ZoomOut moves to the next coarser granularity.
func (s Settings) ZoomOut() Settings {
	for i, z := range zoomLevels {
		if z == s.Zoom && i > 0 {
			s.Zoom = zoomLevels[i-1]
			break
		}
	}
	return s
}

// PanDays shifts the visible days by n, keeping the width and staying inside the schedule.
func (s Settings) PanDays(n int) Settings {
	width := daysBetween(s.VisibleFrom, s.VisibleTo)
	from := s.VisibleFrom.AddDate(0, 0, n)
	if from.Before(s.StartDate) {
		from = s.StartDate
	}
	if last := s.EndDate.AddDate(0, 0, -width); from.After(last) {
		from = last
	}
	s.VisibleFrom = from
	s.VisibleTo = from.AddDate(0, 0, width)
	return s
}

func daysBetween(from, to time.Time) int {
	n := 0
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

// SetVisibleDays narrows the rendered dates.
func (s Settings) SetVisibleDays(from, to time.Time) (Settings, error) {
	s.VisibleFrom, s.VisibleTo = Date(from), Date(to)
	return s, s.Validate()
}

// SetVisibleTime narrows the rendered time of day.
func (s Settings) SetVisibleTime(from, to timeslot.Clock) (Settings, error) {
	s.VisibleStart, s.VisibleEnd = from, to
	return s, s.Validate()
}

// SetZoom applies a granularity in minutes.
func (s Settings) SetZoom(minutes int) (Settings, error) {
	z, err := ParseZoom(minutes)
	if err != nil {
		return s, err
	}
	s.Zoom = z
	return s, nil
}

// Slots returns the selection cells of day at the current granularity.
func (s Settings) Slots(day time.Time) []interval.Interval {
	return timeslot.GenerateDaySlots(Date(day), s.VisibleStart, s.VisibleEnd, s.Granularity())
}

// HourLabels returns the hour gutter of the visible time window.
func (s Settings) HourLabels() []string {
	return timeslot.GenerateTimeLabels(s.VisibleStart, s.VisibleEnd, 60)
}

// Window returns the visible time window on day as an interval.
func (s Settings) Window(day time.Time) interval.Interval {
	d := Date(day)
	return interval.Interval{Start: s.VisibleStart.On(d), End: s.VisibleEnd.On(d)}
}
