/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timeslot generates the discrete time cells of the schedule grid.
package timeslot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/lineup/internal/interval"
)

// MinutesPerDay bounds a Clock value; 24:00 is accepted as an end-of-day marker.
const MinutesPerDay = 24 * 60

// Clock is a wall-clock time of day expressed in minutes from midnight.
type Clock int

// ParseClock parses "HH:MM" (00:00 through 24:00).
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time %q: out of range", s)
	}
	return Clock(h*60 + m), nil
}

// MustClock is ParseClock for constants and tests.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns the wall-clock time of day of t.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

// On anchors the clock on the calendar day of day, in day's location.
func (c Clock) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, day.Location())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// GenerateTimeLabels walks from start to end inclusive in step-minute increments.
// A window whose end precedes its start (for example one crossing midnight) yields
// no labels. A non-positive step also yields none; callers validate it beforehand.
func GenerateTimeLabels(start, end Clock, stepMinutes int) []string {
	if stepMinutes <= 0 || start > end {
		return []string{}
	}
	labels := make([]string, 0, int(end-start)/stepMinutes+1)
	for c := start; c <= end; c += Clock(stepMinutes) {
		labels = append(labels, c.String())
	}
	return labels
}

// GenerateTimeSlots splits [start, end] into step-minute slots.
// A trailing slot that would run past end is dropped, never truncated.
func GenerateTimeSlots(start, end time.Time, stepMinutes int) []interval.Interval {
	if stepMinutes <= 0 || !start.Before(end) {
		return []interval.Interval{}
	}
	step := time.Duration(stepMinutes) * time.Minute
	slots := make([]interval.Interval, 0, int(end.Sub(start)/step))
	for s := start; !s.Add(step).After(end); s = s.Add(step) {
		slots = append(slots, interval.Interval{Start: s, End: s.Add(step)})
	}
	return slots
}

// GenerateDaySlots is GenerateTimeSlots over a time-of-day window on a given day.
func GenerateDaySlots(day time.Time, start, end Clock, stepMinutes int) []interval.Interval {
	if start > end {
		return []interval.Interval{}
	}
	return GenerateTimeSlots(start.On(day), end.On(day), stepMinutes)
}

// ExtractTimeSlots keeps the slots lying within [rangeStart, rangeEnd], boundaries included.
func ExtractTimeSlots(slots []interval.Interval, rangeStart, rangeEnd time.Time) []interval.Interval {
	window := interval.Interval{Start: rangeStart, End: rangeEnd}
	out := make([]interval.Interval, 0, len(slots))
	for _, slot := range slots {
		if window.Contains(slot) {
			out = append(out, slot)
		}
	}
	return out
}

// FormatTime renders t as "HH:MM".
func FormatTime(t time.Time) string {
	return t.Format("15:04")
}

// FormatTimeSlot renders a slot as "HH:MM - HH:MM".
func FormatTimeSlot(slot interval.Interval) string {
	return FormatTime(slot.Start) + " - " + FormatTime(slot.End)
}
