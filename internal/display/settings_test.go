/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package display

import (
	"errors"
	"testing"
	"time"

	"github.com/friendsincode/lineup/internal/timeslot"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func threeDays() Settings {
	return Default(date(2026, 5, 12), date(2026, 5, 14))
}

func TestDefaultIsValid(t *testing.T) {
	s := threeDays()
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := len(s.Days()); got != 3 {
		t.Errorf("Days = %d, want 3", got)
	}
	if s.Granularity() != 15 {
		t.Errorf("Granularity = %d, want 15", s.Granularity())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"end before start", func(s *Settings) { s.EndDate = date(2026, 5, 10) }},
		{"visible before schedule", func(s *Settings) { s.VisibleFrom = date(2026, 5, 11) }},
		{"visible after schedule", func(s *Settings) { s.VisibleTo = date(2026, 5, 15) }},
		{"visible inverted", func(s *Settings) { s.VisibleFrom, s.VisibleTo = s.VisibleTo, s.VisibleFrom }},
		{"empty day window", func(s *Settings) { s.DayEnd = s.DayStart }},
		{"day past midnight", func(s *Settings) { s.DayEnd = timeslot.MinutesPerDay + 1 }},
		{"visible time inverted", func(s *Settings) { s.VisibleStart, s.VisibleEnd = s.VisibleEnd, s.VisibleStart }},
		{"visible time outside day", func(s *Settings) { s.VisibleStart = s.DayStart - 60 }},
		{"zero granularity", func(s *Settings) { s.Zoom = 0 }},
		{"negative granularity", func(s *Settings) { s.Zoom = -5 }},
		{"odd granularity", func(s *Settings) { s.Zoom = 7 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := threeDays()
			tt.mutate(&s)
			if err := s.Validate(); !errors.Is(err, ErrInvalidSettings) {
				t.Fatalf("expected ErrInvalidSettings, got %v", err)
			}
		})
	}
}

func TestZoomSteps(t *testing.T) {
	s := threeDays()
	want := []Zoom{ZoomMedium, ZoomFine, ZoomFine}
	for i, w := range want {
		s = s.ZoomIn()
		if s.Zoom != w {
			t.Fatalf("ZoomIn step %d = %d, want %d", i, s.Zoom, w)
		}
	}
	want = []Zoom{ZoomMedium, ZoomCoarse, ZoomCoarse}
	for i, w := range want {
		s = s.ZoomOut()
		if s.Zoom != w {
			t.Fatalf("ZoomOut step %d = %d, want %d", i, s.Zoom, w)
		}
	}
}

func TestZoomChangesSlotCount(t *testing.T) {
	s := threeDays()
	s, err := s.SetVisibleTime(timeslot.MustClock("09:00"), timeslot.MustClock("10:00"))
	if err != nil {
		t.Fatalf("SetVisibleTime: %v", err)
	}
	day := date(2026, 5, 12)
	for _, tc := range []struct {
		zoom int
		want int
	}{{15, 4}, {10, 6}, {5, 12}} {
		z, err := s.SetZoom(tc.zoom)
		if err != nil {
			t.Fatalf("SetZoom(%d): %v", tc.zoom, err)
		}
		if got := len(z.Slots(day)); got != tc.want {
			t.Errorf("zoom %d: %d slots, want %d", tc.zoom, got, tc.want)
		}
	}
	if _, err := s.SetZoom(30); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("SetZoom(30): expected ErrInvalidSettings, got %v", err)
	}
}

func TestPanDaysClamps(t *testing.T) {
	s, err := threeDays().SetVisibleDays(date(2026, 5, 12), date(2026, 5, 13))
	if err != nil {
		t.Fatalf("SetVisibleDays: %v", err)
	}

	s = s.PanDays(1)
	if !s.VisibleFrom.Equal(date(2026, 5, 13)) || !s.VisibleTo.Equal(date(2026, 5, 14)) {
		t.Errorf("pan +1 = %v..%v", s.VisibleFrom, s.VisibleTo)
	}
	s = s.PanDays(5)
	if !s.VisibleTo.Equal(date(2026, 5, 14)) || len(s.VisibleDays()) != 2 {
		t.Errorf("pan past end = %v..%v", s.VisibleFrom, s.VisibleTo)
	}
	s = s.PanDays(-10)
	if !s.VisibleFrom.Equal(date(2026, 5, 12)) || len(s.VisibleDays()) != 2 {
		t.Errorf("pan before start = %v..%v", s.VisibleFrom, s.VisibleTo)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("panned settings invalid: %v", err)
	}
}

func TestSetVisibleTimeRejectsOutsideDay(t *testing.T) {
	if _, err := threeDays().SetVisibleTime(timeslot.MustClock("07:00"), timeslot.MustClock("09:00")); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestHourLabels(t *testing.T) {
	s, err := threeDays().SetVisibleTime(timeslot.MustClock("09:00"), timeslot.MustClock("12:00"))
	if err != nil {
		t.Fatal(err)
	}
	got := s.HourLabels()
	want := []string{"09:00", "10:00", "11:00", "12:00"}
	if len(got) != len(want) {
		t.Fatalf("labels = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("label %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestViewportChangesReturnCopies(t *testing.T) {
	s := threeDays()
	_ = s.ZoomIn()
	_ = s.PanDays(1)
	if s.Zoom != ZoomCoarse {
		t.Error("ZoomIn mutated the receiver")
	}
}
