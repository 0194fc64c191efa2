/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeslot

import (
	"reflect"
	"testing"
	"time"
)

var day = time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC)

func at(hhmm string) time.Time {
	return MustClock(hhmm).On(day)
}

func TestGenerateTimeSlotsDropsTrailingPartialSlot(t *testing.T) {
	slots := GenerateTimeSlots(at("09:00"), at("09:12"), 5)
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2: %v", len(slots), slots)
	}
	want := []string{"09:00 - 09:05", "09:05 - 09:10"}
	for i, slot := range slots {
		if got := FormatTimeSlot(slot); got != want[i] {
			t.Errorf("slot %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestGenerateTimeSlotsAligned(t *testing.T) {
	slots := GenerateTimeSlots(at("10:00"), at("11:00"), 15)
	if len(slots) != 4 {
		t.Fatalf("got %d slots, want 4", len(slots))
	}
	if !slots[3].End.Equal(at("11:00")) {
		t.Errorf("last slot ends at %s, want 11:00", FormatTime(slots[3].End))
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i-1].End.Equal(slots[i].Start) {
			t.Errorf("slots %d and %d are not contiguous", i-1, i)
		}
	}
}

func TestGenerateTimeSlotsDegenerateWindows(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		step       int
	}{
		{name: "zero step", start: at("09:00"), end: at("10:00"), step: 0},
		{name: "negative step", start: at("09:00"), end: at("10:00"), step: -5},
		{name: "empty window", start: at("09:00"), end: at("09:00"), step: 5},
		{name: "inverted window", start: at("10:00"), end: at("09:00"), step: 5},
		{name: "step wider than window", start: at("09:00"), end: at("09:04"), step: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateTimeSlots(tt.start, tt.end, tt.step); len(got) != 0 {
				t.Errorf("expected no slots, got %v", got)
			}
		})
	}
}

func TestGenerateTimeLabels(t *testing.T) {
	got := GenerateTimeLabels(MustClock("09:00"), MustClock("10:00"), 20)
	want := []string{"09:00", "09:20", "09:40", "10:00"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("labels = %v, want %v", got, want)
	}

	// Minute overflow carries into the hour.
	got = GenerateTimeLabels(MustClock("09:50"), MustClock("10:10"), 15)
	want = []string{"09:50", "10:05"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("labels = %v, want %v", got, want)
	}
}

func TestGenerateTimeLabelsAcrossMidnightIsEmpty(t *testing.T) {
	got := GenerateTimeLabels(MustClock("23:50"), MustClock("00:10"), 10)
	if len(got) != 0 {
		t.Errorf("cross-midnight window should yield no labels, got %v", got)
	}
	if got := GenerateDaySlots(day, MustClock("23:00"), MustClock("01:00"), 10); len(got) != 0 {
		t.Errorf("cross-midnight window should yield no slots, got %d", len(got))
	}
}

func TestExtractTimeSlots(t *testing.T) {
	slots := GenerateDaySlots(day, MustClock("09:00"), MustClock("10:00"), 15)

	got := ExtractTimeSlots(slots, at("09:15"), at("09:45"))
	if len(got) != 2 {
		t.Fatalf("got %d slots, want 2", len(got))
	}
	if FormatTimeSlot(got[0]) != "09:15 - 09:30" || FormatTimeSlot(got[1]) != "09:30 - 09:45" {
		t.Errorf("unexpected slots %v", got)
	}

	// Ranges cutting through a slot exclude it.
	if got := ExtractTimeSlots(slots, at("09:10"), at("09:40")); len(got) != 1 {
		t.Errorf("got %d slots, want 1", len(got))
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:05", want: 545},
		{in: "24:00", want: MinutesPerDay},
		{in: "24:01", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "-1:00", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestClockOnEndOfDay(t *testing.T) {
	end := MustClock("24:00").On(day)
	if !end.Equal(day.Add(24 * time.Hour)) {
		t.Errorf("24:00 should anchor at next midnight, got %s", end)
	}
	if ClockOf(at("13:45")) != MustClock("13:45") {
		t.Error("ClockOf should invert On")
	}
}
