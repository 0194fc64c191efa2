/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package interval

import (
	"errors"
	"testing"
	"time"
)

var base = time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC)

func mins(start, end int) Interval {
	return Interval{
		Start: base.Add(time.Duration(start) * time.Minute),
		End:   base.Add(time.Duration(end) * time.Minute),
	}
}

func TestOverlapsBoundaries(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{name: "adjacent is not overlap", a: mins(0, 60), b: mins(60, 120), want: false},
		{name: "one minute overlap", a: mins(0, 60), b: mins(59, 120), want: true},
		{name: "identical", a: mins(0, 60), b: mins(0, 60), want: true},
		{name: "nested", a: mins(0, 120), b: mins(30, 60), want: true},
		{name: "disjoint", a: mins(0, 30), b: mins(90, 120), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("a.Overlaps(b) = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("b.Overlaps(a) = %v, want %v (must be symmetric)", got, tt.want)
			}
		})
	}
}

func TestContainsIsInclusive(t *testing.T) {
	outer := mins(60, 120)

	if !outer.Contains(mins(60, 120)) {
		t.Error("interval should contain itself")
	}
	if !outer.Contains(mins(60, 65)) {
		t.Error("expected containment at the start boundary")
	}
	if !outer.Contains(mins(115, 120)) {
		t.Error("expected containment at the end boundary")
	}
	if outer.Contains(mins(55, 65)) {
		t.Error("interval starting earlier must not be contained")
	}
	if outer.Contains(mins(115, 125)) {
		t.Error("interval ending later must not be contained")
	}
}

func TestOrdering(t *testing.T) {
	a := mins(0, 5)
	b := mins(5, 10)

	if !a.Before(b) || b.Before(a) {
		t.Error("expected a before b only")
	}
	if !b.After(a) || a.After(b) {
		t.Error("expected b after a only")
	}
	if a.Before(a) || a.After(a) {
		t.Error("an interval is neither before nor after itself")
	}
	if !a.Equal(mins(0, 5)) || a.Equal(b) {
		t.Error("equality must compare both endpoints")
	}
}

func TestNewRejectsInvertedAndEmpty(t *testing.T) {
	if _, err := New(base, base); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for empty interval, got %v", err)
	}
	if _, err := New(base.Add(time.Hour), base); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for inverted interval, got %v", err)
	}
	iv, err := New(base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if iv.Duration() != time.Hour {
		t.Errorf("Duration() = %v, want 1h", iv.Duration())
	}
}

func TestSpan(t *testing.T) {
	got, err := Span(mins(0, 5), mins(10, 15))
	if err != nil {
		t.Fatalf("Span: %v", err)
	}
	if !got.Equal(mins(0, 15)) {
		t.Errorf("Span = %v, want %v", got, mins(0, 15))
	}

	// A single slot spans itself.
	got, err = Span(mins(0, 5), mins(0, 5))
	if err != nil || !got.Equal(mins(0, 5)) {
		t.Errorf("Span(single) = %v, %v", got, err)
	}

	if _, err := Span(mins(10, 15), mins(0, 5)); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange for backwards span, got %v", err)
	}
}
