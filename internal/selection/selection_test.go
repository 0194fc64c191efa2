/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package selection

import (
	"testing"
	"time"

	"github.com/friendsincode/lineup/internal/interval"
	"github.com/friendsincode/lineup/internal/timeslot"
)

func testSlots(t *testing.T) []interval.Interval {
	t.Helper()
	day := time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC)
	slots := timeslot.GenerateDaySlots(day, timeslot.MustClock("09:00"), timeslot.MustClock("10:00"), 15)
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	return slots
}

func TestGestureCommitsAnchorToHover(t *testing.T) {
	slots := testSlots(t)
	s := New()

	s.Start("a", slots[0])
	if s.State() != Anchored {
		t.Fatalf("state = %s, want anchored", s.State())
	}
	if s.IsSelected("a", slots[0]) {
		t.Error("anchored gesture must not highlight yet")
	}

	if !s.Hover("a", slots[2]) {
		t.Fatal("forward hover rejected")
	}
	if s.State() != Hovering {
		t.Fatalf("state = %s, want hovering", s.State())
	}
	for i, want := range []bool{true, true, true, false} {
		if got := s.IsSelected("a", slots[i]); got != want {
			t.Errorf("hovering: IsSelected(slot %d) = %v, want %v", i, got, want)
		}
	}

	res, ok := s.Commit()
	if !ok {
		t.Fatal("commit yielded nothing")
	}
	want := interval.Interval{Start: slots[0].Start, End: slots[2].End}
	if res.TrackID != "a" || !res.Interval.Equal(want) {
		t.Errorf("result = %+v, want a %v", res, want)
	}
	if s.State() != Committed {
		t.Fatalf("state = %s, want committed", s.State())
	}
	if !s.IsSelected("a", slots[1]) {
		t.Error("committed range must stay highlighted")
	}
	if s.IsSelected("b", slots[1]) {
		t.Error("other tracks are never highlighted")
	}
	if got, ok := s.Result(); !ok || !got.Interval.Equal(want) {
		t.Errorf("Result() = %+v, %v", got, ok)
	}
}

func TestCommitWithoutHoverUsesAnchor(t *testing.T) {
	slots := testSlots(t)
	s := New()
	s.Start("a", slots[1])

	res, ok := s.Commit()
	if !ok {
		t.Fatal("commit yielded nothing")
	}
	if !res.Interval.Equal(slots[1]) {
		t.Errorf("result = %v, want %v", res.Interval, slots[1])
	}
}

func TestHoverIgnored(t *testing.T) {
	slots := testSlots(t)

	tests := []struct {
		name  string
		track string
		slot  interval.Interval
	}{
		{name: "other track", track: "b", slot: slots[3]},
		{name: "backwards", track: "a", slot: slots[0]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.Start("a", slots[1])
			s.Hover("a", slots[2])

			if s.Hover(tt.track, tt.slot) {
				t.Fatal("hover should be ignored")
			}
			res, _ := s.Commit()
			if !res.Interval.End.Equal(slots[2].End) {
				t.Errorf("hover slot changed: end = %v", res.Interval.End)
			}
		})
	}
}

func TestHoverOnAnchorIsAccepted(t *testing.T) {
	slots := testSlots(t)
	s := New()
	s.Start("a", slots[1])
	if !s.Hover("a", slots[1]) {
		t.Fatal("hover on the anchor slot should be accepted")
	}
	if !s.IsSelected("a", slots[1]) {
		t.Error("anchor slot should be highlighted")
	}
}

func TestHoverAfterCommitIgnored(t *testing.T) {
	slots := testSlots(t)
	s := New()
	s.Start("a", slots[0])
	s.Commit()
	if s.Hover("a", slots[3]) {
		t.Fatal("hover after commit must be ignored")
	}
	res, _ := s.Result()
	if !res.Interval.Equal(slots[0]) {
		t.Errorf("committed range changed: %v", res.Interval)
	}
}

func TestHoverWithoutAnchorIgnored(t *testing.T) {
	slots := testSlots(t)
	s := New()
	if s.Hover("a", slots[0]) {
		t.Fatal("hover without anchor must be ignored")
	}
	if s.State() != Idle {
		t.Errorf("state = %s, want idle", s.State())
	}
}

func TestCommitWithoutAnchorResets(t *testing.T) {
	s := New()
	if _, ok := s.Commit(); ok {
		t.Fatal("commit without anchor must yield nothing")
	}
	if s.State() != Idle {
		t.Errorf("state = %s, want idle", s.State())
	}
}

func TestStartDiscardsPreviousGesture(t *testing.T) {
	slots := testSlots(t)
	s := New()
	s.Start("a", slots[0])
	s.Hover("a", slots[3])
	s.Commit()

	s.Start("b", slots[2])
	if s.State() != Anchored {
		t.Fatalf("state = %s, want anchored", s.State())
	}
	if s.IsSelected("a", slots[1]) {
		t.Error("previous gesture still highlighted")
	}
	track, anchor, ok := s.Anchor()
	if !ok || track != "b" || !anchor.Equal(slots[2]) {
		t.Errorf("anchor = %s %v %v", track, anchor, ok)
	}
}

func TestResetFromAnyState(t *testing.T) {
	slots := testSlots(t)
	steps := map[string]func(*Selection){
		"anchored":  func(s *Selection) { s.Start("a", slots[0]) },
		"hovering":  func(s *Selection) { s.Start("a", slots[0]); s.Hover("a", slots[1]) },
		"committed": func(s *Selection) { s.Start("a", slots[0]); s.Commit() },
	}
	for name, setup := range steps {
		t.Run(name, func(t *testing.T) {
			s := New()
			setup(s)
			s.Reset()
			if s.State() != Idle {
				t.Errorf("state = %s, want idle", s.State())
			}
			if _, ok := s.Result(); ok {
				t.Error("result survived reset")
			}
		})
	}
}

func TestSelectionsAreIndependent(t *testing.T) {
	slots := testSlots(t)
	one, two := New(), New()
	one.Start("a", slots[0])
	if two.State() != Idle {
		t.Fatal("selections share state")
	}
}
