/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package selection turns a pointer gesture over grid cells into a committed time range on
// one track. It never touches sessions; callers submit the result to the placement engine.
package selection

import (
	"github.com/friendsincode/lineup/internal/interval"
)

// State of a gesture.
type State string

const (
	Idle      State = "idle"
	Anchored  State = "anchored"
	Hovering  State = "hovering"
	Committed State = "committed"
)

// Result is the range produced by a committed gesture.
type Result struct {
	TrackID  string            `json:"track_id"`
	Interval interval.Interval `json:"interval"`
}

// Selection tracks a single gesture. The zero value is Idle and ready to use.
// It is not safe for concurrent use; one instance belongs to one view.
type Selection struct {
	anchorTrack string
	anchor      *interval.Interval
	hover       *interval.Interval
	committed   *interval.Interval
}

// New returns an idle selection.
func New() *Selection {
	return &Selection{}
}

// Start discards any previous gesture and anchors a new one.
func (s *Selection) Start(trackID string, slot interval.Interval) {
	s.Reset()
	s.anchorTrack = trackID
	s.anchor = &slot
}

// Hover extends the gesture to slot. Hovers on another track, before the anchor or after
// a commit are ignored. It reports whether the hover was accepted.
func (s *Selection) Hover(trackID string, slot interval.Interval) bool {
	if s.anchor == nil || s.committed != nil || trackID != s.anchorTrack {
		return false
	}
	if slot.Before(*s.anchor) {
		return false
	}
	s.hover = &slot
	return true
}

// Commit ends the gesture at the last accepted hover, or at the anchor when there was none.
// Without an anchor the selection resets and nothing is returned.
func (s *Selection) Commit() (Result, bool) {
	if s.anchor == nil {
		s.Reset()
		return Result{}, false
	}
	end := *s.anchor
	if s.hover != nil {
		end = *s.hover
	}
	s.hover = &end
	s.committed = &end
	return Result{
		TrackID:  s.anchorTrack,
		Interval: interval.Interval{Start: s.anchor.Start, End: end.End},
	}, true
}

// Result returns the committed range, if any.
func (s *Selection) Result() (Result, bool) {
	if s.committed == nil {
		return Result{}, false
	}
	return Result{
		TrackID:  s.anchorTrack,
		Interval: interval.Interval{Start: s.anchor.Start, End: s.committed.End},
	}, true
}

// IsSelected reports whether slot falls inside the highlighted range. Only Hovering and
// Committed selections highlight anything.
func (s *Selection) IsSelected(trackID string, slot interval.Interval) bool {
	if s.anchor == nil || trackID != s.anchorTrack {
		return false
	}
	end := s.committed
	if end == nil {
		end = s.hover
	}
	if end == nil {
		return false
	}
	span := interval.Interval{Start: s.anchor.Start, End: end.End}
	return span.Contains(slot)
}

// Reset returns to Idle.
func (s *Selection) Reset() {
	*s = Selection{}
}

// State returns the current state.
func (s *Selection) State() State {
	switch {
	case s.committed != nil:
		return Committed
	case s.hover != nil:
		return Hovering
	case s.anchor != nil:
		return Anchored
	default:
		return Idle
	}
}

// Anchor returns the anchored track and slot.
func (s *Selection) Anchor() (string, interval.Interval, bool) {
	if s.anchor == nil {
		return "", interval.Interval{}, false
	}
	return s.anchorTrack, *s.anchor, true
}
