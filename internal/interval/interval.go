/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package interval provides the time interval value used across the schedule builder.
package interval

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange is returned when an interval does not start strictly before it ends.
var ErrInvalidRange = errors.New("invalid range: start must be before end")

// Interval is a half-open span of time [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds an interval, rejecting empty or inverted ranges.
func New(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if !iv.Valid() {
		return Interval{}, fmt.Errorf("%w (%s >= %s)", ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return iv, nil
}

// Valid reports whether Start is strictly before End.
func (iv Interval) Valid() bool {
	return iv.Start.Before(iv.End)
}

// Duration returns the length of the interval.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Equal reports whether both endpoints are the same instant.
func (iv Interval) Equal(other Interval) bool {
	return iv.Start.Equal(other.Start) && iv.End.Equal(other.End)
}

// Before reports whether iv starts strictly before other.
func (iv Interval) Before(other Interval) bool {
	return iv.Start.Before(other.Start)
}

// After reports whether iv starts strictly after other.
func (iv Interval) After(other Interval) bool {
	return other.Before(iv)
}

// Overlaps reports whether the intervals share any instant.
// Touching endpoints are not an overlap, so back-to-back intervals are allowed.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether inner lies within iv, boundaries included.
func (iv Interval) Contains(inner Interval) bool {
	return !inner.Start.Before(iv.Start) && !iv.End.Before(inner.End)
}

// Span returns [first.Start, last.End]. It fails when last ends at or before first starts.
func Span(first, last Interval) (Interval, error) {
	return New(first.Start, last.End)
}

func (iv Interval) String() string {
	return fmt.Sprintf("%s/%s", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
}
