/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package placement

import (
	"errors"
	"fmt"

	"github.com/friendsincode/lineup/internal/interval"
)

var (
	// ErrConflict means a placement would overlap another session on the same track.
	ErrConflict = errors.New("placement conflict")
	// ErrNotFound means a referenced session or track does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRange means a session interval does not start before it ends.
	ErrInvalidRange = interval.ErrInvalidRange
	// ErrSelfSwap means both sides of a swap name the same session.
	ErrSelfSwap = errors.New("cannot swap a session with itself")

	ErrTrackNotFound   = fmt.Errorf("track %w", ErrNotFound)
	ErrSessionNotFound = fmt.Errorf("session %w", ErrNotFound)
)

// ConflictError reports the session that blocks a placement.
type ConflictError struct {
	Candidate Session
	Existing  Session
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("session %q on track %q overlaps session %q (%s)",
		e.Candidate.ID, e.Candidate.TrackID, e.Existing.ID, e.Existing.Interval)
}

// Unwrap lets callers match with errors.Is(err, ErrConflict).
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
