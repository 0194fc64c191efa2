/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package placement owns the sessions of one schedule and keeps every track free of
// overlapping sessions.
package placement

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/lineup/internal/interval"
)

// Track is a parallel lane of the schedule, usually a room.
type Track struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Payload is the descriptive part of a session.
type Payload struct {
	Title      string   `json:"title"`
	Color      string   `json:"color"`
	Language   string   `json:"language"`
	Emojis     []string `json:"emojis"`
	ProposalID *string  `json:"proposal_id,omitempty"`
}

func (p Payload) clone() Payload {
	out := p
	if p.Emojis != nil {
		out.Emojis = slices.Clone(p.Emojis)
	}
	if p.ProposalID != nil {
		id := *p.ProposalID
		out.ProposalID = &id
	}
	return out
}

// Session is a timed item placed on a track.
type Session struct {
	ID       string            `json:"id"`
	TrackID  string            `json:"track_id"`
	Interval interval.Interval `json:"interval"`
	Payload
}

func (s Session) clone() Session {
	s.Payload = s.Payload.clone()
	return s
}

// Patch is a partial update; nil fields keep the current value. Interval replaces both
// endpoints. Otherwise Start alone moves the session keeping its duration and End alone
// keeps the start. Payload replaces the payload before the single field overrides apply.
type Patch struct {
	TrackID  *string
	Interval *interval.Interval
	Start    *time.Time
	End      *time.Time
	Payload  *Payload
	Title    *string
	Color    *string
	Language *string
	Emojis   *[]string
}

// apply merges p over s.
func (p Patch) apply(s Session) Session {
	if p.TrackID != nil {
		s.TrackID = *p.TrackID
	}
	switch {
	case p.Interval != nil:
		s.Interval = *p.Interval
	case p.Start != nil && p.End != nil:
		s.Interval = interval.Interval{Start: *p.Start, End: *p.End}
	case p.Start != nil:
		s.Interval = interval.Interval{Start: *p.Start, End: p.Start.Add(s.Interval.Duration())}
	case p.End != nil:
		s.Interval.End = *p.End
	}
	if p.Payload != nil {
		s.Payload = p.Payload.clone()
	}
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Color != nil {
		s.Color = *p.Color
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.Emojis != nil {
		s.Emojis = slices.Clone(*p.Emojis)
	}
	return s
}

// ChangeKind identifies what a planned Change does.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeUpdate ChangeKind = "update"
	ChangeSwap   ChangeKind = "swap"
)

// Change is a validated but uncommitted mutation. Sessions holds the resulting state of
// every session it touches.
type Change struct {
	Kind     ChangeKind
	Sessions []Session
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator overrides how new session ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// Engine is the single authority for the session list of one schedule.
type Engine struct {
	mu         sync.RWMutex
	trackOrder []string
	tracks     map[string]Track
	sessions   []Session
	newID      func() string
}

// New creates an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		tracks: make(map[string]Track),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load replaces the engine contents with persisted state. The state is rejected as a
// whole if any session references an unknown track, has an invalid range or overlaps
// another session on its track.
func (e *Engine) Load(tracks []Track, sessions []Session) error {
	fresh := New(WithIDGenerator(e.newID))
	fresh.setTracksLocked(tracks)
	for _, s := range sessions {
		if fresh.indexLocked(s.ID) >= 0 {
			return fmt.Errorf("load session %s: duplicate id", s.ID)
		}
		if err := fresh.validateLocked([]Session{s}); err != nil {
			return fmt.Errorf("load session %s: %w", s.ID, err)
		}
		fresh.sessions = append(fresh.sessions, s.clone())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.trackOrder = fresh.trackOrder
	e.tracks = fresh.tracks
	e.sessions = fresh.sessions
	return nil
}

// SetTracks replaces the track list. Sessions on tracks that disappear are removed and
// returned.
func (e *Engine) SetTracks(tracks []Track) []Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setTracksLocked(tracks)

	var removed []Session
	kept := e.sessions[:0]
	for _, s := range e.sessions {
		if _, ok := e.tracks[s.TrackID]; ok {
			kept = append(kept, s)
		} else {
			removed = append(removed, s)
		}
	}
	e.sessions = kept
	return removed
}

func (e *Engine) setTracksLocked(tracks []Track) {
	e.tracks = make(map[string]Track, len(tracks))
	e.trackOrder = make([]string, 0, len(tracks))
	for _, t := range tracks {
		if _, dup := e.tracks[t.ID]; dup {
			continue
		}
		e.tracks[t.ID] = t
		e.trackOrder = append(e.trackOrder, t.ID)
	}
}

// RemoveTrack deletes a track together with its sessions and returns the removed sessions.
func (e *Engine) RemoveTrack(trackID string) ([]Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tracks[trackID]; !ok {
		return nil, ErrTrackNotFound
	}
	delete(e.tracks, trackID)
	e.trackOrder = slices.DeleteFunc(e.trackOrder, func(id string) bool { return id == trackID })

	var removed []Session
	kept := e.sessions[:0]
	for _, s := range e.sessions {
		if s.TrackID == trackID {
			removed = append(removed, s)
			continue
		}
		kept = append(kept, s)
	}
	e.sessions = kept
	return removed, nil
}

// Tracks returns the tracks in configured order.
func (e *Engine) Tracks() []Track {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Track, 0, len(e.trackOrder))
	for _, id := range e.trackOrder {
		out = append(out, e.tracks[id])
	}
	return out
}

// HasTrack reports whether trackID is known.
func (e *Engine) HasTrack(trackID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.tracks[trackID]
	return ok
}

// Add places a new session. It fails with ErrInvalidRange, ErrTrackNotFound or a
// *ConflictError and leaves the engine untouched in that case.
func (e *Engine) Add(trackID string, iv interval.Interval, payload Payload) (Session, error) {
	change, err := e.PlanAdd(trackID, iv, payload)
	if err != nil {
		return Session{}, err
	}
	if err := e.Apply(change); err != nil {
		return Session{}, err
	}
	return change.Sessions[0], nil
}

// Update merges patch over the session and re-validates it against the other sessions of
// its (possibly new) track. A session never conflicts with itself.
func (e *Engine) Update(sessionID string, patch Patch) (Session, error) {
	change, err := e.PlanUpdate(sessionID, patch)
	if err != nil {
		return Session{}, err
	}
	if err := e.Apply(change); err != nil {
		return Session{}, err
	}
	return change.Sessions[0], nil
}

// Swap exchanges the track and interval of two sessions. Either both move or neither does.
func (e *Engine) Swap(idA, idB string) (Session, Session, error) {
	change, err := e.PlanSwap(idA, idB)
	if err != nil {
		return Session{}, Session{}, err
	}
	if err := e.Apply(change); err != nil {
		return Session{}, Session{}, err
	}
	return change.Sessions[0], change.Sessions[1], nil
}

// PlanAdd validates an Add without committing it.
func (e *Engine) PlanAdd(trackID string, iv interval.Interval, payload Payload) (Change, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	candidate := Session{
		ID:       e.newID(),
		TrackID:  trackID,
		Interval: iv,
		Payload:  payload.clone(),
	}
	if err := e.validateLocked([]Session{candidate}); err != nil {
		return Change{}, err
	}
	return Change{Kind: ChangeAdd, Sessions: []Session{candidate}}, nil
}

// PlanUpdate validates an Update without committing it.
func (e *Engine) PlanUpdate(sessionID string, patch Patch) (Change, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	idx := e.indexLocked(sessionID)
	if idx < 0 {
		return Change{}, ErrSessionNotFound
	}
	candidate := patch.apply(e.sessions[idx].clone())
	if err := e.validateLocked([]Session{candidate}); err != nil {
		return Change{}, err
	}
	return Change{Kind: ChangeUpdate, Sessions: []Session{candidate}}, nil
}

// PlanSwap validates a Swap without committing it.
func (e *Engine) PlanSwap(idA, idB string) (Change, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ia, ib := e.indexLocked(idA), e.indexLocked(idB)
	if ia < 0 || ib < 0 {
		return Change{}, ErrSessionNotFound
	}
	if ia == ib {
		return Change{}, fmt.Errorf("%w: %s", ErrSelfSwap, idA)
	}
	a, b := e.sessions[ia].clone(), e.sessions[ib].clone()
	a.TrackID, b.TrackID = b.TrackID, a.TrackID
	a.Interval, b.Interval = b.Interval, a.Interval

	if err := e.validateLocked([]Session{a, b}); err != nil {
		return Change{}, err
	}
	return Change{Kind: ChangeSwap, Sessions: []Session{a, b}}, nil
}

// Apply commits a planned change after re-validating it against the current state.
func (e *Engine) Apply(c Change) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(c.Sessions) == 0 {
		return nil
	}
	for _, s := range c.Sessions {
		exists := e.indexLocked(s.ID) >= 0
		if c.Kind == ChangeAdd && exists {
			return fmt.Errorf("session %s already placed", s.ID)
		}
		if c.Kind != ChangeAdd && !exists {
			return ErrSessionNotFound
		}
	}
	if err := e.validateLocked(c.Sessions); err != nil {
		return err
	}

	for _, s := range c.Sessions {
		if idx := e.indexLocked(s.ID); idx >= 0 {
			e.sessions[idx] = s.clone()
		} else {
			e.sessions = append(e.sessions, s.clone())
		}
	}
	return nil
}

// Remove deletes a session. Unknown ids are ignored.
func (e *Engine) Remove(sessionID string) (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.indexLocked(sessionID)
	if idx < 0 {
		return Session{}, false
	}
	removed := e.sessions[idx]
	e.sessions = slices.Delete(e.sessions, idx, idx+1)
	return removed, true
}

// Get returns a session by id.
func (e *Engine) Get(sessionID string) (Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx := e.indexLocked(sessionID)
	if idx < 0 {
		return Session{}, false
	}
	return e.sessions[idx].clone(), true
}

// Query returns the session on trackID that starts exactly at iv.Start.
func (e *Engine) Query(trackID string, iv interval.Interval) (Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, s := range e.sessions {
		if s.TrackID == trackID && s.Interval.Start.Equal(iv.Start) {
			return s.clone(), true
		}
	}
	return Session{}, false
}

// Covers reports whether some session on trackID fully contains iv.
func (e *Engine) Covers(trackID string, iv interval.Interval) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, s := range e.sessions {
		if s.TrackID == trackID && s.Interval.Contains(iv) {
			return true
		}
	}
	return false
}

// Sessions returns a snapshot of all sessions in insertion order.
func (e *Engine) Sessions() []Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Session, len(e.sessions))
	for i, s := range e.sessions {
		out[i] = s.clone()
	}
	return out
}

// SessionsOnTrack returns the sessions of a track ordered by start.
func (e *Engine) SessionsOnTrack(trackID string) []Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Session
	for _, s := range e.sessions {
		if s.TrackID == trackID {
			out = append(out, s.clone())
		}
	}
	slices.SortFunc(out, func(a, b Session) int {
		return a.Interval.Start.Compare(b.Interval.Start)
	})
	return out
}

func (e *Engine) indexLocked(sessionID string) int {
	for i, s := range e.sessions {
		if s.ID == sessionID {
			return i
		}
	}
	return -1
}

// validateLocked checks candidates in three independent steps: range, track, overlap.
// Sessions listed in candidates are excluded from the existing set, so a session never
// collides with its own previous placement and swap partners do not block each other.
func (e *Engine) validateLocked(candidates []Session) error {
	for _, c := range candidates {
		if !c.Interval.Valid() {
			return fmt.Errorf("session %s: %w", c.ID, ErrInvalidRange)
		}
	}
	for _, c := range candidates {
		if _, ok := e.tracks[c.TrackID]; !ok {
			return fmt.Errorf("%w: %s", ErrTrackNotFound, c.TrackID)
		}
	}

	skip := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		skip[c.ID] = struct{}{}
	}
	for i, c := range candidates {
		for _, other := range e.sessions {
			if _, ok := skip[other.ID]; ok {
				continue
			}
			if other.TrackID == c.TrackID && other.Interval.Overlaps(c.Interval) {
				return &ConflictError{Candidate: c, Existing: other.clone()}
			}
		}
		for _, other := range candidates[i+1:] {
			if other.TrackID == c.TrackID && other.Interval.Overlaps(c.Interval) {
				return &ConflictError{Candidate: c, Existing: other}
			}
		}
	}
	return nil
}
