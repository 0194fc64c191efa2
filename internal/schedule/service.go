/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule is the editor service. It keeps one placement engine per event in
// memory, persists every accepted change and announces it on the event bus.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/lineup/internal/display"
	"github.com/friendsincode/lineup/internal/events"
	"github.com/friendsincode/lineup/internal/interval"
	"github.com/friendsincode/lineup/internal/models"
	"github.com/friendsincode/lineup/internal/placement"
	"github.com/friendsincode/lineup/internal/selection"
	"github.com/friendsincode/lineup/internal/store"
	"github.com/friendsincode/lineup/internal/telemetry"
)

var (
	// ErrPersistence wraps storage failures. The in-memory schedule is unchanged when
	// it is returned.
	ErrPersistence = errors.New("persistence failure")
	// ErrProposalNotFound is returned for unknown proposals and proposals of other events.
	ErrProposalNotFound = store.ErrProposalNotFound
	// ErrInvalidTracks rejects track lists with blank names or duplicate ids.
	ErrInvalidTracks = errors.New("invalid track list")
)

// Persistence is the storage the service writes through.
type Persistence interface {
	LoadSchedule(ctx context.Context, eventID string) (*store.Schedule, error)
	SaveSessions(ctx context.Context, eventID string, sessions ...placement.Session) error
	DeleteSession(ctx context.Context, eventID, sessionID string) error
	SaveTracks(ctx context.Context, eventID string, tracks []placement.Track) error
	DeleteTrack(ctx context.Context, eventID, trackID string) error
	SaveDisplaySettings(ctx context.Context, eventID string, settings display.Settings) error
	GetProposal(ctx context.Context, proposalID string) (models.Proposal, error)
}

// Snapshot is a consistent copy of one schedule.
type Snapshot struct {
	Event    models.Event        `json:"event"`
	Tracks   []placement.Track   `json:"tracks"`
	Sessions []placement.Session `json:"sessions"`
	Display  display.Settings    `json:"display"`
}

// entry outlives cache invalidation so that its mutex keeps serializing commits on
// the event. A nil engine means the schedule must be reloaded.
type entry struct {
	mu      sync.Mutex
	event   models.Event
	engine  *placement.Engine
	display display.Settings
}

// Option configures a Service.
type Option func(*Service)

// WithNodeID sets the id stamped on published events.
func WithNodeID(id string) Option {
	return func(s *Service) { s.nodeID = id }
}

// WithIDGenerator overrides how session and track ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// Service coordinates the engine, persistence and event bus.
type Service struct {
	store  Persistence
	bus    events.Publisher
	logger zerolog.Logger
	nodeID string
	newID  func() string

	mu        sync.Mutex
	schedules map[string]*entry
	loaded    atomic.Int64
}

// NewService creates the editor service. bus may be nil.
func NewService(p Persistence, bus events.Publisher, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     p,
		bus:       bus,
		logger:    logger.With().Str("component", "schedule").Logger(),
		newID:     uuid.NewString,
		schedules: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NodeID returns the id stamped on published events.
func (s *Service) NodeID() string {
	return s.nodeID
}

// acquire returns the locked entry of an event, loading it from storage when it is
// not cached. Callers must call the returned unlock func.
func (s *Service) acquire(ctx context.Context, eventID string) (*entry, func(), error) {
	s.mu.Lock()
	e, ok := s.schedules[eventID]
	if !ok {
		e = &entry{}
		s.schedules[eventID] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	if e.engine != nil {
		return e, e.mu.Unlock, nil
	}

	sched, err := s.store.LoadSchedule(ctx, eventID)
	if err != nil {
		e.mu.Unlock()
		if errors.Is(err, placement.ErrNotFound) {
			s.forget(eventID, e)
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	engine := placement.New(placement.WithIDGenerator(s.newID))
	if err := engine.Load(sched.Tracks, sched.Sessions); err != nil {
		e.mu.Unlock()
		return nil, nil, fmt.Errorf("load schedule %s: %w", eventID, err)
	}
	e.event, e.engine, e.display = sched.Event, engine, sched.Display
	telemetry.CachedSchedules.Set(float64(s.loaded.Add(1)))
	s.logger.Debug().Str("event_id", eventID).Int("sessions", len(sched.Sessions)).Msg("schedule loaded")
	return e, e.mu.Unlock, nil
}

// forget removes the entry of an event that does not exist.
func (s *Service) forget(eventID string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedules[eventID] == e {
		delete(s.schedules, eventID)
	}
}

// drop discards the cached engine. Callers hold e.mu.
func (s *Service) drop(e *entry) {
	if e.engine == nil {
		return
	}
	e.engine = nil
	telemetry.CachedSchedules.Set(float64(s.loaded.Add(-1)))
}

// Invalidate drops the cached schedule of an event. The next call reloads it. It
// waits for a commit in flight on that event.
func (s *Service) Invalidate(eventID string) {
	s.mu.Lock()
	e, ok := s.schedules[eventID]
	s.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	s.drop(e)
	e.mu.Unlock()
}

// InvalidateAll drops every cached schedule.
func (s *Service) InvalidateAll() {
	s.mu.Lock()
	all := make([]*entry, 0, len(s.schedules))
	for _, e := range s.schedules {
		all = append(all, e)
	}
	s.mu.Unlock()
	for _, e := range all {
		e.mu.Lock()
		s.drop(e)
		e.mu.Unlock()
	}
}

// Snapshot returns the current schedule of an event.
func (s *Service) Snapshot(ctx context.Context, eventID string) (Snapshot, error) {
	e, unlock, err := s.acquire(ctx, eventID)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()
	return Snapshot{
		Event:    e.event,
		Tracks:   e.engine.Tracks(),
		Sessions: e.engine.Sessions(),
		Display:  e.display,
	}, nil
}

// Session returns one session.
func (s *Service) Session(ctx context.Context, eventID, sessionID string) (placement.Session, error) {
	e, unlock, err := s.acquire(ctx, eventID)
	if err != nil {
		return placement.Session{}, err
	}
	defer unlock()
	sess, ok := e.engine.Get(sessionID)
	if !ok {
		return placement.Session{}, placement.ErrSessionNotFound
	}
	return sess, nil
}

// Display returns the display settings of an event.
func (s *Service) Display(ctx context.Context, eventID string) (display.Settings, error) {
	e, unlock, err := s.acquire(ctx, eventID)
	if err != nil {
		return display.Settings{}, err
	}
	defer unlock()
	return e.display, nil
}

// CreateSession places a new session.
func (s *Service) CreateSession(ctx context.Context, eventID, trackID string, iv interval.Interval, payload placement.Payload) (placement.Session, error) {
	return s.add(ctx, "add", eventID, trackID, iv, payload)
}

// CreateFromSelection places a session over a committed grid selection.
func (s *Service) CreateFromSelection(ctx context.Context, eventID string, sel selection.Result, payload placement.Payload) (placement.Session, error) {
	return s.add(ctx, "add", eventID, sel.TrackID, sel.Interval, payload)
}

// CreateFromProposal places a session linked to a proposal of the same event. Title
// and language come from the proposal.
func (s *Service) CreateFromProposal(ctx context.Context, eventID, proposalID, trackID string, iv interval.Interval, payload placement.Payload) (placement.Session, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		if errors.Is(err, placement.ErrNotFound) {
			return placement.Session{}, ErrProposalNotFound
		}
		return placement.Session{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if p.EventID != eventID {
		return placement.Session{}, ErrProposalNotFound
	}
	payload.Title = p.Title
	payload.Language = p.Language
	id := p.ID
	payload.ProposalID = &id
	return s.add(ctx, "add_from_proposal", eventID, trackID, iv, payload)
}

func (s *Service) add(ctx context.Context, op, eventID, trackID string, iv interval.Interval, payload placement.Payload) (placement.Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "schedule."+op, eventID)
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	e, unlock, err := s.acquire(ctx, eventID)
	if err != nil {
		return placement.Session{}, err
	}
	defer unlock()

	change, err := e.engine.PlanAdd(trackID, iv, payload)
	if err != nil {
		s.reject(op, eventID, err)
		return placement.Session{}, err
	}
	if err = s.commit(ctx, op, e, change); err != nil {
		return placement.Session{}, err
	}

	created := change.Sessions[0]
	s.logger.Info().Str("event_id", eventID).Str("session_id", created.ID).Str("track_id", created.TrackID).Msg("session created")
	s.publish(events.EventSessionCreated, eventID, events.Payload{"session": created})
	return created, nil
}

// UpdateSession applies a partial update to a session.
func (s *Service) UpdateSession(ctx context.Context, eventID, sessionID string, patch placement.Patch) (placement.Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "schedule.update", eventID)
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	e, unlock, err := s.acquire(ctx, eventID)
	if err != nil {
		return placement.Session{}, err
	}
	defer unlock()

	change, err := e.engine.PlanUpdate(sessionID, patch)
	if err != nil {
		s.reject("update", eventID, err)
		return placement.Session{}, err
	}
	if err = s.commit(ctx, "update", e, change); err != nil {
		return placement.Session{}, err
	}

	updated := change.Sessions[0]
	s.logger.Info().Str("event_id", eventID).Str("session_id", updated.ID).Str("track_id", updated.TrackID).Msg("session updated")
	s.publish(events.EventSessionUpdated, eventID, events.Payload{"session": updated})
	return updated, nil
}

// SwapSessions exchanges the placement of two sessions.
func (s *Service) SwapSessions(ctx context.Context, eventID, idA, idB string) ([]placement.Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "schedule.swap", eventID)
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	e, unlock, err := s.acquire(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	change, err := e.engine.PlanSwap(idA, idB)
	if err != nil {
		s.reject("swap", eventID, err)
		return nil, err
	}
	if err = s.commit(ctx, "swap", e, change); err != nil {
		return nil, err
	}

	s.logger.Info().Str("event_id", eventID).Str("session_a", idA).Str("session_b", idB).Msg("sessions swapped")
	s.publish(events.EventSessionsSwapped, eventID, events.Payload{"sessions": change.Sessions})
	return change.Sessions, nil
}

// DeleteSession removes a session. Unknown sessions are ignored.
func (s *Service) DeleteSession(ctx context.Context, eventID, sessionID string) error {
	e, unlock, err := s.acquire(ctx, eventID)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := e.engine.Get(sessionID); !ok {
		return nil
	}
	if err := s.store.DeleteSession(ctx, eventID, sessionID); err != nil {
		telemetry.PlacementOperationsTotal.WithLabelValues("remove", "db_error").Inc()
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	e.engine.Remove(sessionID)
	telemetry.PlacementOperationsTotal.WithLabelValues("remove", "ok").Inc()

	s.logger.Info().Str("event_id", eventID).Str("session_id", sessionID).Msg("session deleted")
	s.publish(events.EventSessionDeleted, eventID, events.Payload{"session_id": sessionID})
	return nil
}

// SaveTracks replaces the track list. Tracks without an id get one. Sessions on
// tracks missing from the list are deleted and returned.
func (s *Service) SaveTracks(ctx context.Context, eventID string, tracks []placement.Track) ([]placement.Track, []placement.Session, error) {
	normalized := make([]placement.Track, 0, len(tracks))
	seen := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			return nil, nil, fmt.Errorf("%w: track name required", ErrInvalidTracks)
		}
		if t.ID == "" {
			t.ID = s.newID()
		}
		if _, dup := seen[t.ID]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate track id %s", ErrInvalidTracks, t.ID)
		}
		seen[t.ID] = struct{}{}
		normalized = append(normalized, t)
	}

	e, unlock, err := s.acquire(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	if err := s.store.SaveTracks(ctx, eventID, normalized); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	removed := e.engine.SetTracks(normalized)

	s.logger.Info().Str("event_id", eventID).Int("tracks", len(normalized)).Int("removed_sessions", len(removed)).Msg("tracks saved")
	s.publish(events.EventTracksUpdated, eventID, events.Payload{"tracks": normalized})
	return normalized, removed, nil
}

// DeleteTrack removes a track together with its sessions.
func (s *Service) DeleteTrack(ctx context.Context, eventID, trackID string) ([]placement.Session, error) {
	e, unlock, err := s.acquire(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !e.engine.HasTrack(trackID) {
		return nil, placement.ErrTrackNotFound
	}
	if err := s.store.DeleteTrack(ctx, eventID, trackID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	removed, err := e.engine.RemoveTrack(trackID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("event_id", eventID).Str("track_id", trackID).Int("removed_sessions", len(removed)).Msg("track deleted")
	s.publish(events.EventTrackDeleted, eventID, events.Payload{"track_id": trackID})
	return removed, nil
}

// UpdateDisplaySettings validates and stores new display settings. The schedule
// dates always come from the event.
func (s *Service) UpdateDisplaySettings(ctx context.Context, eventID string, settings display.Settings) (display.Settings, error) {
	e, unlock, err := s.acquire(ctx, eventID)
	if err != nil {
		return display.Settings{}, err
	}
	defer unlock()

	settings.StartDate = e.display.StartDate
	settings.EndDate = e.display.EndDate
	loc := e.event.Location()
	settings.VisibleFrom = display.Date(settings.VisibleFrom.In(loc))
	settings.VisibleTo = display.Date(settings.VisibleTo.In(loc))
	if err := settings.Validate(); err != nil {
		return display.Settings{}, err
	}
	if err := s.store.SaveDisplaySettings(ctx, eventID, settings); err != nil {
		return display.Settings{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	e.display = settings

	s.logger.Info().Str("event_id", eventID).Int("granularity", settings.Granularity()).Msg("display settings updated")
	s.publish(events.EventDisplayUpdated, eventID, events.Payload{"display": settings})
	return settings, nil
}

// commit persists a planned change and then applies it to the engine. Callers hold e.mu.
func (s *Service) commit(ctx context.Context, op string, e *entry, change placement.Change) error {
	if err := s.store.SaveSessions(ctx, e.event.ID, change.Sessions...); err != nil {
		telemetry.PlacementOperationsTotal.WithLabelValues(op, "db_error").Inc()
		s.logger.Error().Err(err).Str("event_id", e.event.ID).Str("op", op).Msg("persist change")
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := e.engine.Apply(change); err != nil {
		// Stored but not applied: the cached engine no longer matches storage.
		s.drop(e)
		telemetry.PlacementOperationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
		return err
	}
	telemetry.PlacementOperationsTotal.WithLabelValues(op, "ok").Inc()
	return nil
}

func (s *Service) reject(op, eventID string, err error) {
	telemetry.PlacementOperationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
	s.logger.Debug().Err(err).Str("event_id", eventID).Str("op", op).Msg("placement rejected")
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, placement.ErrConflict):
		return "conflict"
	case errors.Is(err, placement.ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, placement.ErrNotFound):
		return "not_found"
	case errors.Is(err, placement.ErrSelfSwap):
		return "self_swap"
	default:
		return "error"
	}
}

func (s *Service) publish(eventType events.EventType, eventID string, payload events.Payload) {
	if s.bus == nil {
		return
	}
	payload[events.KeyEventID] = eventID
	payload[events.KeyNodeID] = s.nodeID
	s.bus.Publish(eventType, payload)
}
