/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store persists schedules with gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/lineup/internal/display"
	"github.com/friendsincode/lineup/internal/interval"
	"github.com/friendsincode/lineup/internal/models"
	"github.com/friendsincode/lineup/internal/placement"
	"github.com/friendsincode/lineup/internal/timeslot"
)

var (
	ErrEventNotFound    = fmt.Errorf("event %w", placement.ErrNotFound)
	ErrProposalNotFound = fmt.Errorf("proposal %w", placement.ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", placement.ErrNotFound)
	ErrInvalidEvent     = errors.New("invalid event")
)

// Schedule is everything the editor needs to rebuild one event's engine.
type Schedule struct {
	Event    models.Event
	Tracks   []placement.Track
	Sessions []placement.Session
	Display  display.Settings
}

// Store implements schedule persistence on a gorm database.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New creates a store.
func New(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger.With().Str("component", "store").Logger()}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// LoadSchedule reads the tracks, sessions and display settings of an event.
func (s *Store) LoadSchedule(ctx context.Context, eventID string) (*Schedule, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	loc := event.Location()

	var tracks []models.Track
	if err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("position ASC").Order("name ASC").
		Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("load tracks: %w", err)
	}

	var sessions []models.Session
	if err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("starts_at ASC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	var row models.DisplaySettings
	settings := defaultDisplay(event)
	err = s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&row).Error
	switch {
	case err == nil:
		settings = displayFromModel(row, event)
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("load display settings: %w", err)
	}

	sched := &Schedule{
		Event:    event,
		Tracks:   make([]placement.Track, 0, len(tracks)),
		Sessions: make([]placement.Session, 0, len(sessions)),
		Display:  settings,
	}
	for _, t := range tracks {
		sched.Tracks = append(sched.Tracks, placement.Track{ID: t.ID, Name: t.Name})
	}
	for _, m := range sessions {
		sched.Sessions = append(sched.Sessions, sessionFromModel(m, loc))
	}
	return sched, nil
}

// SaveSessions upserts sessions in one transaction, so a swap is stored atomically.
func (s *Store) SaveSessions(ctx context.Context, eventID string, sessions ...placement.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	rows := make([]models.Session, 0, len(sessions))
	for _, sess := range sessions {
		rows = append(rows, sessionToModel(eventID, sess))
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&rows[i]).Error; err != nil {
				return fmt.Errorf("save session %s: %w", rows[i].ID, err)
			}
		}
		return nil
	})
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (s *Store) DeleteSession(ctx context.Context, eventID, sessionID string) error {
	if err := s.db.WithContext(ctx).
		Where("event_id = ? AND id = ?", eventID, sessionID).
		Delete(&models.Session{}).Error; err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// SaveTracks replaces the track list of an event. Tracks missing from the list are
// deleted together with their sessions.
func (s *Store) SaveTracks(ctx context.Context, eventID string, tracks []placement.Track) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keep := make([]string, 0, len(tracks))
		for i, t := range tracks {
			row := models.Track{ID: t.ID, EventID: eventID, Name: t.Name, Position: i}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "position", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return fmt.Errorf("save track %s: %w", t.ID, err)
			}
			keep = append(keep, t.ID)
		}

		sessions := tx.Where("event_id = ?", eventID)
		stale := tx.Where("event_id = ?", eventID)
		if len(keep) > 0 {
			sessions = sessions.Where("track_id NOT IN ?", keep)
			stale = stale.Where("id NOT IN ?", keep)
		}
		if err := sessions.Delete(&models.Session{}).Error; err != nil {
			return fmt.Errorf("delete sessions of removed tracks: %w", err)
		}
		if err := stale.Delete(&models.Track{}).Error; err != nil {
			return fmt.Errorf("delete removed tracks: %w", err)
		}
		return nil
	})
}

// DeleteTrack removes a track and its sessions.
func (s *Store) DeleteTrack(ctx context.Context, eventID, trackID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ? AND track_id = ?", eventID, trackID).
			Delete(&models.Session{}).Error; err != nil {
			return fmt.Errorf("delete sessions of track %s: %w", trackID, err)
		}
		if err := tx.Where("event_id = ? AND id = ?", eventID, trackID).
			Delete(&models.Track{}).Error; err != nil {
			return fmt.Errorf("delete track %s: %w", trackID, err)
		}
		return nil
	})
}

// SaveDisplaySettings stores the viewport of an event.
func (s *Store) SaveDisplaySettings(ctx context.Context, eventID string, settings display.Settings) error {
	row := displayToModel(eventID, settings)
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		UpdateAll: true,
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("save display settings: %w", err)
	}
	return nil
}

// ListEvents returns every event ordered by start date.
func (s *Store) ListEvents(ctx context.Context) ([]models.Event, error) {
	var out []models.Event
	if err := s.db.WithContext(ctx).Order("start_date ASC").Order("name ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	for i := range out {
		normalizeEvent(&out[i])
	}
	return out, nil
}

// GetEvent loads one event.
func (s *Store) GetEvent(ctx context.Context, eventID string) (models.Event, error) {
	var event models.Event
	err := s.db.WithContext(ctx).Where("id = ?", eventID).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Event{}, ErrEventNotFound
	}
	if err != nil {
		return models.Event{}, fmt.Errorf("get event %s: %w", eventID, err)
	}
	normalizeEvent(&event)
	return event, nil
}

// CreateEvent stores a new event with default display settings. An empty ID is
// replaced by a fresh uuid.
func (s *Store) CreateEvent(ctx context.Context, event models.Event) (models.Event, error) {
	if strings.TrimSpace(event.Name) == "" {
		return models.Event{}, fmt.Errorf("%w: name required", ErrInvalidEvent)
	}
	if event.Timezone != "" {
		if _, err := time.LoadLocation(event.Timezone); err != nil {
			return models.Event{}, fmt.Errorf("%w: timezone %q", ErrInvalidEvent, event.Timezone)
		}
	}
	if event.StartDate.IsZero() || event.EndDate.IsZero() {
		return models.Event{}, fmt.Errorf("%w: start and end date required", ErrInvalidEvent)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	loc := event.Location()
	event.StartDate = calendarDate(event.StartDate, loc)
	event.EndDate = calendarDate(event.EndDate, loc)
	if event.EndDate.Before(event.StartDate) {
		return models.Event{}, fmt.Errorf("%w: end date before start date", ErrInvalidEvent)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("create event: %w", err)
		}
		row := displayToModel(event.ID, defaultDisplay(event))
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create display settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	s.logger.Info().Str("event_id", event.ID).Str("name", event.Name).Msg("event created")
	return event, nil
}

// GetProposal loads one proposal.
func (s *Store) GetProposal(ctx context.Context, proposalID string) (models.Proposal, error) {
	var p models.Proposal
	err := s.db.WithContext(ctx).Where("id = ?", proposalID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Proposal{}, ErrProposalNotFound
	}
	if err != nil {
		return models.Proposal{}, fmt.Errorf("get proposal %s: %w", proposalID, err)
	}
	return p, nil
}

// CreateProposal stores a proposal, assigning an id and the submitted status when missing.
func (s *Store) CreateProposal(ctx context.Context, p models.Proposal) (models.Proposal, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.ProposalSubmitted
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return models.Proposal{}, fmt.Errorf("create proposal: %w", err)
	}
	return p, nil
}

// GetUserByEmail looks a user up by its login.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// CreateUser stores an account. The password must already be hashed.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string, role models.RoleName) (models.User, error) {
	u := models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		Role:         role,
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// normalizeEvent pins the schedule dates to midnight in the event timezone.
func normalizeEvent(e *models.Event) {
	loc := e.Location()
	e.StartDate = display.Date(e.StartDate.In(loc))
	e.EndDate = display.Date(e.EndDate.In(loc))
}

// calendarDate keeps the calendar date of t and places it at midnight in loc.
func calendarDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func defaultDisplay(e models.Event) display.Settings {
	return display.Default(e.StartDate, e.EndDate)
}

func sessionToModel(eventID string, s placement.Session) models.Session {
	return models.Session{
		ID:         s.ID,
		EventID:    eventID,
		TrackID:    s.TrackID,
		StartsAt:   s.Interval.Start.UTC(),
		EndsAt:     s.Interval.End.UTC(),
		Title:      s.Title,
		Color:      s.Color,
		Language:   s.Language,
		Emojis:     s.Emojis,
		ProposalID: s.ProposalID,
	}
}

func sessionFromModel(m models.Session, loc *time.Location) placement.Session {
	return placement.Session{
		ID:       m.ID,
		TrackID:  m.TrackID,
		Interval: interval.Interval{Start: m.StartsAt.In(loc), End: m.EndsAt.In(loc)},
		Payload: placement.Payload{
			Title:      m.Title,
			Color:      m.Color,
			Language:   m.Language,
			Emojis:     m.Emojis,
			ProposalID: m.ProposalID,
		},
	}
}

func displayToModel(eventID string, s display.Settings) models.DisplaySettings {
	return models.DisplaySettings{
		EventID:      eventID,
		VisibleFrom:  s.VisibleFrom.UTC(),
		VisibleTo:    s.VisibleTo.UTC(),
		DayStart:     int(s.DayStart),
		DayEnd:       int(s.DayEnd),
		VisibleStart: int(s.VisibleStart),
		VisibleEnd:   int(s.VisibleEnd),
		Granularity:  s.Granularity(),
	}
}

func displayFromModel(m models.DisplaySettings, e models.Event) display.Settings {
	loc := e.Location()
	return display.Settings{
		StartDate:    e.StartDate,
		EndDate:      e.EndDate,
		VisibleFrom:  display.Date(m.VisibleFrom.In(loc)),
		VisibleTo:    display.Date(m.VisibleTo.In(loc)),
		DayStart:     timeslot.Clock(m.DayStart),
		DayEnd:       timeslot.Clock(m.DayEnd),
		VisibleStart: timeslot.Clock(m.VisibleStart),
		VisibleEnd:   timeslot.Clock(m.VisibleEnd),
		Zoom:         display.Zoom(m.Granularity),
	}
}
