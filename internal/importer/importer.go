/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package importer loads whole schedules from YAML files. Sessions go through the
// schedule service, so a file with overlapping sessions is rejected the same way
// as an interactive edit.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/lineup/internal/display"
	"github.com/friendsincode/lineup/internal/interval"
	"github.com/friendsincode/lineup/internal/models"
	"github.com/friendsincode/lineup/internal/placement"
	"github.com/friendsincode/lineup/internal/schedule"
	"github.com/friendsincode/lineup/internal/timeslot"
)

const dateLayout = "2006-01-02"

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04"}

// File is the YAML document layout.
type File struct {
	Event    EventSpec     `yaml:"event"`
	Tracks   []TrackSpec   `yaml:"tracks"`
	Sessions []SessionSpec `yaml:"sessions"`
	Display  *DisplaySpec  `yaml:"display,omitempty"`
}

// EventSpec describes the event. Dates are YYYY-MM-DD.
type EventSpec struct {
	ID        string `yaml:"id,omitempty"`
	Name      string `yaml:"name"`
	Timezone  string `yaml:"timezone,omitempty"`
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
}

// TrackSpec describes one track.
type TrackSpec struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// SessionSpec describes one session. Times without an offset are read in the event
// timezone.
type SessionSpec struct {
	Track    string   `yaml:"track"`
	Start    string   `yaml:"start"`
	End      string   `yaml:"end"`
	Title    string   `yaml:"title"`
	Color    string   `yaml:"color,omitempty"`
	Language string   `yaml:"language,omitempty"`
	Emojis   []string `yaml:"emojis,omitempty"`
	Proposal string   `yaml:"proposal,omitempty"`
}

// DisplaySpec overrides the default display settings.
type DisplaySpec struct {
	VisibleFrom  string `yaml:"visible_from,omitempty"`
	VisibleTo    string `yaml:"visible_to,omitempty"`
	DayStart     string `yaml:"day_start,omitempty"`
	DayEnd       string `yaml:"day_end,omitempty"`
	VisibleStart string `yaml:"visible_start,omitempty"`
	VisibleEnd   string `yaml:"visible_end,omitempty"`
	Zoom         int    `yaml:"zoom,omitempty"`
}

// EventCreator stores new events. *store.Store implements it.
type EventCreator interface {
	CreateEvent(ctx context.Context, event models.Event) (models.Event, error)
}

// Scheduler is the subset of *schedule.Service used for importing.
type Scheduler interface {
	SaveTracks(ctx context.Context, eventID string, tracks []placement.Track) ([]placement.Track, []placement.Session, error)
	CreateSession(ctx context.Context, eventID, trackID string, iv interval.Interval, payload placement.Payload) (placement.Session, error)
	CreateFromProposal(ctx context.Context, eventID, proposalID, trackID string, iv interval.Interval, payload placement.Payload) (placement.Session, error)
	Display(ctx context.Context, eventID string) (display.Settings, error)
	UpdateDisplaySettings(ctx context.Context, eventID string, settings display.Settings) (display.Settings, error)
}

var _ Scheduler = (*schedule.Service)(nil)

// Options control an import.
type Options struct {
	// Strict aborts at the first rejected session instead of skipping it.
	Strict bool
}

// Rejection records a session that could not be placed.
type Rejection struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Err   error  `json:"-"`
}

func (r Rejection) Error() string {
	return fmt.Sprintf("session %d (%q): %v", r.Index, r.Title, r.Err)
}

func (r Rejection) Unwrap() error { return r.Err }

// Result summarizes an import.
type Result struct {
	Event    models.Event
	Tracks   int
	Sessions int
	Rejected []Rejection
}

// Importer writes parsed files through the store and the schedule service.
type Importer struct {
	events   EventCreator
	schedule Scheduler
	logger   zerolog.Logger
}

// New creates an importer.
func New(events EventCreator, sched Scheduler, logger zerolog.Logger) *Importer {
	return &Importer{
		events:   events,
		schedule: sched,
		logger:   logger.With().Str("component", "importer").Logger(),
	}
}

// Parse decodes a YAML document, rejecting unknown fields.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode schedule file: %w", err)
	}
	return &f, nil
}

// Import parses r and imports it.
func (im *Importer) Import(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	f, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return im.ImportFile(ctx, f, opts)
}

// ImportFile creates the event, then its tracks, sessions and display settings.
func (im *Importer) ImportFile(ctx context.Context, f *File, opts Options) (*Result, error) {
	event, err := eventFromSpec(f.Event)
	if err != nil {
		return nil, err
	}
	event, err = im.events.CreateEvent(ctx, event)
	if err != nil {
		return nil, err
	}
	res := &Result{Event: event}
	logger := im.logger.With().Str("event_id", event.ID).Logger()

	tracks := make([]placement.Track, 0, len(f.Tracks))
	for _, t := range f.Tracks {
		tracks = append(tracks, placement.Track{ID: t.ID, Name: t.Name})
	}
	saved, _, err := im.schedule.SaveTracks(ctx, event.ID, tracks)
	if err != nil {
		return res, fmt.Errorf("import tracks: %w", err)
	}
	res.Tracks = len(saved)

	loc := event.Location()
	for i, spec := range f.Sessions {
		err := im.importSession(ctx, event.ID, spec, loc)
		if err == nil {
			res.Sessions++
			continue
		}
		rej := Rejection{Index: i, Title: spec.Title, Err: err}
		if opts.Strict {
			return res, rej
		}
		logger.Warn().Err(err).Int("index", i).Str("title", spec.Title).Msg("session skipped")
		res.Rejected = append(res.Rejected, rej)
	}

	if f.Display != nil {
		current, err := im.schedule.Display(ctx, event.ID)
		if err != nil {
			return res, err
		}
		settings, err := applyDisplay(current, *f.Display, loc)
		if err != nil {
			return res, err
		}
		if _, err := im.schedule.UpdateDisplaySettings(ctx, event.ID, settings); err != nil {
			return res, fmt.Errorf("import display settings: %w", err)
		}
	}

	logger.Info().Int("tracks", res.Tracks).Int("sessions", res.Sessions).Int("rejected", len(res.Rejected)).Msg("schedule imported")
	return res, nil
}

func (im *Importer) importSession(ctx context.Context, eventID string, spec SessionSpec, loc *time.Location) error {
	start, err := parseTime(spec.Start, loc)
	if err != nil {
		return err
	}
	end, err := parseTime(spec.End, loc)
	if err != nil {
		return err
	}
	iv, err := interval.New(start, end)
	if err != nil {
		return err
	}
	payload := placement.Payload{
		Title:    spec.Title,
		Color:    spec.Color,
		Language: spec.Language,
		Emojis:   spec.Emojis,
	}
	if spec.Proposal != "" {
		_, err = im.schedule.CreateFromProposal(ctx, eventID, spec.Proposal, spec.Track, iv, payload)
	} else {
		_, err = im.schedule.CreateSession(ctx, eventID, spec.Track, iv, payload)
	}
	return err
}

func eventFromSpec(spec EventSpec) (models.Event, error) {
	loc := time.UTC
	if spec.Timezone != "" {
		l, err := time.LoadLocation(spec.Timezone)
		if err != nil {
			return models.Event{}, fmt.Errorf("event timezone %q: %w", spec.Timezone, err)
		}
		loc = l
	}
	start, err := time.ParseInLocation(dateLayout, spec.StartDate, loc)
	if err != nil {
		return models.Event{}, fmt.Errorf("event start_date: %w", err)
	}
	end, err := time.ParseInLocation(dateLayout, spec.EndDate, loc)
	if err != nil {
		return models.Event{}, fmt.Errorf("event end_date: %w", err)
	}
	return models.Event{
		ID:        spec.ID,
		Name:      spec.Name,
		Timezone:  spec.Timezone,
		StartDate: start,
		EndDate:   end,
	}, nil
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: expected RFC3339 or YYYY-MM-DD HH:MM", s)
}

func applyDisplay(s display.Settings, spec DisplaySpec, loc *time.Location) (display.Settings, error) {
	var errs []error
	date := func(v string, dst *time.Time) {
		if v == "" {
			return
		}
		t, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("display date %q: %w", v, err))
			return
		}
		*dst = t
	}
	clock := func(v string, dst *timeslot.Clock) {
		if v == "" {
			return
		}
		c, err := timeslot.ParseClock(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("display: %w", err))
			return
		}
		*dst = c
	}

	date(spec.VisibleFrom, &s.VisibleFrom)
	date(spec.VisibleTo, &s.VisibleTo)
	clock(spec.DayStart, &s.DayStart)
	clock(spec.DayEnd, &s.DayEnd)
	clock(spec.VisibleStart, &s.VisibleStart)
	clock(spec.VisibleEnd, &s.VisibleEnd)
	if spec.Zoom != 0 {
		z, err := display.ParseZoom(spec.Zoom)
		if err != nil {
			errs = append(errs, err)
		}
		s.Zoom = z
	}
	if err := errors.Join(errs...); err != nil {
		return display.Settings{}, err
	}
	return s, nil
}
