/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package export renders and publishes the public calendar feed of an event.
package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/friendsincode/lineup/internal/placement"
	"github.com/friendsincode/lineup/internal/schedule"
)

// ContentType of a rendered feed.
const ContentType = "text/calendar; charset=utf-8"

// Feed is a rendered calendar.
type Feed struct {
	Data        []byte
	Filename    string
	ContentType string
}

// RenderICal renders one VEVENT per session. The track name becomes the location.
func RenderICal(snap schedule.Snapshot, now time.Time) (Feed, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//Friends Incode//Lineup//EN")
	cal.SetXWRCalName(snap.Event.Name)
	if snap.Event.Timezone != "" {
		cal.SetXWRTimezone(snap.Event.Timezone)
	}

	tracks := make(map[string]string, len(snap.Tracks))
	for _, t := range snap.Tracks {
		tracks[t.ID] = t.Name
	}

	for _, s := range snap.Sessions {
		ev := cal.AddEvent(s.ID + "@lineup")
		ev.SetDtStampTime(now.UTC())
		ev.SetStartAt(s.Interval.Start.UTC())
		ev.SetEndAt(s.Interval.End.UTC())
		ev.SetSummary(summary(s))
		if name, ok := tracks[s.TrackID]; ok {
			ev.SetLocation(name)
		}
		if desc := description(s); desc != "" {
			ev.SetDescription(desc)
		}
		if s.Color != "" {
			ev.SetProperty(ical.ComponentPropertyColor, s.Color)
		}
	}

	data := cal.Serialize()
	if data == "" {
		return Feed{}, fmt.Errorf("serialize calendar for event %s: empty output", snap.Event.ID)
	}
	return Feed{
		Data:        []byte(data),
		Filename:    slugify(snap.Event.Name) + ".ics",
		ContentType: ContentType,
	}, nil
}

func summary(s placement.Session) string {
	title := s.Title
	if title == "" {
		title = "Untitled session"
	}
	if len(s.Emojis) > 0 {
		title = strings.Join(s.Emojis, "") + " " + title
	}
	return title
}

func description(s placement.Session) string {
	var parts []string
	if s.Language != "" {
		parts = append(parts, "Language: "+s.Language)
	}
	if s.ProposalID != nil {
		parts = append(parts, "Proposal: "+*s.ProposalID)
	}
	return strings.Join(parts, "\n")
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if slug == "" {
		return "schedule"
	}
	return slug
}
