/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
)

// RoleName enumerates the RBAC roles.
type RoleName string

const (
	RoleOrganizer RoleName = "organizer"
	RoleReviewer  RoleName = "reviewer"
	RoleViewer    RoleName = "viewer"
)

// User represents an authenticated account.
type User struct {
	ID           string   `gorm:"size:36;primaryKey"`
	Email        string   `gorm:"size:255;uniqueIndex"`
	PasswordHash string   `json:"-"`
	Role         RoleName `gorm:"type:varchar(16)"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Event is one conference. Its schedule spans StartDate through EndDate inclusive.
type Event struct {
	ID        string    `gorm:"size:36;primaryKey" json:"id"`
	Name      string    `gorm:"size:255;index" json:"name"`
	Timezone  string    `gorm:"type:varchar(64)" json:"timezone"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location resolves the event timezone, defaulting to UTC.
func (e Event) Location() *time.Location {
	if e.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Track is a room or other parallel lane of an event.
type Track struct {
	ID        string `gorm:"size:36;primaryKey"`
	EventID   string `gorm:"size:36;index"`
	Name      string
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session is a placed schedule item.
type Session struct {
	ID         string    `gorm:"size:36;primaryKey"`
	EventID    string    `gorm:"size:36;index"`
	TrackID    string    `gorm:"size:36;index:idx_sessions_track_start"`
	StartsAt   time.Time `gorm:"index:idx_sessions_track_start"`
	EndsAt     time.Time
	Title      string
	Color      string   `gorm:"type:varchar(16)"`
	Language   string   `gorm:"type:varchar(16)"`
	Emojis     []string `gorm:"serializer:json"`
	ProposalID *string  `gorm:"size:36;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplaySettings stores the editor viewport of an event. Clock fields are minutes from
// midnight.
type DisplaySettings struct {
	EventID      string `gorm:"size:36;primaryKey"`
	VisibleFrom  time.Time
	VisibleTo    time.Time
	DayStart     int
	DayEnd       int
	VisibleStart int
	VisibleEnd   int
	Granularity  int
	UpdatedAt    time.Time
}

// ProposalStatus tracks the review state of a submission.
type ProposalStatus string

const (
	ProposalSubmitted ProposalStatus = "submitted"
	ProposalAccepted  ProposalStatus = "accepted"
	ProposalRejected  ProposalStatus = "rejected"
)

// Proposal is a talk submission that can be linked to a session.
type Proposal struct {
	ID        string         `gorm:"size:36;primaryKey" json:"id"`
	EventID   string         `gorm:"size:36;index" json:"event_id"`
	Title     string         `json:"title"`
	Abstract  string         `gorm:"type:text" json:"abstract"`
	Speakers  []string       `gorm:"serializer:json" json:"speakers"`
	Language  string         `gorm:"type:varchar(16)" json:"language"`
	Status    ProposalStatus `gorm:"type:varchar(16);index" json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// All lists every model managed by migrations.
func All() []any {
	return []any{
		&User{},
		&Event{},
		&Track{},
		&Session{},
		&DisplaySettings{},
		&Proposal{},
	}
}
