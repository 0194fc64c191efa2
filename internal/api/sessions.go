/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/lineup/internal/interval"
	"github.com/friendsincode/lineup/internal/placement"
)

type sessionCreateRequest struct {
	TrackID  string    `json:"track_id"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Title    string    `json:"title"`
	Color    string    `json:"color"`
	Language string    `json:"language"`
	Emojis   []string  `json:"emojis"`
}

type sessionUpdateRequest struct {
	TrackID  *string    `json:"track_id"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	Title    *string    `json:"title"`
	Color    *string    `json:"color"`
	Language *string    `json:"language"`
	Emojis   *[]string  `json:"emojis"`
}

type swapRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

type fromProposalRequest struct {
	ProposalID string    `json:"proposal_id"`
	TrackID    string    `json:"track_id"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	Color      string    `json:"color"`
	Emojis     []string  `json:"emojis"`
}

type tracksRequest struct {
	Tracks []placement.Track `json:"tracks"`
}

func (a *API) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TrackID == "" {
		writeError(w, http.StatusBadRequest, "track_id_required")
		return
	}

	created, err := a.schedule.CreateSession(r.Context(), chi.URLParam(r, "eventID"), req.TrackID,
		interval.Interval{Start: req.StartsAt, End: req.EndsAt},
		placement.Payload{Title: req.Title, Color: req.Color, Language: req.Language, Emojis: req.Emojis})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleSessionFromProposal(w http.ResponseWriter, r *http.Request) {
	var req fromProposalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProposalID == "" || req.TrackID == "" {
		writeError(w, http.StatusBadRequest, "proposal_and_track_required")
		return
	}

	created, err := a.schedule.CreateFromProposal(r.Context(), chi.URLParam(r, "eventID"), req.ProposalID, req.TrackID,
		interval.Interval{Start: req.StartsAt, End: req.EndsAt},
		placement.Payload{Color: req.Color, Emojis: req.Emojis})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleSessionUpdate applies a partial update. Moving only the start keeps the
// duration; moving only the end keeps the start.
func (a *API) handleSessionUpdate(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	sessionID := chi.URLParam(r, "sessionID")

	var req sessionUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// Merging happens under the schedule lock so concurrent patches of different
	// fields do not overwrite each other.
	patch := placement.Patch{
		TrackID:  req.TrackID,
		Start:    req.StartsAt,
		End:      req.EndsAt,
		Title:    req.Title,
		Color:    req.Color,
		Language: req.Language,
		Emojis:   req.Emojis,
	}

	updated, err := a.schedule.UpdateSession(r.Context(), eventID, sessionID, patch)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.schedule.DeleteSession(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "sessionID")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSessionsSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.A == "" || req.B == "" {
		writeError(w, http.StatusBadRequest, "session_ids_required")
		return
	}

	swapped, err := a.schedule.SwapSessions(r.Context(), chi.URLParam(r, "eventID"), req.A, req.B)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": swapped})
}

func (a *API) handleTracksSave(w http.ResponseWriter, r *http.Request) {
	var req tracksRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tracks, removed, err := a.schedule.SaveTracks(r.Context(), chi.URLParam(r, "eventID"), req.Tracks)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks, "removed_sessions": removed})
}

func (a *API) handleTrackDelete(w http.ResponseWriter, r *http.Request) {
	removed, err := a.schedule.DeleteTrack(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "trackID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed_sessions": removed})
}
