/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/lineup/internal/models"
)

type eventCreateRequest struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Timezone  string `json:"timezone"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (a *API) handleEventsList(w http.ResponseWriter, r *http.Request) {
	list, err := a.store.ListEvents(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}

func (a *API) handleEventsCreate(w http.ResponseWriter, r *http.Request) {
	var req eventCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	loc := time.UTC
	if req.Timezone != "" {
		l, err := time.LoadLocation(req.Timezone)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid_timezone")
			return
		}
		loc = l
	}
	start, err := time.ParseInLocation(time.DateOnly, req.StartDate, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_date")
		return
	}
	end, err := time.ParseInLocation(time.DateOnly, req.EndDate, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end_date")
		return
	}

	event, err := a.store.CreateEvent(r.Context(), models.Event{
		ID:        req.ID,
		Name:      req.Name,
		Timezone:  req.Timezone,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (a *API) handleEventsGet(w http.ResponseWriter, r *http.Request) {
	event, err := a.store.GetEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (a *API) handleSchedule(w http.ResponseWriter, r *http.Request) {
	snap, err := a.schedule.Snapshot(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) handleGrid(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var day time.Time
	if raw := r.URL.Query().Get("day"); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_day")
			return
		}
		day = d
	} else {
		settings, err := a.schedule.Display(r.Context(), eventID)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		day = settings.VisibleFrom
	}

	grid, err := a.schedule.Grid(r.Context(), eventID, day)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}
