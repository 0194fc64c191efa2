/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/lineup/internal/display"
	"github.com/friendsincode/lineup/internal/timeslot"
)

// displayRequest carries display settings in wire form. Omitted fields keep their
// current value.
type displayRequest struct {
	VisibleFrom  string `json:"visible_from"`
	VisibleTo    string `json:"visible_to"`
	DayStart     string `json:"day_start"`
	DayEnd       string `json:"day_end"`
	VisibleStart string `json:"visible_start"`
	VisibleEnd   string `json:"visible_end"`
	Zoom         int    `json:"zoom"`
}

type displayResponse struct {
	display.Settings
	Days        []string `json:"days"`
	VisibleDays []string `json:"visible_days"`
	HourLabels  []string `json:"hour_labels"`
}

func newDisplayResponse(s display.Settings) displayResponse {
	return displayResponse{
		Settings:    s,
		Days:        formatDays(s.Days()),
		VisibleDays: formatDays(s.VisibleDays()),
		HourLabels:  s.HourLabels(),
	}
}

func formatDays(days []time.Time) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.Format(time.DateOnly))
	}
	return out
}

func (a *API) handleDisplayGet(w http.ResponseWriter, r *http.Request) {
	settings, err := a.schedule.Display(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDisplayResponse(settings))
}

func (a *API) handleDisplayUpdate(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var req displayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	settings, err := a.schedule.Display(r.Context(), eventID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	loc := settings.StartDate.Location()
	for _, f := range []struct {
		raw string
		dst *time.Time
	}{{req.VisibleFrom, &settings.VisibleFrom}, {req.VisibleTo, &settings.VisibleTo}} {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseInLocation(time.DateOnly, f.raw, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date")
			return
		}
		*f.dst = d
	}
	for _, f := range []struct {
		raw string
		dst *timeslot.Clock
	}{
		{req.DayStart, &settings.DayStart},
		{req.DayEnd, &settings.DayEnd},
		{req.VisibleStart, &settings.VisibleStart},
		{req.VisibleEnd, &settings.VisibleEnd},
	} {
		if f.raw == "" {
			continue
		}
		c, err := timeslot.ParseClock(f.raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time")
			return
		}
		*f.dst = c
	}
	if req.Zoom != 0 {
		if settings, err = settings.SetZoom(req.Zoom); err != nil {
			a.writeServiceError(w, r, err)
			return
		}
	}

	updated, err := a.schedule.UpdateDisplaySettings(r.Context(), eventID, settings)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDisplayResponse(updated))
}

// handleDisplayAction applies zoom-in, zoom-out or pan?days=N.
func (a *API) handleDisplayAction(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	settings, err := a.schedule.Display(r.Context(), eventID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	switch chi.URLParam(r, "action") {
	case "zoom-in":
		settings = settings.ZoomIn()
	case "zoom-out":
		settings = settings.ZoomOut()
	case "pan":
		n, err := strconv.Atoi(r.URL.Query().Get("days"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_days")
			return
		}
		settings = settings.PanDays(n)
	default:
		writeError(w, http.StatusNotFound, "unknown_action")
		return
	}

	updated, err := a.schedule.UpdateDisplaySettings(r.Context(), eventID, settings)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDisplayResponse(updated))
}
