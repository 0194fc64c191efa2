/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the schedule editor over HTTP and WebSocket.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/lineup/internal/auth"
	"github.com/friendsincode/lineup/internal/display"
	"github.com/friendsincode/lineup/internal/events"
	"github.com/friendsincode/lineup/internal/export"
	"github.com/friendsincode/lineup/internal/models"
	"github.com/friendsincode/lineup/internal/placement"
	"github.com/friendsincode/lineup/internal/schedule"
	"github.com/friendsincode/lineup/internal/store"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// API exposes HTTP handlers.
type API struct {
	store     *store.Store
	schedule  *schedule.Service
	feeds     *export.Service
	broker    events.Broker
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    zerolog.Logger
}

// New creates the API router wrapper. broker feeds the gesture sockets.
func New(st *store.Store, sched *schedule.Service, feeds *export.Service, broker events.Broker, jwtSecret []byte, tokenTTL time.Duration, logger zerolog.Logger) *API {
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &API{
		store:     st,
		schedule:  sched,
		feeds:     feeds,
		broker:    broker,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts every endpoint below /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Post("/auth/login", a.handleLogin)

		// Public feed, no auth required
		r.Get("/public/events/{eventID}/schedule.ics", a.handlePublicFeed)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.jwtSecret))
			organizer := a.requireRoles(models.RoleOrganizer)

			pr.Route("/events", func(r chi.Router) {
				r.Get("/", a.handleEventsList)
				r.With(organizer).Post("/", a.handleEventsCreate)

				r.Route("/{eventID}", func(r chi.Router) {
					r.Get("/", a.handleEventsGet)
					r.Get("/schedule", a.handleSchedule)
					r.Get("/grid", a.handleGrid)
					r.Get("/gesture", a.handleGesture)

					r.Route("/tracks", func(r chi.Router) {
						r.With(organizer).Put("/", a.handleTracksSave)
						r.With(organizer).Delete("/{trackID}", a.handleTrackDelete)
					})

					r.Route("/sessions", func(r chi.Router) {
						r.Use(organizer)
						r.Post("/", a.handleSessionCreate)
						r.Post("/swap", a.handleSessionsSwap)
						r.Post("/from-proposal", a.handleSessionFromProposal)
						r.Patch("/{sessionID}", a.handleSessionUpdate)
						r.Delete("/{sessionID}", a.handleSessionDelete)
					})

					r.Route("/display", func(r chi.Router) {
						r.Get("/", a.handleDisplayGet)
						r.With(organizer).Put("/", a.handleDisplayUpdate)
						r.With(organizer).Post("/{action}", a.handleDisplayAction)
					})

					r.Get("/export.ics", a.handleFeed)
				})
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "db_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) requireRoles(allowed ...models.RoleName) func(http.Handler) http.Handler {
	roles := make([]string, 0, len(allowed))
	for _, role := range allowed {
		roles = append(roles, string(role))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !claims.HasRole(roles...) {
				writeError(w, http.StatusForbidden, "insufficient_role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeServiceError maps domain errors to status codes.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *placement.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    "conflict",
			"existing": conflict.Existing,
		})
		return
	}
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		a.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, code)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, placement.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, placement.ErrInvalidRange):
		return http.StatusUnprocessableEntity, "invalid_range"
	case errors.Is(err, placement.ErrSelfSwap):
		return http.StatusUnprocessableEntity, "self_swap"
	case errors.Is(err, display.ErrInvalidSettings):
		return http.StatusUnprocessableEntity, "invalid_settings"
	case errors.Is(err, schedule.ErrInvalidTracks):
		return http.StatusUnprocessableEntity, "invalid_tracks"
	case errors.Is(err, store.ErrInvalidEvent):
		return http.StatusUnprocessableEntity, "invalid_event"
	case errors.Is(err, placement.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "db_error"
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
