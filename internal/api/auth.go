/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/friendsincode/lineup/internal/auth"
	"github.com/friendsincode/lineup/internal/placement"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "credentials_required")
		return
	}

	user, err := a.store.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, placement.ErrNotFound) {
		// Hash anyway so unknown accounts take as long as wrong passwords.
		_ = auth.CheckPassword(dummyHash(), req.Password)
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := auth.Issue(a.jwtSecret, auth.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Roles:  []string{string(user.Role)},
	}, a.tokenTTL)
	if err != nil {
		a.logger.Error().Err(err).Msg("issue token")
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	a.logger.Info().Str("user_id", user.ID).Msg("user logged in")
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(a.tokenTTL).UTC(),
		Role:      string(user.Role),
	})
}

var dummyHash = sync.OnceValue(func() string {
	h, _ := auth.HashPassword("lineup-unknown-account")
	return h
})
