/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func issueTestToken(t *testing.T, secret []byte) string {
	t.Helper()
	token, err := Issue(secret, Claims{UserID: "u1", Roles: []string{"organizer"}}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func TestMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	token := issueTestToken(t, secret)

	tests := []struct {
		name    string
		target  string
		header  string
		upgrade bool
		want    int
	}{
		{"bearer header", "/api/v1/events", "Bearer " + token, false, http.StatusOK},
		{"missing token", "/api/v1/events", "", false, http.StatusUnauthorized},
		{"garbage token", "/api/v1/events", "Bearer nope", false, http.StatusUnauthorized},
		{"query token on plain request", "/api/v1/events?token=" + token, "", false, http.StatusUnauthorized},
		{"query token on gesture upgrade", "/api/v1/events/e1/gesture?token=" + token, "", true, http.StatusOK},
		{"query token on other upgrade", "/api/v1/events/e1/sessions?token=" + token, "", true, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if _, ok := ClaimsFromContext(r.Context()); !ok {
					t.Fatalf("expected claims in context")
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.upgrade {
				req.Header.Set("Upgrade", "websocket")
			}
			rr := httptest.NewRecorder()

			Middleware(secret)(next).ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
			if tt.want == http.StatusUnauthorized && rr.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Fatalf("missing WWW-Authenticate header")
			}
		})
	}
}
