/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"0.1.0", "0.1.0", 0},
		{"0.1.0", "v0.2.0", -1},
		{"1.10.0", "1.9.3", 1},
		{"1.0", "1.0.1", -1},
	}
	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.UserAgent(), "lineup/") {
			t.Errorf("user agent = %q", r.UserAgent())
		}
		_, _ = w.Write([]byte(`{"tag_name":"v99.0.0","html_url":"https://example.com/r","body":"Big release\nmore"}`))
	}))
	defer srv.Close()

	info, err := Check(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !info.UpdateAvailable || info.LatestVersion != "99.0.0" || info.ReleaseNotes != "Big release" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestCheckRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := Check(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Fatal("expected error")
	}
}

func TestString(t *testing.T) {
	if !strings.Contains(String(), Version) {
		t.Fatalf("String() = %q", String())
	}
}
