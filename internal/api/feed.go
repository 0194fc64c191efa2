/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *API) handlePublicFeed(w http.ResponseWriter, r *http.Request) {
	a.serveFeed(w, r, "public, max-age=300")
}

func (a *API) handleFeed(w http.ResponseWriter, r *http.Request) {
	a.serveFeed(w, r, "private, no-cache")
}

func (a *API) serveFeed(w http.ResponseWriter, r *http.Request, cacheControl string) {
	feed, err := a.feeds.Feed(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", feed.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", feed.Filename))
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(feed.Data)
}
