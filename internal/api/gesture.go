/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/friendsincode/lineup/internal/auth"
	"github.com/friendsincode/lineup/internal/display"
	"github.com/friendsincode/lineup/internal/events"
	"github.com/friendsincode/lineup/internal/interval"
	"github.com/friendsincode/lineup/internal/models"
	"github.com/friendsincode/lineup/internal/placement"
	"github.com/friendsincode/lineup/internal/selection"
	"github.com/friendsincode/lineup/internal/telemetry"
)

// Gesture message types sent by clients.
const (
	msgSelectStart = "select_start"
	msgSelectHover = "select_hover"
	msgSelect      = "select"
	msgReset       = "reset"
)

var errInvalidSlot = errors.New("slot is not on the grid")

// gestureMessage is a client message. slot_start names a grid cell by its start.
// A select message with a title also creates a session over the committed range.
type gestureMessage struct {
	Type      string    `json:"type"`
	TrackID   string    `json:"track_id,omitempty"`
	SlotStart time.Time `json:"slot_start"`

	Title    string   `json:"title,omitempty"`
	Color    string   `json:"color,omitempty"`
	Language string   `json:"language,omitempty"`
	Emojis   []string `json:"emojis,omitempty"`
}

// gestureReply is a server message.
type gestureReply struct {
	Type     string              `json:"type"`
	State    selection.State     `json:"state,omitempty"`
	TrackID  string              `json:"track_id,omitempty"`
	Accepted *bool               `json:"accepted,omitempty"`
	Selected []interval.Interval `json:"selected,omitempty"`
	Range    *selection.Result   `json:"range,omitempty"`
	Session  *placement.Session  `json:"session,omitempty"`
	Error    string              `json:"error,omitempty"`
	Existing *placement.Session  `json:"existing,omitempty"`
	Payload  events.Payload      `json:"payload,omitempty"`
}

// gesture is the state of one socket.
type gesture struct {
	api      *API
	eventID  string
	canEdit  bool
	sel      *selection.Selection
	settings display.Settings
}

// handleGesture hosts one selection per connection and pushes schedule changes
// of the event.
func (a *API) handleGesture(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	settings, err := a.schedule.Display(r.Context(), eventID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIWebSocketConnections.Inc()
	defer telemetry.APIWebSocketConnections.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var updates <-chan events.Message
	if a.broker != nil {
		msgs, stop := events.Merge(a.broker, events.ScheduleTypes...)
		defer stop()
		updates = msgs
	}

	claims, _ := auth.ClaimsFromContext(r.Context())
	g := &gesture{
		api:      a,
		eventID:  eventID,
		canEdit:  claims.HasRole(string(models.RoleOrganizer)),
		sel:      selection.New(),
		settings: settings,
	}

	incoming := make(chan gestureMessage)
	go func() {
		defer cancel()
		for {
			var msg gestureMessage
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				return
			}
			select {
			case incoming <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		var out []gestureReply
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return
		case msg := <-incoming:
			out = g.handle(ctx, msg)
		case msg, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if msg.Payload.String(events.KeyEventID) != eventID {
				continue
			}
			out = []gestureReply{{Type: string(msg.Type), Payload: msg.Payload}}
		case <-ticker.C:
			out = []gestureReply{{Type: "ping"}}
		}

		for _, reply := range out {
			if err := wsjson.Write(ctx, conn, reply); err != nil {
				a.logger.Debug().Err(err).Str("event_id", eventID).Msg("gesture socket write failed")
				conn.Close(ws.StatusInternalError, "write failed")
				return
			}
		}
	}
}

func (g *gesture) handle(ctx context.Context, msg gestureMessage) []gestureReply {
	switch msg.Type {
	case msgSelectStart:
		// Pick up zoom changes made since the last gesture.
		if settings, err := g.api.schedule.Display(ctx, g.eventID); err == nil {
			g.settings = settings
		}
		slot, err := g.slot(msg.SlotStart)
		if err != nil {
			return []gestureReply{{Type: "error", Error: "invalid_slot"}}
		}
		g.sel.Start(msg.TrackID, slot)
		return []gestureReply{g.state(nil)}

	case msgSelectHover:
		slot, err := g.slot(msg.SlotStart)
		if err != nil {
			return []gestureReply{{Type: "error", Error: "invalid_slot"}}
		}
		// A gesture stays on the anchor's day; hours between days are hidden.
		if _, anchor, ok := g.sel.Anchor(); ok && !g.day(anchor.Start).Equal(g.day(slot.Start)) {
			accepted := false
			return []gestureReply{g.state(&accepted)}
		}
		accepted := g.sel.Hover(msg.TrackID, slot)
		return []gestureReply{g.state(&accepted)}

	case msgSelect:
		res, ok := g.sel.Commit()
		if !ok {
			return []gestureReply{g.state(nil)}
		}
		replies := []gestureReply{{Type: "committed", State: g.sel.State(), TrackID: res.TrackID, Range: &res, Selected: g.selected()}}
		if msg.Title == "" {
			return replies
		}
		return append(replies, g.create(ctx, res, msg))

	case msgReset:
		g.sel.Reset()
		return []gestureReply{g.state(nil)}

	default:
		return []gestureReply{{Type: "error", Error: "unknown_type"}}
	}
}

func (g *gesture) create(ctx context.Context, res selection.Result, msg gestureMessage) gestureReply {
	if !g.canEdit {
		return gestureReply{Type: "error", Error: "insufficient_role"}
	}
	created, err := g.api.schedule.CreateFromSelection(ctx, g.eventID, res, placement.Payload{
		Title:    msg.Title,
		Color:    msg.Color,
		Language: msg.Language,
		Emojis:   msg.Emojis,
	})
	if err != nil {
		reply := gestureReply{Type: "error"}
		var conflict *placement.ConflictError
		if errors.As(err, &conflict) {
			reply.Existing = &conflict.Existing
		}
		_, reply.Error = errorStatus(err)
		return reply
	}
	g.sel.Reset()
	return gestureReply{Type: "session_created", Session: &created}
}

// slot finds the grid cell starting at start on its day in the event timezone.
func (g *gesture) slot(start time.Time) (interval.Interval, error) {
	if start.IsZero() {
		return interval.Interval{}, errInvalidSlot
	}
	for _, s := range g.settings.Slots(g.day(start)) {
		if s.Start.Equal(start) {
			return s, nil
		}
	}
	return interval.Interval{}, errInvalidSlot
}

// day is the event-local date of t.
func (g *gesture) day(t time.Time) time.Time {
	return display.Date(t.In(g.settings.StartDate.Location()))
}

func (g *gesture) selected() []interval.Interval {
	track, anchor, ok := g.sel.Anchor()
	if !ok {
		return nil
	}
	var out []interval.Interval
	for _, s := range g.settings.Slots(g.day(anchor.Start)) {
		if g.sel.IsSelected(track, s) {
			out = append(out, s)
		}
	}
	return out
}

func (g *gesture) state(accepted *bool) gestureReply {
	track, _, _ := g.sel.Anchor()
	return gestureReply{
		Type:     "selection",
		State:    g.sel.State(),
		TrackID:  track,
		Accepted: accepted,
		Selected: g.selected(),
	}
}
