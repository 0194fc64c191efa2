/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/friendsincode/lineup/internal/selection"
)

func dialGesture(t *testing.T, env *testEnv, token string) (*ws.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/v1/events/gc/gesture?token=" + token
	conn, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(ws.StatusNormalClosure, "") })
	return conn, ctx
}

func roundTrip(t *testing.T, ctx context.Context, conn *ws.Conn, msg gestureMessage) gestureReply {
	t.Helper()
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		t.Fatalf("write %s: %v", msg.Type, err)
	}
	return readReply(t, ctx, conn)
}

func readReply(t *testing.T, ctx context.Context, conn *ws.Conn) gestureReply {
	t.Helper()
	for {
		var reply gestureReply
		if err := wsjson.Read(ctx, conn, &reply); err != nil {
			t.Fatalf("read: %v", err)
		}
		if reply.Type != "ping" {
			return reply
		}
	}
}

func TestGestureCreatesSession(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	conn, ctx := dialGesture(t, env, env.organizer)

	reply := roundTrip(t, ctx, conn, gestureMessage{Type: msgSelectStart, TrackID: "main", SlotStart: at(9, 0)})
	if reply.State != selection.Anchored || len(reply.Selected) != 0 {
		t.Fatalf("after start: %+v", reply)
	}

	reply = roundTrip(t, ctx, conn, gestureMessage{Type: msgSelectHover, TrackID: "main", SlotStart: at(9, 30)})
	if reply.Accepted == nil || !*reply.Accepted || reply.State != selection.Hovering || len(reply.Selected) != 3 {
		t.Fatalf("after hover: %+v", reply)
	}

	// Hovering another track is ignored.
	reply = roundTrip(t, ctx, conn, gestureMessage{Type: msgSelectHover, TrackID: "side", SlotStart: at(10, 0)})
	if reply.Accepted == nil || *reply.Accepted || len(reply.Selected) != 3 {
		t.Fatalf("after foreign hover: %+v", reply)
	}

	// So is a hover on the same track one day later.
	reply = roundTrip(t, ctx, conn, gestureMessage{Type: msgSelectHover, TrackID: "main", SlotStart: at(9, 0).AddDate(0, 0, 1)})
	if reply.Type == "error" || reply.Accepted == nil || *reply.Accepted || len(reply.Selected) != 3 {
		t.Fatalf("after next-day hover: %+v", reply)
	}

	reply = roundTrip(t, ctx, conn, gestureMessage{Type: msgSelect, Title: "Lightning talks"})
	if reply.Type != "committed" || reply.Range == nil {
		t.Fatalf("commit reply: %+v", reply)
	}
	if !reply.Range.Interval.Start.Equal(at(9, 0)) || !reply.Range.Interval.End.Equal(at(9, 45)) {
		t.Fatalf("committed range %v", reply.Range.Interval)
	}

	reply = readReply(t, ctx, conn)
	if reply.Type != "session_created" || reply.Session == nil || reply.Session.Title != "Lightning talks" {
		t.Fatalf("create reply: %+v", reply)
	}

	reply = readReply(t, ctx, conn)
	if reply.Type != "schedule.session_created" || reply.Payload.String("event_id") != "gc" {
		t.Fatalf("push: %+v", reply)
	}

	// A second gesture over the same range conflicts.
	roundTrip(t, ctx, conn, gestureMessage{Type: msgSelectStart, TrackID: "main", SlotStart: at(9, 15)})
	roundTrip(t, ctx, conn, gestureMessage{Type: msgSelect, Title: "Again"})
	reply = readReply(t, ctx, conn)
	if reply.Type != "error" || reply.Error != "conflict" || reply.Existing == nil {
		t.Fatalf("conflict reply: %+v", reply)
	}
}

func TestGestureRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	conn, ctx := dialGesture(t, env, env.viewer)

	tests := []struct {
		name string
		msg  gestureMessage
		want string
	}{
		{"off grid", gestureMessage{Type: msgSelectStart, TrackID: "main", SlotStart: at(9, 7)}, "invalid_slot"},
		{"outside window", gestureMessage{Type: msgSelectStart, TrackID: "main", SlotStart: at(22, 0)}, "invalid_slot"},
		{"unknown type", gestureMessage{Type: "drag"}, "unknown_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := roundTrip(t, ctx, conn, tt.msg)
			if reply.Type != "error" || reply.Error != tt.want {
				t.Fatalf("reply = %+v, want error %s", reply, tt.want)
			}
		})
	}

	// Commit without an anchor stays idle.
	reply := roundTrip(t, ctx, conn, gestureMessage{Type: msgSelect})
	if reply.State != selection.Idle {
		t.Fatalf("state = %s", reply.State)
	}

	// Viewers can select but not create.
	roundTrip(t, ctx, conn, gestureMessage{Type: msgSelectStart, TrackID: "main", SlotStart: at(9, 0)})
	roundTrip(t, ctx, conn, gestureMessage{Type: msgSelect, Title: "Sneaky"})
	reply = readReply(t, ctx, conn)
	if reply.Error != "insufficient_role" {
		t.Fatalf("reply = %+v", reply)
	}

	reply = roundTrip(t, ctx, conn, gestureMessage{Type: msgReset})
	if reply.State != selection.Idle {
		t.Fatalf("state after reset = %s", reply.State)
	}
}

func TestGestureUnknownEvent(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodGet, "/api/v1/events/missing/gesture", env.viewer, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
