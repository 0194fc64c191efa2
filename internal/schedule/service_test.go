/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/lineup/internal/display"
	"github.com/friendsincode/lineup/internal/events"
	"github.com/friendsincode/lineup/internal/interval"
	"github.com/friendsincode/lineup/internal/models"
	"github.com/friendsincode/lineup/internal/placement"
	"github.com/friendsincode/lineup/internal/selection"
	"github.com/friendsincode/lineup/internal/store"
	"github.com/friendsincode/lineup/internal/timeslot"
)

const testEvent = "evt-1"

var day = time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC)

func at(startMin, endMin int) interval.Interval {
	return interval.Interval{
		Start: day.Add(time.Duration(startMin) * time.Minute),
		End:   day.Add(time.Duration(endMin) * time.Minute),
	}
}

// memoryStore is a Persistence fake. Setting fail makes every write fail.
type memoryStore struct {
	mu        sync.Mutex
	event     models.Event
	tracks    []placement.Track
	sessions  map[string]placement.Session
	display   display.Settings
	proposals map[string]models.Proposal
	fail      error
	loads     int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		event:     models.Event{ID: testEvent, Name: "GopherCon", StartDate: day, EndDate: day.AddDate(0, 0, 1)},
		tracks:    []placement.Track{{ID: "main", Name: "Main"}, {ID: "side", Name: "Side"}},
		sessions:  map[string]placement.Session{},
		display:   display.Default(day, day.AddDate(0, 0, 1)),
		proposals: map[string]models.Proposal{"p1": {ID: "p1", EventID: testEvent, Title: "Generics", Language: "de"}},
	}
}

func (m *memoryStore) LoadSchedule(_ context.Context, eventID string) (*store.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if eventID != m.event.ID {
		return nil, store.ErrEventNotFound
	}
	m.loads++
	sched := &store.Schedule{Event: m.event, Tracks: append([]placement.Track(nil), m.tracks...), Display: m.display}
	for _, s := range m.sessions {
		sched.Sessions = append(sched.Sessions, s)
	}
	return sched, nil
}

func (m *memoryStore) SaveSessions(_ context.Context, _ string, sessions ...placement.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	for _, s := range sessions {
		m.sessions[s.ID] = s
	}
	return nil
}

func (m *memoryStore) DeleteSession(_ context.Context, _ string, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	delete(m.sessions, id)
	return nil
}

func (m *memoryStore) SaveTracks(_ context.Context, _ string, tracks []placement.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.tracks = append([]placement.Track(nil), tracks...)
	return nil
}

func (m *memoryStore) DeleteTrack(_ context.Context, _ string, trackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	for id, s := range m.sessions {
		if s.TrackID == trackID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memoryStore) SaveDisplaySettings(_ context.Context, _ string, settings display.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.display = settings
	return nil
}

func (m *memoryStore) GetProposal(_ context.Context, id string) (models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return models.Proposal{}, store.ErrProposalNotFound
	}
	return p, nil
}

func (m *memoryStore) setFail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("s%d", n)
	}
}

func newTestService(t *testing.T) (*Service, *memoryStore, *events.Bus) {
	t.Helper()
	st := newMemoryStore()
	bus := events.NewBus()
	svc := NewService(st, bus, zerolog.Nop(), WithNodeID("node-a"), WithIDGenerator(sequentialIDs()))
	return svc, st, bus
}

func expectEvent(t *testing.T, sub events.Subscriber) events.Payload {
	t.Helper()
	select {
	case p := <-sub:
		return p
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestCreateSessionPersistsAndPublishes(t *testing.T) {
	svc, st, bus := newTestService(t)
	sub := bus.Subscribe(events.EventSessionCreated)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, testEvent, "main", at(9*60, 10*60), placement.Payload{Title: "Keynote"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, ok := st.sessions[sess.ID]; !ok {
		t.Fatal("session not persisted")
	}

	p := expectEvent(t, sub)
	if p.String(events.KeyEventID) != testEvent || p.String(events.KeyNodeID) != "node-a" {
		t.Fatalf("payload = %v", p)
	}

	_, err = svc.CreateSession(ctx, testEvent, "main", at(9*60+30, 11*60), placement.Payload{Title: "Clash"})
	var conflict *placement.ConflictError
	if !errors.As(err, &conflict) || conflict.Existing.ID != sess.ID {
		t.Fatalf("expected conflict with %s, got %v", sess.ID, err)
	}
	if len(st.sessions) != 1 {
		t.Fatalf("rejected session persisted: %d stored", len(st.sessions))
	}
}

func TestCreateSessionValidationErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		eventID string
		track   string
		iv      interval.Interval
		want    error
	}{
		{"inverted range", testEvent, "main", at(10*60, 9*60), placement.ErrInvalidRange},
		{"empty range", testEvent, "main", at(10*60, 10*60), placement.ErrInvalidRange},
		{"unknown track", testEvent, "attic", at(9*60, 10*60), placement.ErrNotFound},
		{"unknown event", "nope", "main", at(9*60, 10*60), store.ErrEventNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateSession(ctx, tt.eventID, tt.track, tt.iv, placement.Payload{}); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPersistenceFailureLeavesEngineUntouched(t *testing.T) {
	svc, st, bus := newTestService(t)
	ctx := context.Background()
	sub := bus.Subscribe(events.EventSessionUpdated)

	sess, err := svc.CreateSession(ctx, testEvent, "main", at(9*60, 10*60), placement.Payload{Title: "A"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	st.setFail(errors.New("disk on fire"))
	newIv := at(11*60, 12*60)
	if _, err := svc.UpdateSession(ctx, testEvent, sess.ID, placement.Patch{Interval: &newIv}); !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if _, err := svc.CreateSession(ctx, testEvent, "side", at(9*60, 10*60), placement.Payload{}); !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}

	snap, err := svc.Snapshot(ctx, testEvent)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Sessions) != 1 || !snap.Sessions[0].Interval.Equal(sess.Interval) {
		t.Fatalf("engine changed after failed persist: %+v", snap.Sessions)
	}
	select {
	case p := <-sub:
		t.Fatalf("unexpected event after failure: %v", p)
	default:
	}
}

func TestUpdateAndSwap(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	a, _ := svc.CreateSession(ctx, testEvent, "main", at(9*60, 10*60), placement.Payload{Title: "A"})
	b, _ := svc.CreateSession(ctx, testEvent, "side", at(14*60, 15*60), placement.Payload{Title: "B"})

	side := "side"
	moved, err := svc.UpdateSession(ctx, testEvent, a.ID, placement.Patch{TrackID: &side})
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if moved.TrackID != "side" || st.sessions[a.ID].TrackID != "side" {
		t.Fatalf("move not applied: %+v", moved)
	}

	swapped, err := svc.SwapSessions(ctx, testEvent, a.ID, b.ID)
	if err != nil {
		t.Fatalf("SwapSessions: %v", err)
	}
	if len(swapped) != 2 || !st.sessions[a.ID].Interval.Equal(b.Interval) || !st.sessions[b.ID].Interval.Equal(a.Interval) {
		t.Fatalf("swap not persisted: %+v", st.sessions)
	}

	if _, err := svc.SwapSessions(ctx, testEvent, a.ID, a.ID); !errors.Is(err, placement.ErrSelfSwap) {
		t.Fatalf("self swap err = %v", err)
	}
	if _, err := svc.SwapSessions(ctx, testEvent, a.ID, "ghost"); !errors.Is(err, placement.ErrNotFound) {
		t.Fatalf("unknown swap err = %v", err)
	}
	if _, err := svc.UpdateSession(ctx, testEvent, "ghost", placement.Patch{}); !errors.Is(err, placement.ErrNotFound) {
		t.Fatalf("unknown update err = %v", err)
	}
}

func TestConcurrentFieldUpdatesDoNotOverwrite(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, testEvent, "main", at(9*60, 10*60), placement.Payload{Title: "Draft", Color: "#fff"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	const rounds = 20
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		title := fmt.Sprintf("title-%d", i)
		color := fmt.Sprintf("#%03d", i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.UpdateSession(ctx, testEvent, sess.ID, placement.Patch{Title: &title})
		}()
		go func() {
			defer wg.Done()
			_, _ = svc.UpdateSession(ctx, testEvent, sess.ID, placement.Patch{Color: &color})
		}()
		wg.Wait()

		got, err := svc.Session(ctx, testEvent, sess.ID)
		if err != nil {
			t.Fatalf("Session: %v", err)
		}
		if got.Title != title || got.Color != color {
			t.Fatalf("round %d: got title %q color %q, want %q %q", i, got.Title, got.Color, title, color)
		}
		if saved := st.sessions[sess.ID]; saved.Title != title || saved.Color != color {
			t.Fatalf("round %d: persisted %+v", i, saved)
		}
	}
}

func TestDeleteSessionIsIdempotent(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	sess, _ := svc.CreateSession(ctx, testEvent, "main", at(9*60, 10*60), placement.Payload{})

	for i := 0; i < 2; i++ {
		if err := svc.DeleteSession(ctx, testEvent, sess.ID); err != nil {
			t.Fatalf("DeleteSession #%d: %v", i, err)
		}
	}
	if len(st.sessions) != 0 {
		t.Fatal("session still stored")
	}
	if _, err := svc.Session(ctx, testEvent, sess.ID); !errors.Is(err, placement.ErrNotFound) {
		t.Fatalf("Session after delete: %v", err)
	}
}

func TestCreateFromProposal(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	st.proposals["other"] = models.Proposal{ID: "other", EventID: "evt-2", Title: "Elsewhere"}

	sess, err := svc.CreateFromProposal(ctx, testEvent, "p1", "main", at(9*60, 10*60), placement.Payload{Title: "ignored", Color: "#00ff00"})
	if err != nil {
		t.Fatalf("CreateFromProposal: %v", err)
	}
	if sess.Title != "Generics" || sess.Language != "de" || sess.Color != "#00ff00" {
		t.Fatalf("payload = %+v", sess.Payload)
	}
	if sess.ProposalID == nil || *sess.ProposalID != "p1" {
		t.Fatalf("proposal id = %v", sess.ProposalID)
	}

	for _, id := range []string{"missing", "other"} {
		if _, err := svc.CreateFromProposal(ctx, testEvent, id, "side", at(9*60, 10*60), placement.Payload{}); !errors.Is(err, ErrProposalNotFound) {
			t.Fatalf("proposal %s: err = %v", id, err)
		}
	}
}

func TestCreateFromSelection(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	slots := timeslot.GenerateDaySlots(day, 9*60, 10*60, 15)
	sel := selection.New()
	sel.Start("main", slots[0])
	sel.Hover("main", slots[2])
	res, ok := sel.Commit()
	if !ok {
		t.Fatal("Commit failed")
	}

	sess, err := svc.CreateFromSelection(ctx, testEvent, res, placement.Payload{Title: "Picked"})
	if err != nil {
		t.Fatalf("CreateFromSelection: %v", err)
	}
	if !sess.Interval.Equal(at(9*60, 9*60+45)) || sess.TrackID != "main" {
		t.Fatalf("session = %+v", sess)
	}
}

func TestTracks(t *testing.T) {
	svc, _, bus := newTestService(t)
	ctx := context.Background()
	sub := bus.Subscribe(events.EventTrackDeleted)

	_, _ = svc.CreateSession(ctx, testEvent, "main", at(9*60, 10*60), placement.Payload{})
	_, _ = svc.CreateSession(ctx, testEvent, "side", at(9*60, 10*60), placement.Payload{})

	if _, _, err := svc.SaveTracks(ctx, testEvent, []placement.Track{{ID: "main", Name: " "}}); !errors.Is(err, ErrInvalidTracks) {
		t.Fatalf("blank name err = %v", err)
	}
	if _, _, err := svc.SaveTracks(ctx, testEvent, []placement.Track{{ID: "x", Name: "X"}, {ID: "x", Name: "Y"}}); !errors.Is(err, ErrInvalidTracks) {
		t.Fatalf("duplicate id err = %v", err)
	}

	tracks, removed, err := svc.SaveTracks(ctx, testEvent, []placement.Track{{ID: "main", Name: "Main"}, {Name: "Workshop"}})
	if err != nil {
		t.Fatalf("SaveTracks: %v", err)
	}
	if len(tracks) != 2 || tracks[1].ID == "" {
		t.Fatalf("tracks = %v", tracks)
	}
	if len(removed) != 1 || removed[0].TrackID != "side" {
		t.Fatalf("removed = %v", removed)
	}

	removed, err = svc.DeleteTrack(ctx, testEvent, "main")
	if err != nil {
		t.Fatalf("DeleteTrack: %v", err)
	}
	if len(removed) != 1 {
		t.Fatalf("removed = %v", removed)
	}
	if p := expectEvent(t, sub); p.String("track_id") != "main" {
		t.Fatalf("payload = %v", p)
	}
	if _, err := svc.DeleteTrack(ctx, testEvent, "main"); !errors.Is(err, placement.ErrNotFound) {
		t.Fatalf("second DeleteTrack err = %v", err)
	}
}

func TestUpdateDisplaySettings(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	current, err := svc.Display(ctx, testEvent)
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	next, _ := current.SetZoom(10)
	// Schedule dates cannot be changed through display settings.
	next.StartDate = day.AddDate(-1, 0, 0)

	saved, err := svc.UpdateDisplaySettings(ctx, testEvent, next)
	if err != nil {
		t.Fatalf("UpdateDisplaySettings: %v", err)
	}
	if saved.Zoom != display.ZoomMedium || !saved.StartDate.Equal(day) || st.display.Zoom != display.ZoomMedium {
		t.Fatalf("saved = %+v", saved)
	}

	bad := saved
	bad.VisibleStart, bad.VisibleEnd = 12*60, 11*60
	if _, err := svc.UpdateDisplaySettings(ctx, testEvent, bad); !errors.Is(err, display.ErrInvalidSettings) {
		t.Fatalf("bad settings err = %v", err)
	}
}

func TestGrid(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sess, _ := svc.CreateSession(ctx, testEvent, "main", at(8*60+15, 9*60), placement.Payload{Title: "Opening"})
	_, _ = svc.CreateSession(ctx, testEvent, "side", at(7*60, 8*60+30), placement.Payload{Title: "Early"})

	g, err := svc.Grid(ctx, testEvent, day)
	if err != nil {
		t.Fatalf("Grid: %v", err)
	}
	if g.Granularity != 15 || len(g.Slots) != 48 || len(g.Tracks) != 2 {
		t.Fatalf("grid shape: granularity=%d slots=%d tracks=%d", g.Granularity, len(g.Slots), len(g.Tracks))
	}
	if g.HourLabels[0] != "08:00" {
		t.Fatalf("hour labels = %v", g.HourLabels[:2])
	}

	main := g.Tracks[0].Cells
	if main[0].SessionID != "" {
		t.Fatalf("08:00 main should be free, got %+v", main[0])
	}
	for i := 1; i <= 3; i++ {
		if main[i].SessionID != sess.ID || !main[i].Covered {
			t.Fatalf("cell %d = %+v", i, main[i])
		}
	}
	if !main[1].Starts || main[2].Starts {
		t.Fatalf("starts flags wrong: %+v %+v", main[1], main[2])
	}
	if main[4].SessionID != "" {
		t.Fatalf("09:00 main should be free, got %+v", main[4])
	}

	side := g.Tracks[1].Cells
	if !side[0].Starts || side[2].SessionID != "" {
		t.Fatalf("running session cells: %+v %+v", side[0], side[2])
	}
	if len(g.Sessions) != 2 {
		t.Fatalf("sessions = %d", len(g.Sessions))
	}

	if !g.Window.Start.Equal(day.Add(8*time.Hour)) || !g.Window.End.Equal(day.Add(20*time.Hour)) {
		t.Fatalf("window = %v", g.Window)
	}
	spans := map[string]Span{}
	for _, sp := range g.Spans {
		spans[g.Sessions[sp.SessionID].Title] = sp
	}
	if sp := spans["Opening"]; sp.Label != "08:15 - 09:00" || len(sp.Slots) != 3 || sp.Clipped {
		t.Fatalf("opening span = %+v", sp)
	}
	if sp := spans["Early"]; sp.Label != "07:00 - 08:30" || len(sp.Slots) != 2 || !sp.Clipped {
		t.Fatalf("early span = %+v", sp)
	}

	if _, err := svc.Grid(ctx, testEvent, day.AddDate(0, 0, 5)); !errors.Is(err, display.ErrInvalidSettings) {
		t.Fatalf("out of range day err = %v", err)
	}
}

func TestInvalidateReloads(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Snapshot(ctx, testEvent); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	st.sessions["ext"] = placement.Session{ID: "ext", TrackID: "main", Interval: at(13*60, 14*60)}

	snap, _ := svc.Snapshot(ctx, testEvent)
	if len(snap.Sessions) != 0 {
		t.Fatal("cached snapshot should not see external write")
	}
	svc.Invalidate(testEvent)
	snap, _ = svc.Snapshot(ctx, testEvent)
	if len(snap.Sessions) != 1 || st.loads != 2 {
		t.Fatalf("sessions=%d loads=%d", len(snap.Sessions), st.loads)
	}

	svc.InvalidateAll()
	_, _ = svc.Snapshot(ctx, testEvent)
	if st.loads != 3 {
		t.Fatalf("loads = %d", st.loads)
	}
}

func TestRunInvalidatesOnPeerEvents(t *testing.T) {
	svc, st, bus := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx, bus)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	_, _ = svc.Snapshot(context.Background(), testEvent)
	// Wait for the listener to subscribe.
	deadline := time.Now().Add(time.Second)
	for bus.Subscribers(events.EventSessionCreated) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// Own events are ignored.
	bus.Publish(events.EventSessionCreated, events.Payload{events.KeyEventID: testEvent, events.KeyNodeID: "node-a"})
	bus.Publish(events.EventSessionCreated, events.Payload{events.KeyEventID: testEvent, events.KeyNodeID: "node-b"})

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		svc.mu.Lock()
		e := svc.schedules[testEvent]
		svc.mu.Unlock()
		e.mu.Lock()
		dropped := e.engine == nil
		e.mu.Unlock()
		if dropped {
			_, _ = svc.Snapshot(context.Background(), testEvent)
			if st.loads != 2 {
				t.Fatalf("loads = %d, want 2", st.loads)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("peer event did not invalidate the schedule")
}
