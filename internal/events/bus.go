/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventSessionCreated  EventType = "schedule.session_created"
	EventSessionUpdated  EventType = "schedule.session_updated"
	EventSessionDeleted  EventType = "schedule.session_deleted"
	EventSessionsSwapped EventType = "schedule.sessions_swapped"
	EventTracksUpdated   EventType = "schedule.tracks_updated"
	EventTrackDeleted    EventType = "schedule.track_deleted"
	EventDisplayUpdated  EventType = "schedule.display_updated"

	EventFeedPublished EventType = "feed.published"
)

// ScheduleTypes lists every event that changes the schedule of an event.
var ScheduleTypes = []EventType{
	EventSessionCreated,
	EventSessionUpdated,
	EventSessionDeleted,
	EventSessionsSwapped,
	EventTracksUpdated,
	EventTrackDeleted,
	EventDisplayUpdated,
}

// Well-known payload keys.
const (
	KeyEventID = "event_id"
	KeyNodeID  = "node_id"
)

// Payload generic event payload.
type Payload map[string]any

// String returns the string value stored under key, or "".
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Subscriber receives event payloads.
type Subscriber chan Payload

// Publisher emits events.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Broker is a Publisher that also hands out subscriptions. The in-process Bus
// and the distributed buses implement it.
type Broker interface {
	Publisher
	Subscribe(eventType EventType) Subscriber
	Unsubscribe(eventType EventType, sub Subscriber)
	Close() error
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 32)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers miss events rather
// than block the publisher.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Subscribers reports how many subscribers are registered for eventType.
func (b *Bus) Subscribers(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}

// Unsubscribe removes the subscriber and closes it. Unknown subscribers are ignored.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			b.subs[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close is a no-op for the in-process bus.
func (b *Bus) Close() error { return nil }

// Merge subscribes to each type and fans the payloads into one channel,
// tagged with their type. The returned cancel func unsubscribes everything.
func Merge(b Broker, types ...EventType) (<-chan Message, func()) {
	out := make(chan Message, 32)
	done := make(chan struct{})
	var wg sync.WaitGroup
	subs := make([]Subscriber, len(types))
	for i, t := range types {
		subs[i] = b.Subscribe(t)
		wg.Add(1)
		go func(t EventType, sub Subscriber) {
			defer wg.Done()
			for payload := range sub {
				select {
				case out <- Message{Type: t, Payload: payload}:
				case <-done:
				}
			}
		}(t, subs[i])
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			for i, t := range types {
				b.Unsubscribe(t, subs[i])
			}
			go func() {
				wg.Wait()
				close(out)
			}()
		})
	}
	return out, cancel
}

// Message is a payload together with its event type.
type Message struct {
	Type    EventType
	Payload Payload
}
