/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package export

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/lineup/internal/cache"
	"github.com/friendsincode/lineup/internal/events"
	"github.com/friendsincode/lineup/internal/schedule"
)

// Source yields schedule snapshots. *schedule.Service implements it.
type Source interface {
	Snapshot(ctx context.Context, eventID string) (schedule.Snapshot, error)
}

// Service renders feeds, caching them in Redis when available.
type Service struct {
	source Source
	cache  *cache.Cache
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a feed service. c may be nil.
func NewService(source Source, c *cache.Cache, logger zerolog.Logger) *Service {
	return &Service{
		source: source,
		cache:  c,
		logger: logger.With().Str("component", "feed").Logger(),
		now:    time.Now,
	}
}

// Feed returns the calendar of an event.
func (s *Service) Feed(ctx context.Context, eventID string) (Feed, error) {
	snap, err := s.source.Snapshot(ctx, eventID)
	if err != nil {
		return Feed{}, err
	}
	return s.render(ctx, snap)
}

func (s *Service) render(ctx context.Context, snap schedule.Snapshot) (Feed, error) {
	name := slugify(snap.Event.Name) + ".ics"
	if data, ok := s.cache.Feed(ctx, snap.Event.ID); ok {
		return Feed{Data: data, Filename: name, ContentType: ContentType}, nil
	}

	feed, err := RenderICal(snap, s.now())
	if err != nil {
		return Feed{}, err
	}
	if err := s.cache.SetFeed(ctx, snap.Event.ID, feed.Data); err != nil {
		s.logger.Debug().Err(err).Str("event_id", snap.Event.ID).Msg("feed not cached")
	}
	return feed, nil
}

// Run drops cached feeds on every schedule change, local or remote. It blocks
// until ctx is cancelled.
func (s *Service) Run(ctx context.Context, broker events.Broker) {
	msgs, cancel := events.Merge(broker, events.ScheduleTypes...)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			eventID := msg.Payload.String(events.KeyEventID)
			if eventID == "" {
				continue
			}
			if err := s.cache.InvalidateFeed(ctx, eventID); err != nil {
				s.logger.Warn().Err(err).Str("event_id", eventID).Msg("feed invalidation failed")
			}
		}
	}
}
