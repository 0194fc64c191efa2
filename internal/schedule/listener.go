/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"

	"github.com/friendsincode/lineup/internal/events"
)

// Run drops cached schedules when another instance changes them. It blocks until
// ctx is cancelled.
func (s *Service) Run(ctx context.Context, broker events.Broker) {
	msgs, cancel := events.Merge(broker, events.ScheduleTypes...)
	defer cancel()

	s.logger.Info().Str("node_id", s.nodeID).Msg("schedule invalidation listener started")
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if msg.Payload.String(events.KeyNodeID) == s.nodeID {
				continue
			}
			eventID := msg.Payload.String(events.KeyEventID)
			if eventID == "" {
				continue
			}
			s.Invalidate(eventID)
			s.logger.Debug().Str("event_id", eventID).Str("type", string(msg.Type)).Msg("schedule invalidated by peer")
		}
	}
}
