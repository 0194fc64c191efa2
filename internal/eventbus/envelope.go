/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/friendsincode/lineup/internal/events"
	"github.com/google/uuid"
)

// envelope is the wire format shared by the Redis and NATS buses.
type envelope struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalEnvelope(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(envelope{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

func unmarshalEnvelope(data []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Payload == nil {
		env.Payload = events.Payload{}
	}
	return &env, nil
}

// deliverRemote hands a message received from the broker to local subscribers.
// Messages this node published itself were already delivered locally and are
// skipped.
func deliverRemote(local *events.Bus, data []byte, nodeID string) (bool, error) {
	env, err := unmarshalEnvelope(data)
	if err != nil {
		return false, err
	}
	if env.NodeID == nodeID {
		return false, nil
	}
	local.Publish(env.EventType, env.Payload)
	return true, nil
}
