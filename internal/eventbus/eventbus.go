/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus selects the event transport shared by lineup instances.
package eventbus

import (
	"fmt"
	"os"

	"github.com/friendsincode/lineup/internal/config"
	"github.com/friendsincode/lineup/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NodeID returns the configured instance id, or hostname plus a random suffix.
func NodeID(cfg *config.Config) string {
	if cfg.InstanceID != "" {
		return cfg.InstanceID
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "lineup"
	}
	return host + "-" + uuid.NewString()[:8]
}

// New builds the broker selected by cfg.EventBus.
func New(cfg *config.Config, nodeID string, logger zerolog.Logger) (events.Broker, error) {
	switch cfg.EventBus {
	case config.EventBusMemory, "":
		return events.NewBus(), nil
	case config.EventBusRedis:
		rc := DefaultRedisConfig()
		rc.Addr = cfg.RedisAddr
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		return NewRedisBus(rc, nodeID, logger), nil
	case config.EventBusNATS:
		nc := DefaultNATSConfig()
		nc.URL = cfg.NATSURL
		nc.Token = cfg.NATSToken
		return NewNATSBus(nc, nodeID, logger), nil
	default:
		return nil, fmt.Errorf("unknown event bus backend: %s", cfg.EventBus)
	}
}
