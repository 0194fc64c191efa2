/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package leadership elects the instance that runs cluster-wide jobs such as feed
// publishing.
package leadership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/lineup/internal/telemetry"
)

const (
	defaultElectionKey     = "lineup:leader:publisher"
	defaultLeaseDuration   = 15 * time.Second
	defaultRenewalInterval = 5 * time.Second
)

// Leader reports whether this instance should run cluster-wide jobs.
type Leader interface {
	IsLeader() bool
}

// Always is the Leader of a single-instance deployment.
type Always struct{}

// IsLeader always returns true.
func (Always) IsLeader() bool { return true }

// ElectionConfig configures leader election behavior.
type ElectionConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ElectionKey is the Redis key holding the leader's instance id.
	ElectionKey string
	// LeaseDuration is how long a lease stays valid without renewal.
	LeaseDuration time.Duration
	// RenewalInterval is how often every instance campaigns or renews.
	RenewalInterval time.Duration

	InstanceID string
}

// DefaultConfig returns default election configuration.
func DefaultConfig() ElectionConfig {
	return ElectionConfig{
		RedisAddr:       "localhost:6379",
		ElectionKey:     defaultElectionKey,
		LeaseDuration:   defaultLeaseDuration,
		RenewalInterval: defaultRenewalInterval,
	}
}

// Election runs a Redis lease based election.
type Election struct {
	client *redis.Client
	logger zerolog.Logger
	config ElectionConfig

	leader   atomic.Bool
	leaderCh chan bool
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewElection connects to Redis. It fails when Redis cannot be reached.
func NewElection(cfg ElectionConfig, logger zerolog.Logger) (*Election, error) {
	if cfg.InstanceID == "" {
		return nil, errors.New("instance id required")
	}
	if cfg.ElectionKey == "" {
		cfg.ElectionKey = defaultElectionKey
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = defaultLeaseDuration
	}
	if cfg.RenewalInterval <= 0 || cfg.RenewalInterval >= cfg.LeaseDuration {
		cfg.RenewalInterval = cfg.LeaseDuration / 3
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis for leader election: %w", err)
	}

	return &Election{
		client:   client,
		logger:   logger.With().Str("component", "leader_election").Str("instance_id", cfg.InstanceID).Logger(),
		config:   cfg,
		leaderCh: make(chan bool, 1),
	}, nil
}

// Start campaigns in the background until ctx is cancelled or Stop is called.
func (e *Election) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.logger.Info().Dur("lease", e.config.LeaseDuration).Msg("starting leader election")

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.config.RenewalInterval)
		defer ticker.Stop()
		e.campaign(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.campaign(ctx)
			}
		}
	}()
}

// Stop ends the campaign and releases the lease if held.
func (e *Election) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()

	if e.leader.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.release(ctx); err != nil {
			e.logger.Error().Err(err).Msg("release leadership")
		}
		e.setLeader(false)
	}
	return e.client.Close()
}

// IsLeader reports whether this instance holds the lease.
func (e *Election) IsLeader() bool {
	return e.leader.Load()
}

// LeaderCh receives leadership changes. Changes are dropped when nobody reads.
func (e *Election) LeaderCh() <-chan bool {
	return e.leaderCh
}

func (e *Election) campaign(ctx context.Context) {
	held, err := e.acquire(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("leader election round failed")
		held = false
	}
	e.setLeader(held)
}

// acquire takes the lease if it is free and renews it if this instance holds it.
func (e *Election) acquire(ctx context.Context) (bool, error) {
	ok, err := e.client.SetNX(ctx, e.config.ElectionKey, e.config.InstanceID, e.config.LeaseDuration).Result()
	if err != nil {
		return false, fmt.Errorf("set lease: %w", err)
	}
	if ok {
		return true, nil
	}

	current, err := e.client.Get(ctx, e.config.ElectionKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get lease: %w", err)
	}
	if current != e.config.InstanceID {
		return false, nil
	}
	if err := e.client.Expire(ctx, e.config.ElectionKey, e.config.LeaseDuration).Err(); err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	return true, nil
}

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

func (e *Election) release(ctx context.Context) error {
	if err := e.client.Eval(ctx, releaseScript, []string{e.config.ElectionKey}, e.config.InstanceID).Err(); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	e.logger.Info().Msg("released leadership")
	return nil
}

func (e *Election) setLeader(leader bool) {
	if e.leader.Swap(leader) == leader {
		return
	}
	id := e.config.InstanceID
	if leader {
		e.logger.Info().Msg("acquired leadership")
		telemetry.LeaderElectionStatus.WithLabelValues(id).Set(1)
		telemetry.LeaderElectionChanges.WithLabelValues(id, "acquired").Inc()
	} else {
		e.logger.Warn().Msg("lost leadership")
		telemetry.LeaderElectionStatus.WithLabelValues(id).Set(0)
		telemetry.LeaderElectionChanges.WithLabelValues(id, "lost").Inc()
	}
	select {
	case e.leaderCh <- leader:
	default:
	}
}
