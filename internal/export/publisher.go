/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package export

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/friendsincode/lineup/internal/events"
	"github.com/friendsincode/lineup/internal/leadership"
	"github.com/friendsincode/lineup/internal/models"
	"github.com/friendsincode/lineup/internal/storage"
	"github.com/friendsincode/lineup/internal/telemetry"
)

// EventLister lists the events whose feeds are published.
type EventLister interface {
	ListEvents(ctx context.Context) ([]models.Event, error)
}

// PublisherConfig configures feed publishing.
type PublisherConfig struct {
	Schedule string // standard cron spec
	Prefix   string // object key prefix
	Timeout  time.Duration
}

// Publisher uploads every event feed to object storage on a cron schedule. Only
// the leader publishes.
type Publisher struct {
	feeds   *Service
	events  EventLister
	objects storage.ObjectStore
	leader  leadership.Leader
	bus     events.Publisher
	config  PublisherConfig
	logger  zerolog.Logger
	cron    *cron.Cron
}

// NewPublisher creates a publisher. A nil leader publishes unconditionally.
func NewPublisher(feeds *Service, lister EventLister, objects storage.ObjectStore, leader leadership.Leader, bus events.Publisher, cfg PublisherConfig, logger zerolog.Logger) *Publisher {
	if leader == nil {
		leader = leadership.Always{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Publisher{
		feeds:   feeds,
		events:  lister,
		objects: objects,
		leader:  leader,
		bus:     bus,
		config:  cfg,
		logger:  logger.With().Str("component", "feed_publisher").Logger(),
	}
}

// Start schedules PublishAll. Stop must be called to release the scheduler.
func (p *Publisher) Start(ctx context.Context) error {
	sched, err := cron.ParseStandard(p.config.Schedule)
	if err != nil {
		return fmt.Errorf("parse feed schedule %q: %w", p.config.Schedule, err)
	}

	p.cron = cron.New()
	p.cron.Schedule(sched, cron.FuncJob(func() {
		runCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
		if err := p.PublishAll(runCtx); err != nil {
			p.logger.Error().Err(err).Msg("feed publishing failed")
		}
	}))
	p.cron.Start()
	p.logger.Info().Str("schedule", p.config.Schedule).Msg("feed publisher started")
	return nil
}

// Stop waits for a running publication to finish.
func (p *Publisher) Stop() {
	if p.cron == nil {
		return
	}
	<-p.cron.Stop().Done()
}

// PublishAll uploads the feed of every event. Failures of single events do not
// stop the others; they are joined into the returned error.
func (p *Publisher) PublishAll(ctx context.Context) error {
	if !p.leader.IsLeader() {
		p.logger.Debug().Msg("not leader, skipping feed publishing")
		telemetry.FeedPublishTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	start := time.Now()
	defer func() { telemetry.FeedPublishDuration.Observe(time.Since(start).Seconds()) }()

	list, err := p.events.ListEvents(ctx)
	if err != nil {
		telemetry.FeedPublishTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("list events: %w", err)
	}

	var errs []error
	for _, ev := range list {
		if _, err := p.PublishEvent(ctx, ev.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishEvent uploads the feed of one event and returns its object key.
func (p *Publisher) PublishEvent(ctx context.Context, eventID string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.publish", eventID)
	key, err := p.publish(ctx, eventID)
	telemetry.EndSpan(span, err)

	if err != nil {
		telemetry.FeedPublishTotal.WithLabelValues("error").Inc()
		p.logger.Warn().Err(err).Str("event_id", eventID).Msg("feed not published")
		return "", err
	}
	telemetry.FeedPublishTotal.WithLabelValues("success").Inc()
	if p.bus != nil {
		p.bus.Publish(events.EventFeedPublished, events.Payload{
			events.KeyEventID: eventID,
			"key":             key,
		})
	}
	return key, nil
}

func (p *Publisher) publish(ctx context.Context, eventID string) (string, error) {
	feed, err := p.feeds.Feed(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("render feed %s: %w", eventID, err)
	}
	key := FeedKey(p.config.Prefix, eventID)
	if err := p.objects.Put(ctx, key, feed.Data, feed.ContentType); err != nil {
		return "", fmt.Errorf("upload feed %s: %w", eventID, err)
	}
	return key, nil
}

// FeedKey is the object key of an event feed.
func FeedKey(prefix, eventID string) string {
	return path.Join(prefix, eventID+".ics")
}
