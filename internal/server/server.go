/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/lineup/internal/api"
	"github.com/friendsincode/lineup/internal/cache"
	"github.com/friendsincode/lineup/internal/config"
	"github.com/friendsincode/lineup/internal/db"
	"github.com/friendsincode/lineup/internal/eventbus"
	"github.com/friendsincode/lineup/internal/events"
	"github.com/friendsincode/lineup/internal/export"
	"github.com/friendsincode/lineup/internal/leadership"
	"github.com/friendsincode/lineup/internal/schedule"
	"github.com/friendsincode/lineup/internal/storage"
	"github.com/friendsincode/lineup/internal/store"
	"github.com/friendsincode/lineup/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error
	nodeID     string

	db        *gorm.DB
	store     *store.Store
	broker    events.Broker
	cache     *cache.Cache
	schedule  *schedule.Service
	feeds     *export.Service
	leader    leadership.Leader
	election  *leadership.Election
	publisher *export.Publisher
	api       *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("lineup-api"))
	router.Use(telemetry.MetricsMiddleware)
	// Gesture sockets are long lived; everything else gets the request timeout.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		nodeID: eventbus.NodeID(cfg),
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	if err := srv.startBackgroundWorkers(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.httpServer = &http.Server{
		Addr:    cfg.Addr(),
		Handler: srv.router,
		// Header deadline guards against slowloris. Write deadlines stay open for
		// gesture sockets; the middleware timeout covers ordinary routes.
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.DeferClose(func() error { return db.Close(database) })
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database
	s.store = store.New(database, s.logger)

	broker, err := eventbus.New(s.cfg, s.nodeID, s.logger)
	if err != nil {
		return err
	}
	s.broker = broker
	s.DeferClose(broker.Close)

	s.schedule = schedule.NewService(s.store, broker, s.logger, schedule.WithNodeID(s.nodeID))

	if s.cfg.CacheEnabled {
		cc := cache.DefaultConfig()
		cc.RedisAddr = s.cfg.RedisAddr
		cc.RedisPassword = s.cfg.RedisPassword
		cc.RedisDB = s.cfg.RedisDB
		s.cache = cache.New(cc, s.logger)
		s.DeferClose(s.cache.Close)
	}
	s.feeds = export.NewService(s.schedule, s.cache, s.logger)

	s.leader = leadership.Always{}
	if s.cfg.LeaderElectionEnabled {
		ec := leadership.DefaultConfig()
		ec.RedisAddr = s.cfg.RedisAddr
		ec.RedisPassword = s.cfg.RedisPassword
		ec.RedisDB = s.cfg.RedisDB
		ec.InstanceID = s.nodeID
		election, err := leadership.NewElection(ec, s.logger)
		if err != nil {
			return fmt.Errorf("leader election: %w", err)
		}
		s.election = election
		s.leader = election
	}

	if s.cfg.FeedPublishEnabled {
		objects, err := storage.New(context.Background(), s.cfg, s.logger)
		if err != nil {
			return fmt.Errorf("feed storage: %w", err)
		}
		s.publisher = export.NewPublisher(s.feeds, s.store, objects, s.leader, broker, export.PublisherConfig{
			Schedule: s.cfg.FeedSchedule,
			Prefix:   s.cfg.FeedPrefix,
		}, s.logger)
	}

	s.api = api.New(s.store, s.schedule, s.feeds, broker, []byte(s.cfg.JWTSigningKey), s.cfg.TokenTTL, s.logger)

	s.logger.Info().
		Str("node_id", s.nodeID).
		Str("db_backend", string(s.cfg.DBBackend)).
		Str("event_bus", string(s.cfg.EventBus)).
		Bool("cache", s.cfg.CacheEnabled).
		Bool("leader_election", s.cfg.LeaderElectionEnabled).
		Bool("feed_publish", s.cfg.FeedPublishEnabled).
		Msg("dependencies initialized")
	return nil
}

// HTTPServer exposes the underlying http.Server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.schedule.Run(ctx, s.broker)
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.feeds.Run(ctx, s.broker)
	}()

	if s.election != nil {
		s.election.Start(ctx)
	}

	if s.publisher != nil {
		if err := s.publisher.Start(ctx); err != nil {
			return err
		}
	}

	// Database metrics updater
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()
	return nil
}

func (s *Server) stopBackgroundWorkers() {
	if s.publisher != nil {
		s.publisher.Stop()
	}
	if s.election != nil {
		if err := s.election.Stop(); err != nil {
			s.logger.Warn().Err(err).Msg("leader election stop")
		}
		s.election = nil
	}
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

type healthResponse struct {
	Status string `json:"status"`
	NodeID string `json:"node_id"`
	Leader *bool  `json:"leader,omitempty"`
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", NodeID: s.nodeID}
		if s.cfg.LeaderElectionEnabled {
			leader := s.leader.IsLeader()
			resp.Leader = &leader
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}
