/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// EventBusBackend selects how schedule events reach other instances.
type EventBusBackend string

const (
	EventBusMemory EventBusBackend = "memory"
	EventBusRedis  EventBusBackend = "redis"
	EventBusNATS   EventBusBackend = "nats"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	BaseURL       string // Public base URL used in published feed links
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string
	TokenTTL      time.Duration

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Multi-instance configuration
	EventBus              EventBusBackend
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	NATSURL               string
	NATSToken             string
	InstanceID            string
	LeaderElectionEnabled bool
	CacheEnabled          bool

	// Feed publishing
	FeedPublishEnabled bool
	FeedSchedule       string // cron spec, e.g. "*/15 * * * *"
	FeedPrefix         string // object key prefix
	FeedDir            string // local directory used when no bucket is configured

	// S3 Object Storage configuration
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3UsePathStyle    bool   // Required for MinIO

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnvAny([]string{"LINEUP_ENV"}, "development"),
		HTTPBind:      getEnvAny([]string{"LINEUP_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:      getEnvIntAny([]string{"LINEUP_HTTP_PORT", "PORT"}, 8080),
		BaseURL:       getEnvAny([]string{"LINEUP_BASE_URL"}, ""),
		DBBackend:     DatabaseBackend(getEnvAny([]string{"LINEUP_DB_BACKEND"}, string(DatabasePostgres))),
		DBDSN:         getEnvAny([]string{"LINEUP_DB_DSN", "DATABASE_URL"}, ""),
		JWTSigningKey: getEnvAny([]string{"LINEUP_JWT_SIGNING_KEY"}, ""),
		TokenTTL:      time.Duration(getEnvIntAny([]string{"LINEUP_TOKEN_TTL_MINUTES"}, 720)) * time.Minute,

		TracingEnabled:    getEnvBoolAny([]string{"LINEUP_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"LINEUP_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"LINEUP_TRACING_SAMPLE_RATE"}, 1.0),

		EventBus:              EventBusBackend(getEnvAny([]string{"LINEUP_EVENT_BUS"}, string(EventBusMemory))),
		RedisAddr:             getEnvAny([]string{"LINEUP_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword:         getEnvAny([]string{"LINEUP_REDIS_PASSWORD"}, ""),
		RedisDB:               getEnvIntAny([]string{"LINEUP_REDIS_DB"}, 0),
		NATSURL:               getEnvAny([]string{"LINEUP_NATS_URL", "NATS_URL"}, "nats://localhost:4222"),
		NATSToken:             getEnvAny([]string{"LINEUP_NATS_TOKEN"}, ""),
		InstanceID:            getEnvAny([]string{"LINEUP_INSTANCE_ID"}, ""),
		LeaderElectionEnabled: getEnvBoolAny([]string{"LINEUP_LEADER_ELECTION_ENABLED"}, false),
		CacheEnabled:          getEnvBoolAny([]string{"LINEUP_CACHE_ENABLED"}, false),

		FeedPublishEnabled: getEnvBoolAny([]string{"LINEUP_FEED_PUBLISH_ENABLED"}, false),
		FeedSchedule:       getEnvAny([]string{"LINEUP_FEED_SCHEDULE"}, "*/15 * * * *"),
		FeedPrefix:         getEnvAny([]string{"LINEUP_FEED_PREFIX"}, "feeds/"),
		FeedDir:            getEnvAny([]string{"LINEUP_FEED_DIR"}, "./feeds"),

		S3AccessKeyID:     getEnvAny([]string{"LINEUP_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"LINEUP_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"LINEUP_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"LINEUP_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"LINEUP_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"LINEUP_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// Validate checks option combinations.
func (c *Config) Validate() error {
	switch c.DBBackend {
	case DatabasePostgres, DatabaseMySQL, DatabaseSQLite:
	default:
		return fmt.Errorf("unsupported database backend %q", c.DBBackend)
	}

	if c.DBDSN == "" {
		return fmt.Errorf("LINEUP_DB_DSN or DATABASE_URL must be provided")
	}

	if c.JWTSigningKey == "" {
		return fmt.Errorf("LINEUP_JWT_SIGNING_KEY must be provided")
	}

	switch c.EventBus {
	case EventBusMemory, EventBusRedis, EventBusNATS:
	default:
		return fmt.Errorf("unsupported event bus %q", c.EventBus)
	}

	if c.FeedPublishEnabled {
		if _, err := cron.ParseStandard(c.FeedSchedule); err != nil {
			return fmt.Errorf("invalid LINEUP_FEED_SCHEDULE %q: %w", c.FeedSchedule, err)
		}
	}

	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("LINEUP_TRACING_SAMPLE_RATE must be between 0 and 1")
	}

	if strings.EqualFold(c.Environment, "production") {
		if len(c.JWTSigningKey) < 32 {
			return fmt.Errorf("LINEUP_JWT_SIGNING_KEY must be at least 32 bytes in production")
		}
		if c.DBBackend == DatabaseSQLite {
			return fmt.Errorf("sqlite is not supported in production")
		}
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"JWT_SECRET":       "use LINEUP_JWT_SIGNING_KEY",
		"JWT_SIGNING_KEY":  "use LINEUP_JWT_SIGNING_KEY",
		"REDIS_ADDR":       "use LINEUP_REDIS_ADDR",
		"TRACING_ENABLED":  "use LINEUP_TRACING_ENABLED",
		"SCHEDULE_DB_PATH": "use LINEUP_DB_BACKEND=sqlite with LINEUP_DB_DSN",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
