/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cache

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestUnreachableRedisDisablesCache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	c := New(cfg, zerolog.Nop())
	defer c.Close()

	if c.IsAvailable() {
		t.Fatal("cache should be disabled")
	}
	ctx := context.Background()
	if err := c.SetFeed(ctx, "ev", []byte("x")); err != nil {
		t.Fatalf("SetFeed: %v", err)
	}
	if _, ok := c.Feed(ctx, "ev"); ok {
		t.Fatal("disabled cache returned a hit")
	}
	if err := c.InvalidateFeed(ctx, "ev"); err != nil {
		t.Fatalf("InvalidateFeed: %v", err)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestNilCacheAlwaysMisses(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	if c.IsAvailable() {
		t.Fatal("nil cache available")
	}
	if _, ok := c.Feed(ctx, "ev"); ok {
		t.Fatal("nil cache hit")
	}
	if err := c.SetFeed(ctx, "ev", nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewDefaultsTTL(t *testing.T) {
	c := New(Config{RedisAddr: "127.0.0.1:1"}, zerolog.Nop())
	if c.config.FeedTTL != DefaultFeedTTL {
		t.Fatalf("FeedTTL = %v", c.config.FeedTTL)
	}
}
