// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"broadcaster/internal/optimizely"
)

func newTestCache(t *testing.T, ttl time.Duration) (*ContainerCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewContainerCache(client, ttl), srv
}

func TestConnectValkey(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := ConnectValkey(context.Background(), srv.Host(), srv.Port(), "")
	if err != nil {
		t.Fatalf("ConnectValkey: %v", err)
	}
	defer client.Close()

	if pong, err := client.Ping(context.Background()).Result(); err != nil || pong != "PONG" {
		t.Errorf("Ping = %q, %v", pong, err)
	}
}

func TestConnectValkey_WrongPassword(t *testing.T) {
	srv := miniredis.RunT(t)
	srv.RequireAuth("secret")

	if _, err := ConnectValkey(context.Background(), srv.Host(), srv.Port(), "wrong"); err == nil {
		t.Error("expected an auth error")
	}
}

func TestContainerCacheSetGetInvalidate(t *testing.T) {
	cc, _ := newTestCache(t, time.Minute)
	ctx := context.Background()
	key := ContainerKey("https://graph.test", "k")

	if got, ok := cc.Get(ctx, key); ok || got != nil {
		t.Fatalf("expected miss, got %v", got)
	}

	want := []optimizely.Container{{Key: "a", DisplayName: "Home"}, {Key: "b", DisplayName: "Blog"}}
	cc.Set(ctx, key, want)

	got, ok := cc.Get(ctx, key)
	if !ok || len(got) != 2 || got[1] != want[1] {
		t.Fatalf("Get = %v, %v", got, ok)
	}

	cc.Invalidate(ctx, key)
	if _, ok := cc.Get(ctx, key); ok {
		t.Error("expected miss after invalidation")
	}
}

func TestContainerCacheExpires(t *testing.T) {
	cc, srv := newTestCache(t, time.Minute)
	ctx := context.Background()

	cc.Set(ctx, "k", []optimizely.Container{{Key: "a"}})
	srv.FastForward(2 * time.Minute)

	if _, ok := cc.Get(ctx, "k"); ok {
		t.Error("entry should have expired")
	}
}

func TestContainerCacheCorruptEntryIsMiss(t *testing.T) {
	cc, srv := newTestCache(t, time.Minute)
	srv.Set(containerKeyPrefix+"k", "{not json")

	if _, ok := cc.Get(context.Background(), "k"); ok {
		t.Error("corrupt entry must read as a miss")
	}
}

func TestContainerKey(t *testing.T) {
	a := ContainerKey("https://graph.test", "one")
	b := ContainerKey("https://graph.test", "two")
	if a == b {
		t.Error("different tokens must give different keys")
	}
	if a != ContainerKey("https://graph.test", "one") {
		t.Error("key must be deterministic")
	}
	if len(a) != 24 {
		t.Errorf("len = %d", len(a))
	}
}

func TestNewContainerCacheDefaultTTL(t *testing.T) {
	cc := NewContainerCache(nil, 0)
	if cc.ttl != DefaultContainerTTL {
		t.Errorf("expected DefaultContainerTTL (%v), got %v", DefaultContainerTTL, cc.ttl)
	}
}
