// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// containers.go caches CMS container listings in Valkey so the dashboard
// does not hit the Graph API on every publish form load.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"broadcaster/internal/optimizely"
)

const (
	containerKeyPrefix = "containers:"

	// DefaultContainerTTL is how long a container listing stays cached.
	DefaultContainerTTL = 5 * time.Minute
)

// ContainerCache stores container listings per Graph endpoint and key.
type ContainerCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewContainerCache creates a container cache backed by the given Valkey client.
func NewContainerCache(client redis.Cmdable, ttl time.Duration) *ContainerCache {
	if ttl == 0 {
		ttl = DefaultContainerTTL
	}
	return &ContainerCache{client: client, ttl: ttl}
}

// Get returns the cached listing for key.
func (c *ContainerCache) Get(ctx context.Context, key string) ([]optimizely.Container, bool) {
	val, err := c.client.Get(ctx, containerKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("container cache get error", "error", err)
		return nil, false
	}

	var containers []optimizely.Container
	if err := json.Unmarshal(val, &containers); err != nil {
		slog.Warn("container cache decode error", "error", err)
		return nil, false
	}
	slog.Debug("container cache hit")
	return containers, true
}

// Set stores a listing under key with the configured TTL.
func (c *ContainerCache) Set(ctx context.Context, key string, containers []optimizely.Container) {
	payload, err := json.Marshal(containers)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, containerKeyPrefix+key, payload, c.ttl).Err(); err != nil {
		slog.Warn("container cache set error", "error", err)
	}
}

// Invalidate drops the listing for key, e.g. after credentials change.
func (c *ContainerCache) Invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, containerKeyPrefix+key).Err(); err != nil {
		slog.Warn("container cache invalidate error", "error", err)
	}
}

// ContainerKey derives a cache key from the Graph endpoint and token
// without storing the token itself.
func ContainerKey(endpoint, authToken string) string {
	sum := sha256.Sum256([]byte(endpoint + "\x00" + authToken))
	return hex.EncodeToString(sum[:12])
}
