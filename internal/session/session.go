// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package session issues the bearer tokens of the dashboard API and the
// one-shot OAuth state values, both kept in Valkey.
//
// A token is 32 random bytes, hex encoded. Only its SHA-256 digest is used
// as the Valkey key, so a dump of the keyspace cannot be replayed. Every
// successful lookup pushes the expiry out again.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the idle lifetime of a token.
const DefaultTTL = 7 * 24 * time.Hour

const (
	keyPrefix    = "token:"
	tokenBytes   = 32
	bearerPrefix = "Bearer "
)

// Data is stored against a token.
type Data struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps tokens and OAuth states.
type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewStore returns a Store on client. A non-positive ttl means DefaultTTL.
func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Create issues a token for data.
func (s *Store) Create(ctx context.Context, data *Data) (string, error) {
	token, err := randomHex(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("session create: %w", err)
	}
	data.CreatedAt = time.Now().UTC()

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("session marshal: %w", err)
	}
	if err := s.client.Set(ctx, tokenKey(token), payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("session store: %w", err)
	}
	return token, nil
}

// Get resolves token and renews its expiry. Unknown or expired tokens
// yield nil, nil.
func (s *Store) Get(ctx context.Context, token string) (*Data, error) {
	if token == "" {
		return nil, nil
	}
	payload, err := s.client.GetEx(ctx, tokenKey(token), s.ttl).Bytes()
	switch {
	case err == redis.Nil:
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("session get: %w", err)
	}

	data := new(Data)
	if err := json.Unmarshal(payload, data); err != nil {
		return nil, fmt.Errorf("session unmarshal: %w", err)
	}
	return data, nil
}

// Destroy revokes token. Revoking an unknown token is not an error.
func (s *Store) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.client.Del(ctx, tokenKey(token)).Err(); err != nil {
		return fmt.Errorf("session destroy: %w", err)
	}
	return nil
}

// TokenFromRequest returns the bearer token of r, or "".
func TokenFromRequest(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) <= len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(bearerPrefix):])
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
