// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	statePrefix = "oauth_state:"

	// StateTTL bounds how long a user has to finish the provider dialog.
	StateTTL = 10 * time.Minute
)

// IssueState returns a single-use OAuth state value bound to userID.
func (s *Store) IssueState(ctx context.Context, userID uuid.UUID) (string, error) {
	state, err := randomHex(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("state create: %w", err)
	}
	if err := s.client.Set(ctx, statePrefix+state, userID.String(), StateTTL).Err(); err != nil {
		return "", fmt.Errorf("state store: %w", err)
	}
	return state, nil
}

// ConsumeState resolves and deletes a state value. ok is false when the
// state is unknown, expired or already used.
func (s *Store) ConsumeState(ctx context.Context, state string) (userID uuid.UUID, ok bool, err error) {
	if state == "" {
		return uuid.Nil, false, nil
	}
	v, err := s.client.GetDel(ctx, statePrefix+state).Result()
	if err == redis.Nil {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("state consume: %w", err)
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("state consume: %w", err)
	}
	return id, true, nil
}
