// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"broadcaster/internal/models"
)

// SocialAccountStore manages linked social profiles.
type SocialAccountStore struct {
	db *sql.DB
}

// NewSocialAccountStore creates a new SocialAccountStore.
func NewSocialAccountStore(db *sql.DB) *SocialAccountStore {
	return &SocialAccountStore{db: db}
}

// ListByUser returns the user's accounts grouped by platform.
func (s *SocialAccountStore) ListByUser(userID uuid.UUID) ([]models.SocialAccount, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, platform, platform_user_id, display_name, is_active,
		       access_token, status, group_name, created_at
		FROM social_accounts WHERE user_id = $1
		ORDER BY platform, created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list social accounts: %w", err)
	}
	defer rows.Close()

	accounts := []models.SocialAccount{}
	for rows.Next() {
		var a models.SocialAccount
		if err := rows.Scan(&a.ID, &a.UserID, &a.Platform, &a.PlatformUserID, &a.DisplayName,
			&a.IsActive, &a.AccessToken, &a.Status, &a.GroupName, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan social account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Add links an account. The group defaults to the platform name.
func (s *SocialAccountStore) Add(userID uuid.UUID, platform models.Platform, displayName, platformUserID, accessToken string) (*models.SocialAccount, error) {
	a := &models.SocialAccount{}
	err := s.db.QueryRow(`
		INSERT INTO social_accounts (user_id, platform, display_name, group_name, platform_user_id, access_token)
		VALUES ($1, $2, $3, $2, $4, $5)
		RETURNING id, user_id, platform, platform_user_id, display_name, is_active,
		          access_token, status, group_name, created_at
	`, userID, platform, displayName, models.NullIfEmpty(platformUserID), models.NullIfEmpty(accessToken)).Scan(
		&a.ID, &a.UserID, &a.Platform, &a.PlatformUserID, &a.DisplayName,
		&a.IsActive, &a.AccessToken, &a.Status, &a.GroupName, &a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("add social account: %w", err)
	}
	return a, nil
}

// SetActive toggles a single account owned by the user.
func (s *SocialAccountStore) SetActive(id, userID uuid.UUID, active bool) (bool, error) {
	res, err := s.db.Exec(`UPDATE social_accounts SET is_active = $1 WHERE id = $2 AND user_id = $3`, active, id, userID)
	if err != nil {
		return false, fmt.Errorf("toggle social account: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetPlatformActive toggles every account of the user on one platform.
func (s *SocialAccountStore) SetPlatformActive(userID uuid.UUID, platform models.Platform, active bool) (int64, error) {
	res, err := s.db.Exec(`UPDATE social_accounts SET is_active = $1 WHERE user_id = $2 AND platform = $3`, active, userID, platform)
	if err != nil {
		return 0, fmt.Errorf("toggle social account group: %w", err)
	}
	return res.RowsAffected()
}
