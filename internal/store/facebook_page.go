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

const pageColumns = `id, user_id, page_id, page_name, access_token, is_active, created_at`

// FacebookPageStore manages the pages users publish to.
type FacebookPageStore struct {
	db *sql.DB
}

// NewFacebookPageStore creates a new FacebookPageStore.
func NewFacebookPageStore(db *sql.DB) *FacebookPageStore {
	return &FacebookPageStore{db: db}
}

func (s *FacebookPageStore) list(op, query string, args ...any) ([]models.FacebookPage, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	pages := []models.FacebookPage{}
	for rows.Next() {
		var p models.FacebookPage
		if err := rows.Scan(&p.ID, &p.UserID, &p.PageID, &p.PageName, &p.AccessToken, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan facebook page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// ListByUser returns every page of the user, newest first.
func (s *FacebookPageStore) ListByUser(userID uuid.UUID) ([]models.FacebookPage, error) {
	return s.list("list facebook pages",
		`SELECT `+pageColumns+` FROM facebook_pages WHERE user_id = $1 ORDER BY created_at DESC, page_id`, userID)
}

// ListActive returns the user's active pages in the same order as ListByUser.
func (s *FacebookPageStore) ListActive(userID uuid.UUID) ([]models.FacebookPage, error) {
	return s.list("list active facebook pages",
		`SELECT `+pageColumns+` FROM facebook_pages WHERE user_id = $1 AND is_active ORDER BY created_at DESC, page_id`, userID)
}

// Add links a page to the user. Returns ErrDuplicate when the user already
// linked the same page id.
func (s *FacebookPageStore) Add(userID uuid.UUID, pageID, pageName, accessToken string) (*models.FacebookPage, error) {
	p := &models.FacebookPage{}
	err := s.db.QueryRow(`
		INSERT INTO facebook_pages (user_id, page_id, page_name, access_token)
		VALUES ($1, $2, $3, $4)
		RETURNING `+pageColumns,
		userID, pageID, pageName, models.NullIfEmpty(accessToken),
	).Scan(&p.ID, &p.UserID, &p.PageID, &p.PageName, &p.AccessToken, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("add facebook page: %w", err)
	}
	return p, nil
}

// Remove deletes one of the user's pages. Reports whether a row was deleted.
func (s *FacebookPageStore) Remove(id, userID uuid.UUID) (bool, error) {
	return s.affected("remove facebook page", `DELETE FROM facebook_pages WHERE id = $1 AND user_id = $2`, id, userID)
}

// SetActive switches a page in or out of fan-out.
func (s *FacebookPageStore) SetActive(id, userID uuid.UUID, active bool) (bool, error) {
	return s.affected("toggle facebook page",
		`UPDATE facebook_pages SET is_active = $1 WHERE id = $2 AND user_id = $3`, active, id, userID)
}

// UpdateName renames a page.
func (s *FacebookPageStore) UpdateName(id, userID uuid.UUID, name string) (bool, error) {
	return s.affected("rename facebook page",
		`UPDATE facebook_pages SET page_name = $1 WHERE id = $2 AND user_id = $3`, name, id, userID)
}

// UpdateToken replaces the stored token of the page with external id pageID.
func (s *FacebookPageStore) UpdateToken(userID uuid.UUID, pageID, token string) (bool, error) {
	return s.affected("update facebook page token",
		`UPDATE facebook_pages SET access_token = $1 WHERE user_id = $2 AND page_id = $3`, token, userID, pageID)
}

// ResetForUser deletes every page of the user and returns how many were removed.
func (s *FacebookPageStore) ResetForUser(userID uuid.UUID) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM facebook_pages WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("reset facebook pages: %w", err)
	}
	return res.RowsAffected()
}

func (s *FacebookPageStore) affected(op, query string, args ...any) (bool, error) {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}
