// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"broadcaster/internal/models"
	"broadcaster/internal/publish"
)

// DeliveryStore persists per-destination publish outcomes.
type DeliveryStore struct {
	db *sql.DB
}

// NewDeliveryStore creates a new DeliveryStore.
func NewDeliveryStore(db *sql.DB) *DeliveryStore {
	return &DeliveryStore{db: db}
}

// RecordBatch stores every outcome of a batch in a single transaction.
func (s *DeliveryStore) RecordBatch(ctx context.Context, userID uuid.UUID, message string, outcomes []publish.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record deliveries begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO deliveries (user_id, page_id, page_name, status, external_post_id, error_message, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("record deliveries prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range outcomes {
		if _, err := stmt.ExecContext(ctx, userID, o.PageID, o.PageName, o.Status,
			models.NullIfEmpty(o.PostID), models.NullIfEmpty(o.Error), message); err != nil {
			return fmt.Errorf("record delivery %s: %w", o.PageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record deliveries commit: %w", err)
	}
	return nil
}

// ListRecent returns the user's latest deliveries, newest first.
func (s *DeliveryStore) ListRecent(userID uuid.UUID, limit int) ([]models.Delivery, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, page_id, page_name, status, external_post_id, error_message, message, created_at
		FROM deliveries WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	out := []models.Delivery{}
	for rows.Next() {
		var d models.Delivery
		if err := rows.Scan(&d.ID, &d.UserID, &d.PageID, &d.PageName, &d.Status,
			&d.ExternalPostID, &d.ErrorMessage, &d.Message, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
