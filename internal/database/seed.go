package database

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// DevUserEmail is the account Seed creates for local development.
const DevUserEmail = "dev@broadcaster.local"

// Seed creates a password-less development user when the users table is
// empty. Login by email alone works until a password is set.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	if _, err := db.Exec(`INSERT INTO users (email) VALUES ($1) ON CONFLICT (email) DO NOTHING`, DevUserEmail); err != nil {
		return fmt.Errorf("seed insert user: %w", err)
	}

	slog.Info("database seeded with development user", "email", DevUserEmail)
	return nil
}
