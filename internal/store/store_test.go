// Integration tests for the stores. They share one migrated database and
// skip when PostgreSQL is not reachable.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"broadcaster/internal/database"
	"broadcaster/internal/models"
)

func testDSN() string {
	get := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		get("POSTGRES_USER", "broadcaster"), get("POSTGRES_PASSWORD", "changeme"),
		get("POSTGRES_HOST", "localhost"), get("POSTGRES_PORT", "5432"),
		get("POSTGRES_DB", "broadcaster"))
}

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := database.Connect(ctx, testDSN(), database.Pool{MaxOpen: 4, ConnectAttempts: 1})
	if err != nil {
		t.Skipf("skipping integration test: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// forgetUser deletes email now and again when the test ends. Pages,
// accounts and deliveries cascade.
func forgetUser(t *testing.T, db *sql.DB, email string) {
	t.Helper()
	drop := func() { db.Exec("DELETE FROM users WHERE email = $1", normalizeEmail(email)) }
	drop()
	t.Cleanup(drop)
}

func testUser(t *testing.T, db *sql.DB, email string) *models.User {
	t.Helper()
	forgetUser(t, db, email)

	u, err := NewUserStore(db).Create(email, "")
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return u
}
