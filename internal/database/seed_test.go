package database

import "testing"

func TestSeedIdempotent(t *testing.T) {
	db := openTestDB(t)
	if _, err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Other packages may share the database, so it is not cleared first.
	if err := Seed(db); err != nil {
		t.Fatalf("first Seed: %v", err)
	}
	if err := Seed(db); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	var users int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&users); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if users < 1 {
		t.Errorf("expected at least 1 user, got %d", users)
	}
}
