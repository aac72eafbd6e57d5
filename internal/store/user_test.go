// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"errors"
	"regexp"
	"testing"

	"github.com/google/uuid"

	"broadcaster/internal/models"
)

func TestUserStoreCreate(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)

	email := "test-create@store-test.local"
	forgetUser(t, db, email)

	user, err := s.Create(email, "testpass123")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.ID == uuid.Nil {
		t.Error("expected non-nil UUID")
	}
	if !user.HasPassword() {
		t.Fatal("expected password hash")
	}
	if *user.PasswordHash == "testpass123" {
		t.Error("password hash must not be plaintext")
	}
	if !s.CheckPassword(user, "testpass123") || s.CheckPassword(user, "wrong") {
		t.Error("CheckPassword mismatch")
	}

	if _, err := s.Create(email, ""); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second Create: got %v, want ErrDuplicate", err)
	}
}

func TestUserStoreFindOrCreate(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)

	email := "test-findorcreate@store-test.local"
	forgetUser(t, db, email)

	u1, created, err := s.FindOrCreate(email)
	if err != nil || !created {
		t.Fatalf("first FindOrCreate: created=%v err=%v", created, err)
	}
	if u1.HasPassword() {
		t.Error("auto-created users have no password")
	}

	u2, created, err := s.FindOrCreate(email)
	if err != nil || created {
		t.Fatalf("second FindOrCreate: created=%v err=%v", created, err)
	}
	if u1.ID != u2.ID {
		t.Errorf("ID mismatch: %s vs %s", u1.ID, u2.ID)
	}
}

func TestUserStoreEmailIgnoresCase(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	u := testUser(t, db, " Mixed.Case@Store-Test.local")

	if u.Email != "mixed.case@store-test.local" {
		t.Errorf("stored email = %q", u.Email)
	}
	found, err := s.FindByEmail("MIXED.CASE@store-test.LOCAL")
	if err != nil || found == nil || found.ID != u.ID {
		t.Errorf("FindByEmail = %v, %v", found, err)
	}
}

func TestUserStoreFindNotFound(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)

	if u, err := s.FindByID(uuid.New()); err != nil || u != nil {
		t.Errorf("FindByID: u=%v err=%v", u, err)
	}
	if u, err := s.FindByEmail("nobody@store-test.local"); err != nil || u != nil {
		t.Errorf("FindByEmail: u=%v err=%v", u, err)
	}
	if u, err := s.FindByAPIKey(""); err != nil || u != nil {
		t.Errorf("FindByAPIKey empty: u=%v err=%v", u, err)
	}
}

func TestUserStoreAPIKey(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	u := testUser(t, db, "test-apikey@store-test.local")

	key, err := s.RotateAPIKey(u.ID)
	if err != nil {
		t.Fatalf("RotateAPIKey: %v", err)
	}
	if !regexp.MustCompile(`^[0-9a-f]{13}$`).MatchString(key) {
		t.Errorf("key %q is not 13 hex chars", key)
	}

	found, err := s.FindByAPIKey(key)
	if err != nil {
		t.Fatalf("FindByAPIKey: %v", err)
	}
	if found == nil || found.ID != u.ID {
		t.Fatalf("FindByAPIKey returned %v", found)
	}

	next, err := s.RotateAPIKey(u.ID)
	if err != nil {
		t.Fatalf("second RotateAPIKey: %v", err)
	}
	if next == key {
		t.Fatal("rotation should produce a new key")
	}
	if old, _ := s.FindByAPIKey(key); old != nil {
		t.Error("old key should no longer resolve")
	}
}

func TestUserStoreSetPassword(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	u := testUser(t, db, "test-setpassword@store-test.local")

	if err := s.SetPassword(u.ID, "s3cret"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	reloaded, _ := s.FindByID(u.ID)
	if !s.CheckPassword(reloaded, "s3cret") {
		t.Error("new password should verify")
	}
}

func TestUserStoreOptimizelyConfig(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	u := testUser(t, db, "test-optimizely@store-test.local")

	cfg := models.OptimizelyConfig{
		ClientID:     models.NullIfEmpty("cid"),
		ClientSecret: models.NullIfEmpty("secret"),
		APIURL:       models.NullIfEmpty("https://api.cms.test"),
	}
	if err := s.SaveOptimizelyConfig(u.ID, cfg); err != nil {
		t.Fatalf("SaveOptimizelyConfig: %v", err)
	}

	got, err := s.GetOptimizelyConfig(u.ID)
	if err != nil {
		t.Fatalf("GetOptimizelyConfig: %v", err)
	}
	if models.Value(got.ClientID) != "cid" || models.Value(got.APIURL) != "https://api.cms.test" {
		t.Errorf("config = %+v", got)
	}
	if got.AuthToken != nil {
		t.Error("unset auth token should stay NULL")
	}

	if missing, err := s.GetOptimizelyConfig(uuid.New()); err != nil || missing != nil {
		t.Errorf("unknown user: %v %v", missing, err)
	}
}

func TestUserStoreDefaultContainer(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	u := testUser(t, db, "test-container@store-test.local")

	if err := s.SetDefaultContainer(u.ID, "container-1"); err != nil {
		t.Fatalf("SetDefaultContainer: %v", err)
	}
	got, _ := s.FindByID(u.ID)
	if models.Value(got.DefaultContainerID) != "container-1" {
		t.Errorf("default container = %v", got.DefaultContainerID)
	}

	if err := s.SetDefaultContainer(u.ID, ""); err != nil {
		t.Fatal(err)
	}
	got, _ = s.FindByID(u.ID)
	if got.DefaultContainerID != nil {
		t.Error("empty id should clear the container")
	}
}

func TestNewAPIKey(t *testing.T) {
	seen := map[string]bool{}
	for range 50 {
		k, err := NewAPIKey()
		if err != nil {
			t.Fatal(err)
		}
		if len(k) != APIKeyLen {
			t.Fatalf("len(%q) = %d", k, len(k))
		}
		if seen[k] {
			t.Fatalf("duplicate key %q", k)
		}
		seen[k] = true
	}
}
