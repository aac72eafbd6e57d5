package store

import (
	"testing"

	"broadcaster/internal/models"
)

func TestSocialAccountStore(t *testing.T) {
	db := testDB(t)
	s := NewSocialAccountStore(db)
	u := testUser(t, db, "test-accounts@store-test.local")

	fb, err := s.Add(u.ID, models.PlatformFacebook, "Jane on Facebook", "fb-1", "tok")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if fb.GroupName != "facebook" || fb.Status != models.AccountValid || !fb.IsActive {
		t.Errorf("account = %+v", fb)
	}
	if _, err := s.Add(u.ID, models.PlatformFacebook, "Second profile", "", ""); err != nil {
		t.Fatal(err)
	}
	li, err := s.Add(u.ID, models.PlatformLinkedIn, "Jane on LinkedIn", "", "")
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.SetPlatformActive(u.ID, models.PlatformFacebook, false)
	if err != nil || n != 2 {
		t.Fatalf("SetPlatformActive: n=%d err=%v", n, err)
	}
	if ok, err := s.SetActive(li.ID, u.ID, false); err != nil || !ok {
		t.Fatalf("SetActive: ok=%v err=%v", ok, err)
	}

	accounts, err := s.ListByUser(u.ID)
	if err != nil || len(accounts) != 3 {
		t.Fatalf("ListByUser: %d err=%v", len(accounts), err)
	}
	for _, a := range accounts {
		if a.IsActive {
			t.Errorf("%s should be inactive", a.DisplayName)
		}
	}
}
