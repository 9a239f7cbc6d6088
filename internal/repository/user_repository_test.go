package repository

import "testing"

func TestUserGetByEmailIsCaseInsensitive(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewUserRepository(db)
	created := createTestUser(t, db, "mixed@example.com")

	got, err := repo.GetByEmail("  MIXED@Example.com ")
	if err != nil {
		t.Fatalf("get by email failed: %v", err)
	}
	if got == nil || got.ID != created.ID {
		t.Fatalf("expected user %d, got %+v", created.ID, got)
	}

	missing, err := repo.GetByEmail("nobody@example.com")
	if err != nil || missing != nil {
		t.Fatalf("missing email should return nil,nil got %+v err=%v", missing, err)
	}
}

func TestUserBumpCartVersion(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewUserRepository(db)
	user := createTestUser(t, db, "version@example.com")

	affected, err := repo.BumpCartVersion(user.ID, nil)
	if err != nil || affected != 1 {
		t.Fatalf("unconditional bump failed: affected=%d err=%v", affected, err)
	}

	stale := uint64(0)
	affected, err = repo.BumpCartVersion(user.ID, &stale)
	if err != nil {
		t.Fatalf("stale bump returned error: %v", err)
	}
	if affected != 0 {
		t.Fatalf("stale expected version should not bump, affected=%d", affected)
	}

	current := uint64(1)
	affected, err = repo.BumpCartVersion(user.ID, &current)
	if err != nil || affected != 1 {
		t.Fatalf("matching bump failed: affected=%d err=%v", affected, err)
	}

	reloaded, err := repo.GetByID(user.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload user failed: %v", err)
	}
	if reloaded.CartVersion != 2 {
		t.Fatalf("cart version want 2 got %d", reloaded.CartVersion)
	}
}
