package users

import (
	"context"
	"errors"
	"testing"
)

func TestUpsertAssignsStableID(t *testing.T) {
	repo := NewMemoryRepo()

	first, err := repo.Upsert(context.Background(), User{Email: "Jo@Example.com", Name: "Jo"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.ID == "" {
		t.Fatal("id not assigned")
	}
	if first.Email != "jo@example.com" {
		t.Fatalf("email not normalized: %q", first.Email)
	}

	second, err := repo.Upsert(context.Background(), User{Email: "jo@example.com", Name: "Joanna"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("id changed on upsert: %s vs %s", second.ID, first.ID)
	}
	if second.Name != "Joanna" {
		t.Fatalf("profile fields should refresh, got %q", second.Name)
	}
}

func TestLookupsByIDAndEmail(t *testing.T) {
	repo := NewMemoryRepo()
	user, _ := repo.Upsert(context.Background(), User{Email: "a@b.c"})

	byID, err := repo.GetByID(context.Background(), user.ID)
	if err != nil || byID.Email != "a@b.c" {
		t.Fatalf("GetByID = (%+v, %v)", byID, err)
	}
	byEmail, err := repo.GetByEmail(context.Background(), "A@B.C")
	if err != nil || byEmail.ID != user.ID {
		t.Fatalf("GetByEmail = (%+v, %v)", byEmail, err)
	}
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
