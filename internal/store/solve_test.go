package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestSolveRepository_CreateAndGet(t *testing.T) {
	s := newTestStore(t)

	if err := s.Profiles().Create(sampleProfile("p1", "laptop")); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}

	solve := &Solve{
		ID:            "s1",
		ProfileID:     "p1",
		Mode:          "grid",
		Fingerprint:   "p:ff00",
		ExpectedPairs: 15,
		FoundPairs:    14,
		Unmatched:     json.RawMessage(`[3,17]`),
		Pairs:         json.RawMessage(`[{"a":0,"b":5,"score":1}]`),
		Warnings:      json.RawMessage(`[{"kind":"incomplete_pairing"}]`),
		DryRun:        true,
	}
	if err := s.Solves().Create(solve); err != nil {
		t.Fatalf("failed to create solve: %v", err)
	}

	got, err := s.Solves().GetByID("s1")
	if err != nil {
		t.Fatalf("failed to get solve: %v", err)
	}
	if got.ProfileID != "p1" || got.FoundPairs != 14 || !got.DryRun || got.Fingerprint != "p:ff00" {
		t.Errorf("got %+v", got)
	}
	if string(got.Unmatched) != `[3,17]` {
		t.Errorf("Unmatched = %s, want [3,17]", got.Unmatched)
	}
}

func TestSolveRepository_Defaults(t *testing.T) {
	s := newTestStore(t)

	if err := s.Solves().Create(&Solve{ID: "s1", Mode: "template", ExpectedPairs: 2, FoundPairs: 2}); err != nil {
		t.Fatalf("failed to create solve: %v", err)
	}

	got, err := s.Solves().GetByID("s1")
	if err != nil {
		t.Fatalf("failed to get solve: %v", err)
	}
	if got.ProfileID != "" {
		t.Errorf("ProfileID = %q, want empty", got.ProfileID)
	}
	if string(got.Pairs) != "[]" || string(got.Warnings) != "[]" {
		t.Errorf("Pairs = %s, Warnings = %s, want []", got.Pairs, got.Warnings)
	}
}

func TestSolveRepository_ProfileDeleteKeepsHistory(t *testing.T) {
	s := newTestStore(t)

	if err := s.Profiles().Create(sampleProfile("p1", "laptop")); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}
	if err := s.Solves().Create(&Solve{ID: "s1", ProfileID: "p1", Mode: "grid"}); err != nil {
		t.Fatalf("failed to create solve: %v", err)
	}
	if err := s.Profiles().Delete("p1"); err != nil {
		t.Fatalf("failed to delete profile: %v", err)
	}

	got, err := s.Solves().GetByID("s1")
	if err != nil {
		t.Fatalf("solve should survive profile deletion: %v", err)
	}
	if got.ProfileID != "" {
		t.Errorf("ProfileID = %q, want empty after profile deletion", got.ProfileID)
	}
}

func TestSolveRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Solves()

	for _, id := range []string{"s1", "s2", "s3"} {
		if err := repo.Create(&Solve{ID: id, Mode: "grid"}); err != nil {
			t.Fatalf("failed to create solve: %v", err)
		}
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("failed to list solves: %v", err)
	}
	if len(all) != 3 || all[0].ID != "s3" {
		t.Errorf("List(0) = %d solves, first %q; want 3, newest first", len(all), all[0].ID)
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatalf("failed to list solves: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) = %d solves, want 2", len(limited))
	}

	n, err := repo.DeleteBefore(time.Now().Add(time.Hour))
	if err != nil || n != 3 {
		t.Errorf("DeleteBefore() = %d, %v, want 3", n, err)
	}
	if _, err := repo.GetByID("s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after purge error = %v, want ErrNotFound", err)
	}
}
