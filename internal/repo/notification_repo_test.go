package repo

import (
	"testing"
	"time"
)

func TestClearedAt_Upsert(t *testing.T) {
	db := newRepoDB(t)
	u := seedUser(t, db, "A", "a")

	got, err := GetClearedAt(bg, db, u.ID)
	if err != nil || got != nil {
		t.Fatalf("expected nil mark for fresh user, got %v err=%v", got, err)
	}

	t1 := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := SetClearedAt(bg, db, u.ID, t1); err != nil {
		t.Fatalf("set: %v", err)
	}
	t2 := t1.Add(time.Hour)
	if err := SetClearedAt(bg, db, u.ID, t2); err != nil {
		t.Fatalf("set again: %v", err)
	}
	got, err = GetClearedAt(bg, db, u.ID)
	if err != nil || got == nil || !got.Equal(t2) {
		t.Fatalf("expected %v, got %v err=%v", t2, got, err)
	}
}
