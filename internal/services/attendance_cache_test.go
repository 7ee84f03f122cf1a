package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"camp-ops-backend/internal/models"

	"github.com/google/uuid"
)

func TestCacheBeginConfirmRevert(t *testing.T) {
	c := NewAttendanceCache()
	key := "k"
	rec := models.AttendanceRecord{ID: uuid.New(), CheckInTime: time.Now()}

	prev, err := c.Begin(key, rec, models.StateNotArrived)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if prev != nil {
		t.Fatalf("expected nil previous entry for an empty key")
	}
	if e, _ := c.Get(key); !e.Pending || c.State(key) != models.StatePresent {
		t.Fatalf("expected pending present entry, got %+v", e)
	}

	if _, err := c.Begin(key, rec, models.StateNotArrived); err == nil {
		t.Fatalf("second Begin from NotArrived should fail")
	} else {
		var mismatch *StateMismatchError
		if !errors.As(err, &mismatch) || mismatch.Got != models.StatePresent {
			t.Fatalf("unexpected error %v", err)
		}
	}

	c.Revert(key, prev)
	if _, ok := c.Get(key); ok {
		t.Fatalf("revert to nil should delete the key")
	}

	c.Confirm(key, rec)
	out := time.Now()
	patched := rec
	patched.CheckOutTime = &out
	prev, err = c.Begin(key, patched, models.StatePresent)
	if err != nil {
		t.Fatalf("Begin checkout: %v", err)
	}
	c.Revert(key, prev)
	if e, _ := c.Get(key); e.Pending || c.State(key) != models.StatePresent {
		t.Fatalf("revert should restore confirmed present entry, got %+v", e)
	}
}

func TestCacheReplaceKeepsEntriesNewerThanTheRead(t *testing.T) {
	c := NewAttendanceCache()
	stored := models.AttendanceRecord{ID: uuid.New(), CheckInTime: time.Now()}
	c.Confirm("stale", stored)

	since := c.Generation()
	c.Confirm("confirmed", models.AttendanceRecord{ID: uuid.New(), CheckInTime: time.Now()})
	if _, err := c.Begin("pending", models.AttendanceRecord{ID: uuid.New(), CheckInTime: time.Now()}, models.StateNotArrived); err != nil {
		t.Fatal(err)
	}

	c.Replace(map[string]models.AttendanceRecord{"loaded": stored}, since)

	if _, ok := c.Get("stale"); ok {
		t.Fatalf("entry older than the read should be replaced")
	}
	if c.State("confirmed") != models.StatePresent {
		t.Fatalf("entry confirmed after the read started was dropped")
	}
	if e, ok := c.Get("pending"); !ok || !e.Pending {
		t.Fatalf("pending entry was dropped: %+v", e)
	}
	if c.State("loaded") != models.StatePresent || c.Len() != 3 {
		t.Fatalf("unexpected cache after replace, len %d", c.Len())
	}

	// A later reload with a fresh generation takes the stores' word again.
	c.Replace(map[string]models.AttendanceRecord{}, c.Generation())
	if c.Len() != 1 {
		t.Fatalf("only the pending entry should survive, len %d", c.Len())
	}
}

func TestLoadAttendanceBatchSingleQuery(t *testing.T) {
	store := &fakeAttendanceStore{}
	var regs []models.Registration
	for i := 0; i < 25; i++ {
		regs = append(regs, newRegistration("G", models.PaymentPaid, child("A", 1, "2024-03-01"), child("B", 1, "2024-03-01")))
	}
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	if _, err := store.CheckIn(context.Background(), regs[3].ID, "B", "staff", "2024-03-01", at); err != nil {
		t.Fatal(err)
	}

	got, err := LoadAttendanceBatch(context.Background(), store, regs, "2024-03-01")
	if err != nil {
		t.Fatalf("LoadAttendanceBatch: %v", err)
	}
	if store.batchCalls != 1 {
		t.Fatalf("expected exactly one store query, got %d", store.batchCalls)
	}
	if _, ok := got[models.AttendanceKey(regs[3].ID, "B", "2024-03-01")]; !ok || len(got) != 1 {
		t.Fatalf("unexpected batch result: %v", got)
	}
}

func TestLoadAttendanceBatchFailsSoft(t *testing.T) {
	store := &fakeAttendanceStore{batchErr: errors.New("connection refused")}
	regs := []models.Registration{newRegistration("G", models.PaymentPaid, child("A", 1, "2024-03-01"))}

	got, err := LoadAttendanceBatch(context.Background(), store, regs, "2024-03-01")
	if err == nil {
		t.Fatalf("expected the store error to be surfaced")
	}
	if CodeOf(err) != ErrStoreUnavailable {
		t.Fatalf("expected STORE_UNAVAILABLE, got %s", CodeOf(err))
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected an empty map, got %v", got)
	}
}

func TestLoadAttendanceBatchEarliestDuplicateWins(t *testing.T) {
	store := &fakeAttendanceStore{}
	reg := newRegistration("G", models.PaymentPaid, child("A", 1, "2024-03-01"))
	early := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	store.CheckIn(context.Background(), reg.ID, "A", "s2", "2024-03-01", early.Add(time.Minute))
	store.CheckIn(context.Background(), reg.ID, "A", "s1", "2024-03-01", early)

	got, _ := LoadAttendanceBatch(context.Background(), store, []models.Registration{reg}, "2024-03-01")
	if rec := got[models.AttendanceKey(reg.ID, "A", "2024-03-01")]; rec.CheckedInBy != "s1" {
		t.Fatalf("expected earliest record to win, got %+v", rec)
	}
}
