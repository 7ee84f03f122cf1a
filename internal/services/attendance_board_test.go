package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"camp-ops-backend/internal/models"
)

type boardFixture struct {
	board      *AttendanceBoard
	attendance *fakeAttendanceStore
	regs       *fakeRegistrationStore
	items      *fakeActionItems
}

func newBoardFixture(t *testing.T, date string, regs ...models.Registration) *boardFixture {
	t.Helper()
	f := &boardFixture{
		attendance: &fakeAttendanceStore{},
		regs:       &fakeRegistrationStore{regs: regs},
		items:      &fakeActionItems{},
	}
	notifier := NewReconciliationNotifier(f.items, testLog)
	f.board = NewAttendanceBoard(date, f.attendance, f.regs, notifier, testLog)
	clock := &testClock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), step: time.Minute}
	f.board.now = clock.Now
	if err := f.board.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return f
}

func TestBoardAmaraLifecycle(t *testing.T) {
	reg := newRegistration("Grace", models.PaymentPaid, child("Amara", 40, "2024-03-01"))
	f := newBoardFixture(t, "2024-03-01", reg)
	ctx := context.Background()
	key := models.AttendanceKey(reg.ID, "Amara", "2024-03-01")

	entries := f.board.Expected()
	if len(entries) != 1 || entries[0].State != models.StateNotArrived {
		t.Fatalf("unexpected expected list: %+v", entries)
	}

	res, err := f.board.CheckIn(ctx, &reg, "Amara", "staff-1")
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if res.FollowUpSent {
		t.Fatalf("paid registration should not raise a follow-up")
	}
	if got := f.board.Cache().State(key); got != models.StatePresent {
		t.Fatalf("state after check-in = %s", got)
	}

	out, err := f.board.CheckOut(ctx, "", &reg, "Amara", "picked up by mum")
	if err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if out.CheckOutTime == nil || !out.CheckOutTime.After(out.CheckInTime) {
		t.Fatalf("check_out_time %v not after check_in_time %v", out.CheckOutTime, out.CheckInTime)
	}
	if got := f.board.Cache().State(key); got != models.StateCheckedOut {
		t.Fatalf("state after check-out = %s", got)
	}

	if _, err := f.board.CheckIn(ctx, &reg, "Amara", "staff-1"); CodeOf(err) != ErrInvalidTransition {
		t.Fatalf("third action should be rejected with INVALID_TRANSITION, got %v", err)
	}
	if _, err := f.board.CheckOut(ctx, "", &reg, "Amara", ""); CodeOf(err) != ErrInvalidTransition {
		t.Fatalf("second check-out should be rejected, got %v", err)
	}
	if got := f.board.Cache().State(key); got != models.StateCheckedOut {
		t.Fatalf("state re-entered %s", got)
	}
	if n := f.attendance.count(reg.ID, "Amara", "2024-03-01"); n != 1 {
		t.Fatalf("expected 1 attendance record, got %d", n)
	}
}

func TestBoardCheckInRequiresActor(t *testing.T) {
	reg := newRegistration("Grace", models.PaymentPaid, child("Amara", 40, "2024-03-01"))
	f := newBoardFixture(t, "2024-03-01", reg)

	if _, err := f.board.CheckIn(context.Background(), &reg, "Amara", " "); CodeOf(err) != ErrAuthRequired {
		t.Fatalf("expected AUTH_REQUIRED, got %v", err)
	}
	if f.attendance.checkIns != 0 {
		t.Fatalf("store should not be touched without an actor")
	}
}

func TestBoardDoubleCheckInIsGuardedByCache(t *testing.T) {
	reg := newRegistration("Grace", models.PaymentPaid, child("Amara", 40, "2024-03-01"))
	f := newBoardFixture(t, "2024-03-01", reg)
	ctx := context.Background()

	if _, err := f.board.CheckIn(ctx, &reg, "Amara", "s"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.board.CheckIn(ctx, &reg, "Amara", "s"); CodeOf(err) != ErrAlreadyCheckedIn {
		t.Fatalf("expected ALREADY_CHECKED_IN, got %v", err)
	}
	if f.attendance.checkIns != 1 {
		t.Fatalf("expected one store write, got %d", f.attendance.checkIns)
	}
}

func TestBoardCheckInRollsBackOnStoreFailure(t *testing.T) {
	reg := newRegistration("Grace", models.PaymentUnpaid, child("Amara", 40, "2024-03-01"))
	f := newBoardFixture(t, "2024-03-01", reg)
	f.attendance.checkInErr = errors.New("insert failed")
	key := models.AttendanceKey(reg.ID, "Amara", "2024-03-01")

	_, err := f.board.CheckIn(context.Background(), &reg, "Amara", "s")
	if CodeOf(err) != ErrStoreUnavailable {
		t.Fatalf("expected STORE_UNAVAILABLE, got %v", err)
	}
	if _, ok := f.board.Cache().Get(key); ok {
		t.Fatalf("optimistic entry left behind after failed check-in")
	}
	if f.board.Cache().State(key) != models.StateNotArrived {
		t.Fatalf("expected NotArrived after rollback")
	}
	if f.items.open() != 0 {
		t.Fatalf("no follow-up should be raised for a failed check-in")
	}
}

func TestBoardCheckOutFailureReloads(t *testing.T) {
	reg := newRegistration("Grace", models.PaymentPaid, child("Amara", 40, "2024-03-01"))
	f := newBoardFixture(t, "2024-03-01", reg)
	ctx := context.Background()
	key := models.AttendanceKey(reg.ID, "Amara", "2024-03-01")

	if _, err := f.board.CheckIn(ctx, &reg, "Amara", "s"); err != nil {
		t.Fatal(err)
	}
	before := f.attendance.batchCalls
	f.attendance.checkOutErr = errors.New("timeout")

	if _, err := f.board.CheckOut(ctx, "", &reg, "Amara", ""); CodeOf(err) != ErrStoreUnavailable {
		t.Fatalf("expected STORE_UNAVAILABLE, got %v", err)
	}
	if f.attendance.batchCalls != before+1 {
		t.Fatalf("expected a full reload after check-out failure")
	}
	if e, _ := f.board.Cache().Get(key); e.Pending || e.Record.State() != models.StatePresent {
		t.Fatalf("reload should restore the stored present record, got %+v", e)
	}
}

func TestBoardUnpaidCheckInRaisesOneFollowUp(t *testing.T) {
	reg := newRegistration("Hana", models.PaymentUnpaid, child("Leo", 60, "2024-03-01"))
	f := newBoardFixture(t, "2024-03-01", reg)

	res, err := f.board.CheckIn(context.Background(), &reg, "Leo", "s")
	if err != nil {
		t.Fatal(err)
	}
	if !res.FollowUpSent || res.ActionItem == nil {
		t.Fatalf("expected a follow-up for an unpaid check-in")
	}
	if res.ActionItem.OutstandingAmount != 60 {
		t.Fatalf("outstanding = %v, want 60", res.ActionItem.OutstandingAmount)
	}
	if f.items.open() != 1 {
		t.Fatalf("expected 1 open item, got %d", f.items.open())
	}
}

func TestBoardUsesPatchedPaymentStatus(t *testing.T) {
	reg := newRegistration("Hana", models.PaymentUnpaid, child("Leo", 60, "2024-03-01"))
	f := newBoardFixture(t, "2024-03-01", reg)

	if !f.board.ApplyPaymentStatus(reg.ID, models.PaymentPaid) {
		t.Fatalf("expected patch to apply")
	}
	if f.board.ApplyPaymentStatus(reg.ID, models.PaymentPaid) {
		t.Fatalf("patching the same status twice should report no change")
	}
	held, _ := f.board.Registration(reg.ID)
	if held.GuardianName != "Hana" || held.TotalAmount != 60 {
		t.Fatalf("patch must not touch other fields: %+v", held)
	}

	res, err := f.board.CheckIn(context.Background(), &reg, "Leo", "s")
	if err != nil {
		t.Fatal(err)
	}
	if res.FollowUpSent || f.items.open() != 0 {
		t.Fatalf("paid (patched) registration should not raise a follow-up")
	}
}

func TestBoardLoadDegradesOnBatchFailure(t *testing.T) {
	reg := newRegistration("Grace", models.PaymentPaid, child("Amara", 40, "2024-03-01"))
	f := newBoardFixture(t, "2024-03-01", reg)
	if _, err := f.board.CheckIn(context.Background(), &reg, "Amara", "s"); err != nil {
		t.Fatal(err)
	}

	f.attendance.batchErr = errors.New("down")
	if err := f.board.Load(context.Background()); err == nil {
		t.Fatalf("expected the batch error to be returned")
	}
	entries := f.board.Expected()
	if len(entries) != 1 || entries[0].State != models.StateNotArrived {
		t.Fatalf("degraded board should list the child as not arrived, got %+v", entries)
	}
}

func TestBoardReloadKeepsCheckInMadeDuringLoad(t *testing.T) {
	reg := newRegistration("Grace", models.PaymentPaid, child("Amara", 40, "2024-03-01"))
	f := newBoardFixture(t, "2024-03-01", reg)
	ctx := context.Background()
	key := models.AttendanceKey(reg.ID, "Amara", "2024-03-01")

	read := make(chan struct{})
	release := make(chan struct{})
	f.attendance.afterBatchRead = func() {
		close(read)
		<-release
	}
	loaded := make(chan error, 1)
	go func() { loaded <- f.board.Load(ctx) }()
	<-read
	f.attendance.afterBatchRead = nil

	if _, err := f.board.CheckIn(ctx, &reg, "Amara", "staff-1"); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	close(release)
	if err := <-loaded; err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := f.board.Cache().State(key); got != models.StatePresent {
		t.Fatalf("check-in made during the reload was lost, state = %s", got)
	}
	if _, err := f.board.CheckIn(ctx, &reg, "Amara", "staff-2"); CodeOf(err) != ErrAlreadyCheckedIn {
		t.Fatalf("expected ALREADY_CHECKED_IN, got %v", err)
	}
	if n := f.attendance.count(reg.ID, "Amara", "2024-03-01"); n != 1 {
		t.Fatalf("expected 1 attendance record, got %d", n)
	}
}

func TestBoardLifecycleStatusPatch(t *testing.T) {
	reg := newRegistration("Grace", models.PaymentPaid, child("Amara", 40, "2024-03-01"))
	f := newBoardFixture(t, "2024-03-01", reg)

	if !f.board.ApplyLifecycleStatus(reg.ID, models.RegistrationCancelled) {
		t.Fatalf("expected patch to apply")
	}
	if f.board.ApplyLifecycleStatus(reg.ID, models.RegistrationCancelled) {
		t.Fatalf("patching the same status twice should report no change")
	}
	if entries := f.board.Expected(); len(entries) != 0 {
		t.Fatalf("cancelled registration still expected: %+v", entries)
	}
}
