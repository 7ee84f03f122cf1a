package models

import (
	"testing"
	"time"
)

func TestDerivePaymentStatus(t *testing.T) {
	tests := []struct {
		paid, total float64
		want        string
	}{
		{0, 100, PaymentUnpaid},
		{-5, 100, PaymentUnpaid},
		{1, 100, PaymentPartial},
		{99.99, 100, PaymentPartial},
		{100, 100, PaymentPaid},
		{150, 100, PaymentPaid},
		{0, 0, PaymentPaid},
	}
	for _, tt := range tests {
		if got := DerivePaymentStatus(tt.paid, tt.total); got != tt.want {
			t.Errorf("DerivePaymentStatus(%v, %v) = %s, want %s", tt.paid, tt.total, got, tt.want)
		}
	}
}

func TestAttendanceState(t *testing.T) {
	var none *AttendanceRecord
	if none.State() != StateNotArrived {
		t.Fatalf("nil record should be not arrived")
	}
	rec := &AttendanceRecord{CheckInTime: time.Now()}
	if rec.State() != StatePresent {
		t.Fatalf("record without check-out should be present")
	}
	out := time.Now()
	rec.CheckOutTime = &out
	if rec.State() != StateCheckedOut {
		t.Fatalf("record with check-out should be checked out")
	}
}

func TestRegistrationHelpers(t *testing.T) {
	reg := Registration{
		TotalAmount: 100,
		AmountPaid:  30,
		Children:    []Child{{Name: "Amara", SelectedDates: []string{"2024-03-01"}}},
	}
	if reg.Outstanding() != 70 {
		t.Fatalf("outstanding = %v", reg.Outstanding())
	}
	if reg.FindChild("Amara") == nil || reg.FindChild("amara") != nil {
		t.Fatalf("FindChild should match names exactly")
	}
	if !reg.IsActive() {
		t.Fatalf("empty status counts as active")
	}
	reg.Status = RegistrationCancelled
	if reg.IsActive() {
		t.Fatalf("cancelled registration reported active")
	}
}
