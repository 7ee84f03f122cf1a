package services

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"camp-ops-backend/internal/models"
)

func TestResolveExpectedAmara(t *testing.T) {
	amara := child("Amara", 40, "2024-03-01")
	amara.SessionTypes = json.RawMessage(`{"2024-03-01":"half"}`)
	reg := newRegistration("Grace", models.PaymentPaid, amara)

	got := ResolveExpected([]models.Registration{reg}, "2024-03-01")
	if len(got) != 1 {
		t.Fatalf("expected 1 child on 2024-03-01, got %d", len(got))
	}
	if got[0].Child.Name != "Amara" || got[0].Session != models.SessionHalf {
		t.Fatalf("unexpected entry: %+v / %s", got[0].Child.Name, got[0].Session)
	}

	if next := ResolveExpected([]models.Registration{reg}, "2024-03-02"); len(next) != 0 {
		t.Fatalf("Amara should not be expected on 2024-03-02, got %d entries", len(next))
	}
}

func TestResolveExpectedMembershipIgnoresOtherRegistrations(t *testing.T) {
	const date = "2024-07-10"
	var regs []models.Registration
	want := 0
	for i := 0; i < 50; i++ {
		dates := []string{"2024-07-09"}
		if i%3 == 0 {
			dates = append(dates, date)
			want++
		}
		regs = append(regs, newRegistration(fmt.Sprintf("G%d", i), models.PaymentUnpaid, child(fmt.Sprintf("C%d", i), 10, dates...)))
	}

	got := ResolveExpected(regs, date)
	if len(got) != want {
		t.Fatalf("expected %d children, got %d", want, len(got))
	}
	for _, ec := range got {
		if !ec.Child.HasDate(date) {
			t.Fatalf("%s resolved for a date it did not select", ec.Child.Name)
		}
	}
}

func TestResolveExpectedSkipsCancelled(t *testing.T) {
	reg := newRegistration("Ines", models.PaymentPaid, child("Tom", 10, "2024-03-01"))
	reg.Status = models.RegistrationCancelled
	if got := ResolveExpected([]models.Registration{reg}, "2024-03-01"); len(got) != 0 {
		t.Fatalf("cancelled registration resolved %d children", len(got))
	}
}

func TestSessionFor(t *testing.T) {
	tests := []struct {
		name  string
		types string
		flat  string
		want  string
	}{
		{"per-date half", `{"2024-03-01":"Half Day"}`, "", models.SessionHalf},
		{"per-date full", `{"2024-03-01":"full"}`, "half", models.SessionFull},
		{"date missing from map uses uniform type", `{"2024-03-02":"half"}`, "half-day", models.SessionHalf},
		{"legacy label array", `["half","full"]`, "", models.SessionFull},
		{"legacy array with uniform type", `["AM"]`, "Half", models.SessionHalf},
		{"nothing set", ``, "", models.SessionFull},
		{"malformed json", `{"2024-03-01":`, "", models.SessionFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := child("X", 0, "2024-03-01")
			if tt.types != "" {
				c.SessionTypes = json.RawMessage(tt.types)
			}
			c.SessionType = tt.flat
			if got := SessionFor(c, "2024-03-01"); got != tt.want {
				t.Fatalf("SessionFor = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestToday(t *testing.T) {
	loc, err := time.LoadLocation("Pacific/Auckland")
	if err != nil {
		t.Skip("tzdata not available")
	}
	now := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	if got := Today(now, loc); got != "2024-03-02" {
		t.Fatalf("Today = %s, want 2024-03-02", got)
	}
	if got := Today(now, nil); got != "2024-03-01" {
		t.Fatalf("Today(nil loc) = %s, want 2024-03-01", got)
	}
}
