package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"camp-ops-backend/internal/models"
	"camp-ops-backend/internal/repositories"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ExpectedEntry is one row of the attendance screen: an expected child and where it
// stands in the check-in state machine.
type ExpectedEntry struct {
	Key                string                   `json:"key"`
	RegistrationID     uuid.UUID                `json:"registration_id"`
	RegistrationNumber string                   `json:"registration_number"`
	GuardianName       string                   `json:"guardian_name"`
	GuardianPhone      string                   `json:"guardian_phone"`
	CampType           string                   `json:"camp_type"`
	PaymentStatus      string                   `json:"payment_status"`
	Child              models.Child             `json:"child"`
	Session            string                   `json:"session"`
	State              models.AttendanceState   `json:"state"`
	Pending            bool                     `json:"pending"`
	Attendance         *models.AttendanceRecord `json:"attendance,omitempty"`
}

type CheckInResult struct {
	Record       models.AttendanceRecord    `json:"record"`
	FollowUpSent bool                       `json:"follow_up_sent"`
	ActionItem   *models.AccountsActionItem `json:"action_item,omitempty"`
}

// AttendanceBoard is the attendance view of one calendar date: the registrations
// expected that day, their cached attendance, and the check-in/check-out transitions.
type AttendanceBoard struct {
	date          string
	attendance    repositories.AttendanceRepository
	registrations repositories.RegistrationRepository
	notifier      *ReconciliationNotifier
	cache         *AttendanceCache
	log           logrus.FieldLogger
	now           func() time.Time

	mu       sync.RWMutex
	regs     []models.Registration
	loadedAt time.Time
	loadErr  error
}

func NewAttendanceBoard(
	date string,
	attendance repositories.AttendanceRepository,
	registrations repositories.RegistrationRepository,
	notifier *ReconciliationNotifier,
	log logrus.FieldLogger,
) *AttendanceBoard {
	return &AttendanceBoard{
		date:          date,
		attendance:    attendance,
		registrations: registrations,
		notifier:      notifier,
		cache:         NewAttendanceCache(),
		log:           log.WithField("date", date),
		now:           time.Now,
	}
}

func (b *AttendanceBoard) Date() string { return b.date }

func (b *AttendanceBoard) Cache() *AttendanceCache { return b.cache }

// LoadErr is the error of the most recent load, nil when the board is current.
func (b *AttendanceBoard) LoadErr() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loadErr
}

// Load rebuilds the board from the stores: one registration query and one
// attendance query. Read failures degrade the board instead of failing it; the
// error is returned and kept until the next load (see LoadErr).
func (b *AttendanceBoard) Load(ctx context.Context) error {
	since := b.cache.Generation()
	regs, err := b.registrations.ListActiveRegistrations(ctx, b.date)
	if err != nil {
		b.log.WithError(err).Warn("registration load failed, keeping previous list")
		b.mu.Lock()
		if b.loadedAt.IsZero() {
			b.regs = []models.Registration{}
		}
		b.loadErr = NewServiceError("failed to load registrations", ErrStoreUnavailable, err)
		b.mu.Unlock()
		return b.LoadErr()
	}

	records, batchErr := LoadAttendanceBatch(ctx, b.attendance, regs, b.date)

	b.mu.Lock()
	b.regs = regs
	b.loadedAt = b.now()
	b.loadErr = batchErr
	b.mu.Unlock()
	b.cache.Replace(records, since)

	if batchErr != nil {
		b.log.WithError(batchErr).Warn("attendance batch load failed, showing nobody checked in")
		return batchErr
	}
	b.log.WithField("registrations", len(regs)).WithField("records", len(records)).Debug("attendance board loaded")
	return nil
}

// Expected lists every expected child with its current attendance state.
func (b *AttendanceBoard) Expected() []ExpectedEntry {
	b.mu.RLock()
	resolved := ResolveExpected(b.regs, b.date)
	b.mu.RUnlock()

	out := make([]ExpectedEntry, 0, len(resolved))
	for _, ec := range resolved {
		key := models.AttendanceKey(ec.Registration.ID, ec.Child.Name, b.date)
		entry := ExpectedEntry{
			Key:                key,
			RegistrationID:     ec.Registration.ID,
			RegistrationNumber: ec.Registration.RegistrationNumber,
			GuardianName:       ec.Registration.GuardianName,
			GuardianPhone:      ec.Registration.GuardianPhone,
			CampType:           ec.Registration.CampType,
			PaymentStatus:      ec.Registration.PaymentStatus,
			Child:              ec.Child,
			Session:            ec.Session,
			State:              models.StateNotArrived,
		}
		if ce, ok := b.cache.Get(key); ok {
			rec := ce.Record
			entry.Attendance = &rec
			entry.State = rec.State()
			entry.Pending = ce.Pending
		}
		out = append(out, entry)
	}
	return out
}

// Registration returns the board's copy of a registration.
func (b *AttendanceBoard) Registration(id uuid.UUID) (models.Registration, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, reg := range b.regs {
		if reg.ID == id {
			return reg, true
		}
	}
	return models.Registration{}, false
}

// ApplyPaymentStatus patches only the payment status of the held registration.
// It reports whether anything changed.
func (b *AttendanceBoard) ApplyPaymentStatus(id uuid.UUID, status string) bool {
	return b.patchRegistration(id, func(reg *models.Registration) bool {
		if reg.PaymentStatus == status {
			return false
		}
		reg.PaymentStatus = status
		return true
	})
}

// ApplyLifecycleStatus patches the held registration's status. A cancelled
// registration drops out of Expected and can no longer be checked in.
func (b *AttendanceBoard) ApplyLifecycleStatus(id uuid.UUID, status string) bool {
	return b.patchRegistration(id, func(reg *models.Registration) bool {
		if reg.Status == status {
			return false
		}
		reg.Status = status
		return true
	})
}

func (b *AttendanceBoard) patchRegistration(id uuid.UUID, patch func(*models.Registration) bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.regs {
		if b.regs[i].ID == id {
			return patch(&b.regs[i])
		}
	}
	return false
}

func (b *AttendanceBoard) paymentStatus(reg *models.Registration) string {
	if held, ok := b.Registration(reg.ID); ok {
		return held.PaymentStatus
	}
	return reg.PaymentStatus
}

// CheckIn moves a child from NotArrived to Present on the board's date.
func (b *AttendanceBoard) CheckIn(ctx context.Context, reg *models.Registration, childName, actorID string) (*CheckInResult, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, NewServiceError("an authenticated staff member is required to check in", ErrAuthRequired, nil)
	}
	if reg == nil || reg.FindChild(childName) == nil {
		return nil, NewServiceError("child not found on registration", ErrNotFound, nil)
	}

	log := b.log.WithFields(logrus.Fields{
		"registration_id": reg.ID,
		"child":           childName,
		"actor_id":        actorID,
	})
	key := models.AttendanceKey(reg.ID, childName, b.date)
	now := b.now()

	optimistic := models.AttendanceRecord{
		ID:             uuid.New(),
		RegistrationID: reg.ID,
		ChildName:      childName,
		Date:           b.date,
		CheckInTime:    now,
		CheckedInBy:    actorID,
	}
	prev, err := b.cache.Begin(key, optimistic, models.StateNotArrived)
	if err != nil {
		return nil, transitionError(err)
	}

	rec, err := b.attendance.CheckIn(ctx, reg.ID, childName, actorID, b.date, now)
	if err != nil {
		b.cache.Revert(key, prev)
		log.WithError(err).Error("check-in failed, optimistic entry rolled back")
		return nil, NewServiceError("failed to record check-in", ErrStoreUnavailable, err)
	}

	authoritative, err := b.attendance.HasCheckedInOnDate(ctx, reg.ID, childName, b.date)
	if err != nil || authoritative == nil {
		if err != nil {
			log.WithError(err).Warn("could not refresh check-in, using insert result")
		}
		authoritative = rec
	}
	b.cache.Confirm(key, *authoritative)

	result := &CheckInResult{Record: *authoritative}
	if b.paymentStatus(reg) != models.PaymentPaid && b.notifier != nil {
		created, item, nerr := b.notifier.CreateUnpaidCheckInItem(ctx, reg, childName)
		if nerr != nil {
			log.WithError(nerr).Warn("check-in recorded but finance follow-up could not be created")
		} else {
			result.FollowUpSent = created
			result.ActionItem = item
		}
	}

	log.Info("child checked in")
	return result, nil
}

// CheckOut moves a Present child to CheckedOut. On a store failure the whole board is
// reloaded, since the state before the optimistic patch cannot be rebuilt locally.
func (b *AttendanceBoard) CheckOut(ctx context.Context, attendanceID string, reg *models.Registration, childName, note string) (*models.AttendanceRecord, error) {
	if reg == nil {
		return nil, NewServiceError("registration is required", ErrInvalidInput, nil)
	}
	key := models.AttendanceKey(reg.ID, childName, b.date)
	log := b.log.WithFields(logrus.Fields{"registration_id": reg.ID, "child": childName})

	current, ok := b.cache.Get(key)
	if !ok || current.Record.State() != models.StatePresent {
		return nil, NewServiceError("child is not checked in", ErrInvalidTransition, nil)
	}
	if current.Pending {
		return nil, NewServiceError("check-in is still being saved", ErrInvalidTransition, nil)
	}
	if attendanceID == "" {
		attendanceID = current.Record.ID.String()
	}
	if attendanceID != current.Record.ID.String() {
		return nil, NewServiceError("attendance record does not match child", ErrInvalidInput, nil)
	}

	now := b.now()
	patched := current.Record
	patched.CheckOutTime = &now
	patched.CheckOutNote = note
	prev, err := b.cache.Begin(key, patched, models.StatePresent)
	if err != nil {
		return nil, transitionError(err)
	}

	rec, err := b.attendance.CheckOut(ctx, attendanceID, note, now)
	if err != nil {
		if errors.Is(err, repositories.ErrAlreadyCheckedOut) && rec != nil {
			b.cache.Confirm(key, *rec)
			return nil, NewServiceError("child was already checked out", ErrInvalidTransition, err)
		}
		log.WithError(err).Error("check-out failed, reloading board")
		b.cache.Revert(key, prev)
		if rerr := b.Load(ctx); rerr != nil {
			log.WithError(rerr).Warn("reload after check-out failure failed")
		}
		return nil, NewServiceError("failed to record check-out", ErrStoreUnavailable, err)
	}

	b.cache.Confirm(key, *rec)
	log.Info("child checked out")
	return rec, nil
}

func transitionError(err error) error {
	var mismatch *StateMismatchError
	if !errors.As(err, &mismatch) {
		return err
	}
	switch mismatch.Got {
	case models.StatePresent:
		return NewServiceError("child is already checked in", ErrAlreadyCheckedIn, err)
	case models.StateCheckedOut:
		return NewServiceError("child has already been checked out for this date", ErrInvalidTransition, err)
	default:
		return NewServiceError("child is not checked in", ErrInvalidTransition, err)
	}
}
