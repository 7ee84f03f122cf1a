package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"camp-ops-backend/internal/models"
	"camp-ops-backend/internal/repositories"
	"camp-ops-backend/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var testLog = logger.Discard()

type fakeAttendanceStore struct {
	mu         sync.Mutex
	records    []models.AttendanceRecord
	batchCalls int
	checkIns   int

	checkInErr  error
	checkOutErr error
	lookupErr   error
	batchErr    error

	// afterBatchRead runs once LoadBatch has read its rows, before returning them.
	afterBatchRead func()
}

func (f *fakeAttendanceStore) CheckIn(ctx context.Context, registrationID uuid.UUID, childName, actorID, date string, at time.Time) (*models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkIns++
	if f.checkInErr != nil {
		return nil, f.checkInErr
	}
	rec := models.AttendanceRecord{
		ID:             uuid.New(),
		RegistrationID: registrationID,
		ChildName:      childName,
		Date:           date,
		CheckInTime:    at,
		CheckedInBy:    actorID,
	}
	f.records = append(f.records, rec)
	return &rec, nil
}

func (f *fakeAttendanceStore) CheckOut(ctx context.Context, attendanceID, note string, at time.Time) (*models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkOutErr != nil {
		return nil, f.checkOutErr
	}
	for i := range f.records {
		if f.records[i].ID.String() != attendanceID {
			continue
		}
		if f.records[i].CheckOutTime != nil {
			rec := f.records[i]
			return &rec, repositories.ErrAlreadyCheckedOut
		}
		f.records[i].CheckOutTime = &at
		f.records[i].CheckOutNote = note
		rec := f.records[i]
		return &rec, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAttendanceStore) HasCheckedInOnDate(ctx context.Context, registrationID uuid.UUID, childName, date string) (*models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	var found *models.AttendanceRecord
	for i := range f.records {
		r := f.records[i]
		if r.RegistrationID == registrationID && r.ChildName == childName && r.Date == date {
			if found == nil || r.CheckInTime.Before(found.CheckInTime) {
				found = &r
			}
		}
	}
	return found, nil
}

func (f *fakeAttendanceStore) LoadBatch(ctx context.Context, registrationIDs []uuid.UUID, date string) ([]models.AttendanceRecord, error) {
	out, err := f.readBatch(registrationIDs, date)
	if hook := f.afterBatchRead; hook != nil {
		hook()
	}
	return out, err
}

func (f *fakeAttendanceStore) readBatch(registrationIDs []uuid.UUID, date string) ([]models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	want := make(map[uuid.UUID]bool, len(registrationIDs))
	for _, id := range registrationIDs {
		want[id] = true
	}
	out := []models.AttendanceRecord{}
	for _, r := range f.records {
		if want[r.RegistrationID] && r.Date == date {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAttendanceStore) count(registrationID uuid.UUID, childName, date string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.records {
		if r.RegistrationID == registrationID && r.ChildName == childName && r.Date == date {
			n++
		}
	}
	return n
}

type fakeRegistrationStore struct {
	mu      sync.Mutex
	regs    []models.Registration
	listErr error
	getErr  error

	// beforeList runs at the start of every ListActiveRegistrations call.
	beforeList func()
}

func (f *fakeRegistrationStore) CreateRegistration(ctx context.Context, reg *models.Registration, nextNumber func() string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	reg.RegistrationNumber = nextNumber()
	f.regs = append(f.regs, *reg)
	return nil
}

func (f *fakeRegistrationStore) GetRegistrationByID(ctx context.Context, id string) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, r := range f.regs {
		if r.ID.String() == id {
			reg := r
			return &reg, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRegistrationStore) GetRegistrationByNumber(ctx context.Context, number string) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.regs {
		if r.RegistrationNumber == number {
			reg := r
			return &reg, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRegistrationStore) ListActiveRegistrations(ctx context.Context, date string) ([]models.Registration, error) {
	if hook := f.beforeList; hook != nil {
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []models.Registration{}
	for _, r := range f.regs {
		if r.IsActive() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRegistrationStore) SearchRegistrations(ctx context.Context, term string) ([]models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Registration{}
	for _, r := range f.regs {
		if strings.Contains(strings.ToLower(r.GuardianName), strings.ToLower(term)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRegistrationStore) UpdatePaymentStatus(ctx context.Context, id string, update repositories.PaymentUpdate) error {
	return f.mutate(id, func(r *models.Registration) {
		r.PaymentStatus = update.Status
		r.PaymentMethod = update.Method
		r.PaymentReference = update.Reference
		r.AmountPaid = update.AmountPaid
	})
}

func (f *fakeRegistrationStore) UpdateLifecycleStatus(ctx context.Context, id, status string) error {
	return f.mutate(id, func(r *models.Registration) { r.Status = status })
}

func (f *fakeRegistrationStore) AppendAdminNote(ctx context.Context, id string, note models.AdminNote) (*models.Registration, error) {
	var out models.Registration
	err := f.mutate(id, func(r *models.Registration) {
		r.AdminNotes = append(r.AdminNotes, note)
		out = *r
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (f *fakeRegistrationStore) DeleteRegistrations(ctx context.Context, ids []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.regs[:0]
	var n int64
	for _, r := range f.regs {
		if drop[r.ID.String()] {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.regs = kept
	return n, nil
}

func (f *fakeRegistrationStore) mutate(id string, fn func(*models.Registration)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.regs {
		if f.regs[i].ID.String() == id {
			fn(&f.regs[i])
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeActionItems struct {
	mu    sync.Mutex
	items []models.AccountsActionItem
}

func (f *fakeActionItems) FindOpen(ctx context.Context, registrationID uuid.UUID, childName string) (*models.AccountsActionItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.RegistrationID == registrationID && it.ChildName == childName && it.Status == models.ActionItemOpen {
			item := it
			return &item, nil
		}
	}
	return nil, nil
}

func (f *fakeActionItems) CreateActionItem(ctx context.Context, item *models.AccountsActionItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	f.items = append(f.items, *item)
	return nil
}

func (f *fakeActionItems) GetActionItemByID(ctx context.Context, id string) (*models.AccountsActionItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.ID.String() == id {
			item := it
			return &item, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeActionItems) ListActionItems(ctx context.Context, status string, registrationID string) ([]models.AccountsActionItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.AccountsActionItem{}
	for _, it := range f.items {
		if (status == "" || it.Status == status) && (registrationID == "" || it.RegistrationID.String() == registrationID) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeActionItems) CompleteActionItem(ctx context.Context, id, resolvedBy, note string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID.String() == id && f.items[i].Status == models.ActionItemOpen {
			f.complete(i, resolvedBy, note, at)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeActionItems) CompleteOpenByRegistration(ctx context.Context, registrationID uuid.UUID, resolvedBy, note string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.items {
		if f.items[i].RegistrationID == registrationID && f.items[i].Status == models.ActionItemOpen {
			f.complete(i, resolvedBy, note, at)
			n++
		}
	}
	return n, nil
}

func (f *fakeActionItems) complete(i int, resolvedBy, note string, at time.Time) {
	f.items[i].Status = models.ActionItemCompleted
	f.items[i].ResolvedBy = resolvedBy
	f.items[i].ResolutionNote = note
	f.items[i].ResolvedAt = &at
}

func (f *fakeActionItems) open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, it := range f.items {
		if it.Status == models.ActionItemOpen {
			n++
		}
	}
	return n
}

// testClock advances by step on every call.
type testClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func newRegistration(guardian, paymentStatus string, children ...models.Child) models.Registration {
	var total float64
	for _, c := range children {
		total += c.Price
	}
	paid := 0.0
	if paymentStatus == models.PaymentPaid {
		paid = total
	}
	return models.Registration{
		ID:                 uuid.New(),
		RegistrationNumber: "CAMP-240301-" + strings.ToUpper(uuid.NewString()[:6]),
		GuardianName:       guardian,
		GuardianPhone:      "+15550100",
		Children:           children,
		CampType:           "spring",
		TotalAmount:        total,
		AmountPaid:         paid,
		PaymentStatus:      paymentStatus,
		Kind:               models.KindGround,
		Status:             models.RegistrationActive,
	}
}

func child(name string, price float64, dates ...string) models.Child {
	return models.Child{Name: name, SelectedDates: dates, Price: price}
}

var errNoDisk = errors.New("no space left on device")
