package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"camp-ops-backend/internal/models"
	"camp-ops-backend/internal/repositories"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultMaxBoards = 7

// AttendanceConsole owns one AttendanceBoard per viewed date. Boards are built on
// first use and dropped least-recently-used once more than maxBoards are open.
type AttendanceConsole struct {
	attendance    repositories.AttendanceRepository
	registrations repositories.RegistrationRepository
	notifier      *ReconciliationNotifier
	log           logrus.FieldLogger
	loc           *time.Location
	maxBoards     int

	mu     sync.Mutex
	boards map[string]*consoleBoard
}

type consoleBoard struct {
	board    *AttendanceBoard
	lastUsed time.Time
	// ready is closed once the first load has finished.
	ready chan struct{}
}

func NewAttendanceConsole(
	attendance repositories.AttendanceRepository,
	registrations repositories.RegistrationRepository,
	notifier *ReconciliationNotifier,
	loc *time.Location,
	log logrus.FieldLogger,
) *AttendanceConsole {
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceConsole{
		attendance:    attendance,
		registrations: registrations,
		notifier:      notifier,
		log:           log,
		loc:           loc,
		maxBoards:     defaultMaxBoards,
		boards:        make(map[string]*consoleBoard),
	}
}

// Today is the current calendar date in the console's timezone.
func (c *AttendanceConsole) Today() string {
	return Today(time.Now(), c.loc)
}

// Board returns the board for date, loading it on first use. Callers arriving
// while the first load runs wait for it. The last load error is returned
// alongside a usable, degraded board.
func (c *AttendanceConsole) Board(ctx context.Context, date string) (*AttendanceBoard, error) {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, NewServiceError("date must be YYYY-MM-DD", ErrInvalidInput, err)
	}

	c.mu.Lock()
	if cb, ok := c.boards[date]; ok {
		cb.lastUsed = time.Now()
		c.mu.Unlock()
		select {
		case <-cb.ready:
			return cb.board, cb.board.LoadErr()
		case <-ctx.Done():
			return nil, NewServiceError("attendance board is still loading", ErrStoreUnavailable, ctx.Err())
		}
	}
	cb := &consoleBoard{
		board:    NewAttendanceBoard(date, c.attendance, c.registrations, c.notifier, c.log),
		lastUsed: time.Now(),
		ready:    make(chan struct{}),
	}
	c.boards[date] = cb
	c.evictLocked()
	c.mu.Unlock()

	defer close(cb.ready)
	return cb.board, cb.board.Load(ctx)
}

// Reload rebuilds the board for date from the stores.
func (c *AttendanceConsole) Reload(ctx context.Context, date string) (*AttendanceBoard, error) {
	board, err := c.Board(ctx, date)
	if board == nil {
		return nil, err
	}
	return board, board.Load(ctx)
}

// Invalidate drops every board so the next access rebuilds it; used after
// registrations are created or purged.
func (c *AttendanceConsole) Invalidate() {
	c.mu.Lock()
	c.boards = make(map[string]*consoleBoard)
	c.mu.Unlock()
}

// ApplyPaymentStatus patches the payment status of a registration on every open board.
func (c *AttendanceConsole) ApplyPaymentStatus(id uuid.UUID, status string) int {
	patched := 0
	for _, b := range c.openBoards() {
		if b.ApplyPaymentStatus(id, status) {
			patched++
		}
	}
	return patched
}

// ApplyLifecycleStatus patches the status of a registration on every open board.
func (c *AttendanceConsole) ApplyLifecycleStatus(id uuid.UUID, status string) int {
	patched := 0
	for _, b := range c.openBoards() {
		if b.ApplyLifecycleStatus(id, status) {
			patched++
		}
	}
	return patched
}

func (c *AttendanceConsole) openBoards() []*AttendanceBoard {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*AttendanceBoard, 0, len(c.boards))
	for _, cb := range c.boards {
		out = append(out, cb.board)
	}
	return out
}

func (c *AttendanceConsole) evictLocked() {
	if len(c.boards) <= c.maxBoards {
		return
	}
	dates := make([]string, 0, len(c.boards))
	for d := range c.boards {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		return c.boards[dates[i]].lastUsed.Before(c.boards[dates[j]].lastUsed)
	})
	for _, d := range dates[:len(dates)-c.maxBoards] {
		delete(c.boards, d)
	}
}

// CheckIn checks a child in on date. The child must be booked for that date on an
// active registration.
func (c *AttendanceConsole) CheckIn(ctx context.Context, date string, registrationID uuid.UUID, childName, actorID string) (*CheckInResult, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, NewServiceError("an authenticated staff member is required to check in", ErrAuthRequired, nil)
	}
	board, reg, err := c.boardAndRegistration(ctx, date, registrationID)
	if err != nil {
		return nil, err
	}
	child := reg.FindChild(childName)
	if child == nil {
		return nil, NewServiceError("child not found on registration", ErrNotFound, nil)
	}
	if !reg.IsActive() || !child.HasDate(date) {
		return nil, NewServiceError(childName+" is not booked for "+date, ErrInvalidInput, nil)
	}
	return board.CheckIn(ctx, reg, childName, actorID)
}

func (c *AttendanceConsole) CheckOut(ctx context.Context, date string, registrationID uuid.UUID, childName, attendanceID, note string) (*models.AttendanceRecord, error) {
	board, reg, err := c.boardAndRegistration(ctx, date, registrationID)
	if err != nil {
		return nil, err
	}
	return board.CheckOut(ctx, attendanceID, reg, childName, note)
}

func (c *AttendanceConsole) boardAndRegistration(ctx context.Context, date string, registrationID uuid.UUID) (*AttendanceBoard, *models.Registration, error) {
	board, err := c.Board(ctx, date)
	if board == nil {
		return nil, nil, err
	}
	if held, ok := board.Registration(registrationID); ok {
		return board, &held, nil
	}
	reg, err := c.registrations.GetRegistrationByID(ctx, registrationID.String())
	if err != nil {
		return nil, nil, storeError("registration", err)
	}
	return board, reg, nil
}
