package services

import (
	"context"
	"fmt"
	"sync"

	"camp-ops-backend/internal/models"
	"camp-ops-backend/internal/repositories"

	"github.com/google/uuid"
)

// CacheEntry is a cached attendance record. Pending marks an optimistic entry that
// the store has not confirmed yet.
type CacheEntry struct {
	Record  models.AttendanceRecord
	Pending bool
}

// AttendanceCache holds attendance per (registration, child, date) key for one board.
// All transitions go through Begin, Confirm and Revert. Each transition stamps the
// key with a new generation so a reload that started earlier cannot overwrite it.
type AttendanceCache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	touched map[string]uint64
	gen     uint64
}

func NewAttendanceCache() *AttendanceCache {
	return &AttendanceCache{
		entries: make(map[string]CacheEntry),
		touched: make(map[string]uint64),
	}
}

// Generation returns the stamp of the latest transition. Take it before reading
// the stores and hand it to Replace.
func (c *AttendanceCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func (c *AttendanceCache) touchLocked(key string) {
	c.gen++
	c.touched[key] = c.gen
}

// StateMismatchError reports that Begin found the key in a different state.
type StateMismatchError struct {
	Key  string
	Want models.AttendanceState
	Got  models.AttendanceState
}

func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("attendance %s is %s, expected %s", e.Key, e.Got, e.Want)
}

// Begin installs an optimistic entry if the key is currently in state want and
// returns the entry it replaced (nil when the key was empty).
func (c *AttendanceCache) Begin(key string, rec models.AttendanceRecord, want models.AttendanceState) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.entries[key]
	var got models.AttendanceState
	if ok {
		got = prev.Record.State()
	} else {
		got = models.StateNotArrived
	}
	if got != want {
		return nil, &StateMismatchError{Key: key, Want: want, Got: got}
	}

	c.entries[key] = CacheEntry{Record: rec, Pending: true}
	c.touchLocked(key)
	if !ok {
		return nil, nil
	}
	return &prev, nil
}

// Confirm stores the authoritative record for key.
func (c *AttendanceCache) Confirm(key string, rec models.AttendanceRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = CacheEntry{Record: rec}
	c.touchLocked(key)
}

// Revert restores prev, or removes the key when prev is nil.
func (c *AttendanceCache) Revert(key string, prev *CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev == nil {
		delete(c.entries, key)
		delete(c.touched, key)
		c.gen++
		return
	}
	c.entries[key] = *prev
	c.touchLocked(key)
}

func (c *AttendanceCache) Get(key string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *AttendanceCache) State(key string) models.AttendanceState {
	e, ok := c.Get(key)
	if !ok {
		return models.StateNotArrived
	}
	return e.Record.State()
}

// Replace swaps in a set of records read from the stores after generation since.
// Entries still pending, or touched after since, are newer than the read and stay.
func (c *AttendanceCache) Replace(records map[string]models.AttendanceRecord, since uint64) {
	entries := make(map[string]CacheEntry, len(records))
	for k, rec := range records {
		entries[k] = CacheEntry{Record: rec}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	touched := make(map[string]uint64)
	for k, e := range c.entries {
		if g := c.touched[k]; e.Pending || g > since {
			entries[k] = e
			touched[k] = g
		}
	}
	c.entries = entries
	c.touched = touched
}

func (c *AttendanceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// LoadAttendanceBatch fetches attendance for every child of regs on date with one
// store query. On failure it returns an empty map together with the error.
func LoadAttendanceBatch(ctx context.Context, store repositories.AttendanceRepository, regs []models.Registration, date string) (map[string]models.AttendanceRecord, error) {
	out := make(map[string]models.AttendanceRecord)
	if len(regs) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, 0, len(regs))
	seen := make(map[uuid.UUID]bool, len(regs))
	for _, reg := range regs {
		if seen[reg.ID] {
			continue
		}
		seen[reg.ID] = true
		ids = append(ids, reg.ID)
	}

	recs, err := store.LoadBatch(ctx, ids, date)
	if err != nil {
		return make(map[string]models.AttendanceRecord), NewServiceError("failed to load attendance", ErrStoreUnavailable, err)
	}

	// Concurrent check-ins from two devices can leave duplicates; the earliest wins.
	for _, rec := range recs {
		key := rec.Key()
		if existing, ok := out[key]; ok && !rec.CheckInTime.Before(existing.CheckInTime) {
			continue
		}
		out[key] = rec
	}
	return out, nil
}
