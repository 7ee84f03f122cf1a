package services

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"camp-ops-backend/internal/models"
)

// ExpectedChild is one child due on-site on a given date.
type ExpectedChild struct {
	Registration models.Registration
	Child        models.Child
	Session      string
}

// ResolveExpected lists, in registration order, every child of an active registration
// whose selected dates contain date. It does no I/O.
func ResolveExpected(regs []models.Registration, date string) []ExpectedChild {
	out := make([]ExpectedChild, 0)
	for _, reg := range regs {
		if !reg.IsActive() {
			continue
		}
		for _, child := range reg.Children {
			if !child.HasDate(date) {
				continue
			}
			out = append(out, ExpectedChild{
				Registration: reg,
				Child:        child,
				Session:      SessionFor(child, date),
			})
		}
	}
	return out
}

// SessionFor picks the half/full session of child on date: the per-date map entry
// first, then the uniform session type, then full day. Legacy label arrays carry no
// date information and fall through to the uniform type.
func SessionFor(child models.Child, date string) string {
	raw := bytes.TrimSpace(child.SessionTypes)
	if len(raw) > 0 && raw[0] == '{' {
		var byDate map[string]interface{}
		if err := json.Unmarshal(raw, &byDate); err == nil {
			if label, ok := byDate[date].(string); ok {
				return NormalizeSession(label)
			}
		}
	}
	if child.SessionType != "" {
		return NormalizeSession(child.SessionType)
	}
	return models.SessionFull
}

// NormalizeSession folds free-form labels ("Half Day", "half-day", "AM half") to half|full.
func NormalizeSession(label string) string {
	if strings.Contains(strings.ToLower(label), "half") {
		return models.SessionHalf
	}
	return models.SessionFull
}

// SessionDates returns the dates keyed in a per-date session map, or nil for legacy shapes.
func SessionDates(child models.Child) []string {
	raw := bytes.TrimSpace(child.SessionTypes)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var byDate map[string]interface{}
	if err := json.Unmarshal(raw, &byDate); err != nil {
		return nil
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	return dates
}

// Today formats now as a calendar date in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(models.DateLayout)
}
