package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AttendanceState is derived from an attendance record, never stored.
type AttendanceState string

const (
	StateNotArrived AttendanceState = "not_arrived"
	StatePresent    AttendanceState = "present"
	StateCheckedOut AttendanceState = "checked_out"
)

const (
	ActionItemOpen      = "open"
	ActionItemCompleted = "completed"
)

// DateLayout is the calendar-date format used in selected dates and attendance rows.
const DateLayout = "2006-01-02"

type AttendanceRecord struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RegistrationID uuid.UUID  `gorm:"type:uuid;not null;index:idx_attendance_key,priority:1" json:"registration_id"`
	ChildName      string     `gorm:"not null;index:idx_attendance_key,priority:2" json:"child_name"`
	Date           string     `gorm:"type:varchar(10);not null;index:idx_attendance_key,priority:3;index" json:"date"`
	CheckInTime    time.Time  `gorm:"not null" json:"check_in_time"`
	CheckOutTime   *time.Time `json:"check_out_time"`
	CheckedInBy    string     `gorm:"type:varchar(64)" json:"checked_in_by"`
	CheckOutNote   string     `json:"check_out_note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (a *AttendanceRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *AttendanceRecord) Key() string {
	return AttendanceKey(a.RegistrationID, a.ChildName, a.Date)
}

// State maps a possibly-nil record to its place in the check-in state machine.
func (a *AttendanceRecord) State() AttendanceState {
	switch {
	case a == nil:
		return StateNotArrived
	case a.CheckOutTime != nil:
		return StateCheckedOut
	default:
		return StatePresent
	}
}

func AttendanceKey(registrationID uuid.UUID, childName, date string) string {
	return fmt.Sprintf("%s-%s-%s", registrationID, childName, date)
}

// AccountsActionItem is the finance follow-up raised when a child attends unpaid.
type AccountsActionItem struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RegistrationID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"registration_id"`
	RegistrationNumber string     `json:"registration_number"`
	ChildName          string     `gorm:"not null" json:"child_name"`
	GuardianName       string     `json:"guardian_name"`
	GuardianEmail      string     `json:"guardian_email"`
	GuardianPhone      string     `json:"guardian_phone"`
	OutstandingAmount  float64    `json:"outstanding_amount"`
	CampType           string     `json:"camp_type"`
	Status             string     `gorm:"type:varchar(20);not null;default:'open';index" json:"status"` // open|completed
	ResolutionNote     string     `json:"resolution_note,omitempty"`
	ResolvedBy         string     `json:"resolved_by,omitempty"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (i *AccountsActionItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
