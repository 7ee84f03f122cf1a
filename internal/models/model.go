package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleAdmin   = "admin"
	RoleFinance = "finance"
	RoleStaff   = "staff"
)

const (
	RegistrationActive    = "active"
	RegistrationCancelled = "cancelled"
)

const (
	KindOnlineUnpaid = "online_unpaid"
	KindOnlinePaid   = "online_paid"
	KindGround       = "ground"
)

const (
	SessionHalf = "half"
	SessionFull = "full"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	Role      string    `gorm:"type:varchar(20);not null;default:'staff'" json:"role"` // admin|finance|staff
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type Registration struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RegistrationNumber string    `gorm:"uniqueIndex;not null" json:"registration_number"`

	GuardianName  string `gorm:"not null" json:"guardian_name"`
	GuardianEmail string `json:"guardian_email"`
	GuardianPhone string `json:"guardian_phone"`

	Children datatypes.JSONSlice[Child] `json:"children"`
	CampType string                     `gorm:"index" json:"camp_type"`

	TotalAmount      float64 `gorm:"not null;default:0" json:"total_amount"`
	AmountPaid       float64 `gorm:"not null;default:0" json:"amount_paid"`
	PaymentStatus    string  `gorm:"type:varchar(20);not null;default:'unpaid';index" json:"payment_status"` // unpaid|partial|paid
	PaymentMethod    string  `json:"payment_method"`
	PaymentReference string  `json:"payment_reference"`

	Kind   string `gorm:"type:varchar(20);not null;default:'online_unpaid'" json:"kind"`
	Status string `gorm:"type:varchar(20);not null;default:'active';index" json:"status"` // active|cancelled

	AdminNotes datatypes.JSONSlice[AdminNote] `json:"admin_notes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Registration) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Children == nil {
		r.Children = datatypes.JSONSlice[Child]{}
	}
	if r.AdminNotes == nil {
		r.AdminNotes = datatypes.JSONSlice[AdminNote]{}
	}
	return nil
}

// FindChild returns the child with the given name, or nil.
func (r *Registration) FindChild(name string) *Child {
	for i := range r.Children {
		if r.Children[i].Name == name {
			return &r.Children[i]
		}
	}
	return nil
}

func (r *Registration) IsActive() bool {
	return r.Status == "" || r.Status == RegistrationActive
}

func (r *Registration) IsPaid() bool {
	return r.PaymentStatus == PaymentPaid
}

// Outstanding is what finance still has to collect.
func (r *Registration) Outstanding() float64 {
	if r.AmountPaid >= r.TotalAmount {
		return 0
	}
	return r.TotalAmount - r.AmountPaid
}

// Child lives inside its registration's JSON column and has no row of its own.
type Child struct {
	Name          string   `json:"name"`
	DateOfBirth   string   `json:"date_of_birth,omitempty"`
	AgeRange      string   `json:"age_range,omitempty"`
	SpecialNeeds  string   `json:"special_needs,omitempty"`
	SelectedDates []string `json:"selected_dates"`
	// SessionTypes is either a date -> half|full map or, on older rows, an array of labels.
	SessionTypes json.RawMessage `json:"session_types,omitempty"`
	SessionType  string          `json:"session_type,omitempty"`
	Price        float64         `json:"price"`
}

func (c *Child) HasDate(date string) bool {
	for _, d := range c.SelectedDates {
		if d == date {
			return true
		}
	}
	return false
}

type AdminNote struct {
	Text   string    `json:"text"`
	Author string    `json:"author"`
	At     time.Time `json:"at"`
}
