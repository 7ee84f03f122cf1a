package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"camp-ops-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type attendanceRepo struct {
	db *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepo{db: db}
}

func (r *attendanceRepo) CheckIn(ctx context.Context, registrationID uuid.UUID, childName, actorID, date string, at time.Time) (*models.AttendanceRecord, error) {
	if date == "" {
		date = at.Format(models.DateLayout)
	}
	rec := &models.AttendanceRecord{
		RegistrationID: registrationID,
		ChildName:      childName,
		Date:           date,
		CheckInTime:    at,
		CheckedInBy:    actorID,
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to record check-in: %w", err)
	}
	return rec, nil
}

func (r *attendanceRepo) CheckOut(ctx context.Context, attendanceID, note string, at time.Time) (*models.AttendanceRecord, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.AttendanceRecord{}).
		Where("id = ? AND check_out_time IS NULL", attendanceID).
		Updates(map[string]interface{}{
			"check_out_time": at,
			"check_out_note": note,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to record check-out: %w", res.Error)
	}

	var rec models.AttendanceRecord
	if err := db.Where("id = ?", attendanceID).First(&rec).Error; err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return &rec, ErrAlreadyCheckedOut
	}
	return &rec, nil
}

// HasCheckedInOnDate returns the earliest record for the key, or nil when there is none.
func (r *attendanceRepo) HasCheckedInOnDate(ctx context.Context, registrationID uuid.UUID, childName, date string) (*models.AttendanceRecord, error) {
	var rec models.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("registration_id = ? AND child_name = ? AND date = ?", registrationID, childName, date).
		Order("check_in_time ASC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up attendance: %w", err)
	}
	return &rec, nil
}

// LoadBatch fetches every record for the given registrations on one date in a single query.
func (r *attendanceRepo) LoadBatch(ctx context.Context, registrationIDs []uuid.UUID, date string) ([]models.AttendanceRecord, error) {
	if len(registrationIDs) == 0 {
		return []models.AttendanceRecord{}, nil
	}
	var recs []models.AttendanceRecord
	if err := r.db.WithContext(ctx).
		Where("registration_id IN ? AND date = ?", registrationIDs, date).
		Order("check_in_time ASC").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to load attendance batch: %w", err)
	}
	return recs, nil
}
