package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"camp-ops-backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxNumberAttempts = 5

type registrationRepo struct {
	db *gorm.DB
}

func NewRegistrationRepository(db *gorm.DB) RegistrationRepository {
	return &registrationRepo{db: db}
}

// CreateRegistration inserts reg with a registration number drawn from nextNumber.
// Each attempt runs in its own transaction; the unique index on registration_number
// is the arbiter and a collision just draws a new number.
func (r *registrationRepo) CreateRegistration(ctx context.Context, reg *models.Registration, nextNumber func() string) error {
	if reg == nil {
		return errors.New("registration cannot be nil")
	}

	var lastErr error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		lastErr = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number := nextNumber()
			var count int64
			if err := tx.Model(&models.Registration{}).
				Where("registration_number = ?", number).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return gorm.ErrDuplicatedKey
			}
			reg.RegistrationNumber = number
			return tx.Create(reg).Error
		})
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("failed to create registration: %w", lastErr)
		}
	}
	return fmt.Errorf("failed to allocate registration number: %w", lastErr)
}

func (r *registrationRepo) GetRegistrationByID(ctx context.Context, id string) (*models.Registration, error) {
	var reg models.Registration
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&reg).Error; err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *registrationRepo) GetRegistrationByNumber(ctx context.Context, number string) (*models.Registration, error) {
	var reg models.Registration
	if err := r.db.WithContext(ctx).Where("registration_number = ?", number).First(&reg).Error; err != nil {
		return nil, err
	}
	return &reg, nil
}

// ListActiveRegistrations returns active registrations. When date is set, rows whose
// children JSON does not mention the date are filtered out in SQL; the exact
// membership test is still done by the resolver.
func (r *registrationRepo) ListActiveRegistrations(ctx context.Context, date string) ([]models.Registration, error) {
	var regs []models.Registration
	q := r.db.WithContext(ctx).Where("status = ?", models.RegistrationActive)
	if date != "" {
		q = q.Where("CAST(children AS TEXT) LIKE ?", "%\""+date+"\"%")
	}
	if err := q.Order("created_at ASC").Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return regs, nil
}

func (r *registrationRepo) SearchRegistrations(ctx context.Context, term string) ([]models.Registration, error) {
	var regs []models.Registration
	q := r.db.WithContext(ctx).Model(&models.Registration{})

	term = strings.ToLower(strings.TrimSpace(term))
	if term != "" {
		like := "%" + term + "%"
		q = q.Where(`LOWER(registration_number) LIKE ?
			OR LOWER(guardian_name) LIKE ?
			OR LOWER(guardian_email) LIKE ?
			OR guardian_phone LIKE ?
			OR LOWER(CAST(children AS TEXT)) LIKE ?`, like, like, like, like, like)
	}

	if err := q.Order("created_at DESC").Limit(200).Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("failed to search registrations: %w", err)
	}
	return regs, nil
}

func (r *registrationRepo) UpdatePaymentStatus(ctx context.Context, id string, update PaymentUpdate) error {
	res := r.db.WithContext(ctx).Model(&models.Registration{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"payment_status":    update.Status,
			"payment_method":    update.Method,
			"payment_reference": update.Reference,
			"amount_paid":       update.AmountPaid,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update payment status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *registrationRepo) UpdateLifecycleStatus(ctx context.Context, id, status string) error {
	res := r.db.WithContext(ctx).Model(&models.Registration{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *registrationRepo) AppendAdminNote(ctx context.Context, id string, note models.AdminNote) (*models.Registration, error) {
	var reg models.Registration
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&reg).Error; err != nil {
			return err
		}
		notes := append(datatypes.JSONSlice[models.AdminNote]{}, reg.AdminNotes...)
		notes = append(notes, note)
		reg.AdminNotes = notes
		return tx.Model(&reg).Update("admin_notes", notes).Error
	})
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// DeleteRegistrations purges registrations, removing their attendance rows first.
func (r *registrationRepo) DeleteRegistrations(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("registration_id IN ?", ids).Delete(&models.AttendanceRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Registration{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete registrations: %w", err)
	}
	return deleted, nil
}
