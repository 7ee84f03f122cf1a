package repositories

import (
	"context"
	"errors"
	"time"

	"camp-ops-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type actionItemRepo struct {
	db *gorm.DB
}

func NewActionItemRepository(db *gorm.DB) ActionItemRepository {
	return &actionItemRepo{db: db}
}

func (r *actionItemRepo) FindOpen(ctx context.Context, registrationID uuid.UUID, childName string) (*models.AccountsActionItem, error) {
	var item models.AccountsActionItem
	err := r.db.WithContext(ctx).
		Where("registration_id = ? AND child_name = ? AND status = ?", registrationID, childName, models.ActionItemOpen).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *actionItemRepo) CreateActionItem(ctx context.Context, item *models.AccountsActionItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *actionItemRepo) GetActionItemByID(ctx context.Context, id string) (*models.AccountsActionItem, error) {
	var item models.AccountsActionItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *actionItemRepo) ListActionItems(ctx context.Context, status string, registrationID string) ([]models.AccountsActionItem, error) {
	var items []models.AccountsActionItem
	q := r.db.WithContext(ctx).Model(&models.AccountsActionItem{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if registrationID != "" {
		q = q.Where("registration_id = ?", registrationID)
	}
	if err := q.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *actionItemRepo) CompleteActionItem(ctx context.Context, id, resolvedBy, note string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.AccountsActionItem{}).
		Where("id = ? AND status = ?", id, models.ActionItemOpen).
		Updates(map[string]interface{}{
			"status":          models.ActionItemCompleted,
			"resolved_by":     resolvedBy,
			"resolution_note": note,
			"resolved_at":     at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CompleteOpenByRegistration resolves every open item for a registration in one statement.
func (r *actionItemRepo) CompleteOpenByRegistration(ctx context.Context, registrationID uuid.UUID, resolvedBy, note string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.AccountsActionItem{}).
		Where("registration_id = ? AND status = ?", registrationID, models.ActionItemOpen).
		Updates(map[string]interface{}{
			"status":          models.ActionItemCompleted,
			"resolved_by":     resolvedBy,
			"resolution_note": note,
			"resolved_at":     at,
		})
	return res.RowsAffected, res.Error
}
