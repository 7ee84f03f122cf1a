package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"camp-ops-backend/internal/models"
	"camp-ops-backend/internal/repositories"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReconciliationNotifier raises and resolves the finance follow-ups that keep
// operations and accounting agreeing on who still owes money.
type ReconciliationNotifier struct {
	items repositories.ActionItemRepository
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewReconciliationNotifier(items repositories.ActionItemRepository, log logrus.FieldLogger) *ReconciliationNotifier {
	return &ReconciliationNotifier{items: items, log: log, now: time.Now}
}

// CreateUnpaidCheckInItem opens a follow-up for a child checked in without full
// payment. If one is already open for the pair it is returned and created is false.
func (n *ReconciliationNotifier) CreateUnpaidCheckInItem(ctx context.Context, reg *models.Registration, childName string) (bool, *models.AccountsActionItem, error) {
	existing, err := n.items.FindOpen(ctx, reg.ID, childName)
	if err != nil {
		return false, nil, storeError("failed to check existing follow-ups", err)
	}
	if existing != nil {
		return false, existing, nil
	}

	item := &models.AccountsActionItem{
		RegistrationID:     reg.ID,
		RegistrationNumber: reg.RegistrationNumber,
		ChildName:          childName,
		GuardianName:       reg.GuardianName,
		GuardianEmail:      reg.GuardianEmail,
		GuardianPhone:      reg.GuardianPhone,
		OutstandingAmount:  reg.Outstanding(),
		CampType:           reg.CampType,
		Status:             models.ActionItemOpen,
	}
	if err := n.items.CreateActionItem(ctx, item); err != nil {
		// Lost a race against another device; the partial unique index kept one open item.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, ferr := n.items.FindOpen(ctx, reg.ID, childName)
			if ferr == nil && existing != nil {
				return false, existing, nil
			}
		}
		return false, nil, storeError("failed to create follow-up", err)
	}

	n.log.WithFields(logrus.Fields{
		"registration_id": reg.ID,
		"child":           childName,
		"outstanding":     item.OutstandingAmount,
	}).Info("finance follow-up opened for unpaid check-in")
	return true, item, nil
}

// MarkCompletedByRegistration resolves every open follow-up of a registration and
// returns how many were resolved.
func (n *ReconciliationNotifier) MarkCompletedByRegistration(ctx context.Context, registrationID uuid.UUID, resolvedBy, note string) (int64, error) {
	count, err := n.items.CompleteOpenByRegistration(ctx, registrationID, resolvedBy, note, n.now())
	if err != nil {
		return 0, storeError("failed to resolve follow-ups", err)
	}
	if count > 0 {
		n.log.WithFields(logrus.Fields{
			"registration_id": registrationID,
			"resolved":        count,
		}).Info("finance follow-ups resolved")
	}
	return count, nil
}

func (n *ReconciliationNotifier) CompleteItem(ctx context.Context, id, resolvedBy, note string) (*models.AccountsActionItem, error) {
	if strings.TrimSpace(resolvedBy) == "" {
		return nil, NewServiceError("an authenticated user is required", ErrAuthRequired, nil)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, NewServiceError("invalid action item id", ErrInvalidInput, err)
	}
	if err := n.items.CompleteActionItem(ctx, id, resolvedBy, note, n.now()); err != nil {
		return nil, storeError("failed to complete follow-up", err)
	}
	item, err := n.items.GetActionItemByID(ctx, id)
	if err != nil {
		return nil, storeError("failed to load follow-up", err)
	}
	return item, nil
}

// ListItems fails soft: a store error yields an empty list plus the error.
func (n *ReconciliationNotifier) ListItems(ctx context.Context, status, registrationID string) ([]models.AccountsActionItem, error) {
	if status != "" && status != models.ActionItemOpen && status != models.ActionItemCompleted {
		return nil, NewServiceError("status must be open or completed", ErrInvalidInput, nil)
	}
	if registrationID != "" {
		if _, err := uuid.Parse(registrationID); err != nil {
			return nil, NewServiceError("invalid registration id", ErrInvalidInput, err)
		}
	}
	items, err := n.items.ListActionItems(ctx, status, registrationID)
	if err != nil {
		n.log.WithError(err).Warn("action item list failed")
		return []models.AccountsActionItem{}, storeError("failed to list follow-ups", err)
	}
	return items, nil
}
