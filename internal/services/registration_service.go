package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"camp-ops-backend/internal/models"
	"camp-ops-backend/internal/realtime"
	"camp-ops-backend/internal/repositories"
	"camp-ops-backend/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const defaultQRSize = 256

type ChildInput struct {
	Name          string          `json:"name" validate:"required,max=120"`
	DateOfBirth   string          `json:"date_of_birth" validate:"omitempty,calendar_date"`
	AgeRange      string          `json:"age_range"`
	SpecialNeeds  string          `json:"special_needs"`
	SelectedDates []string        `json:"selected_dates" validate:"required,min=1,dive,calendar_date"`
	SessionTypes  json.RawMessage `json:"session_types"`
	SessionType   string          `json:"session_type"`
	Price         float64         `json:"price" validate:"gte=0"`
}

type CreateRegistrationRequest struct {
	GuardianName     string       `json:"guardian_name" validate:"required,max=200"`
	GuardianEmail    string       `json:"guardian_email" validate:"omitempty,email"`
	GuardianPhone    string       `json:"guardian_phone" validate:"omitempty,max=40"`
	CampType         string       `json:"camp_type" validate:"required"`
	Children         []ChildInput `json:"children" validate:"required,min=1,dive"`
	AmountPaid       float64      `json:"amount_paid" validate:"gte=0"`
	PaymentMethod    string       `json:"payment_method" validate:"omitempty,oneof=cash card bank_transfer online other"`
	PaymentReference string       `json:"payment_reference"`
	Kind             string       `json:"kind" validate:"omitempty,oneof=online_unpaid online_paid ground"`
}

type PaymentUpdateRequest struct {
	Status     string   `json:"status" validate:"required,oneof=unpaid partial paid"`
	Method     string   `json:"method" validate:"omitempty,oneof=cash card bank_transfer online other"`
	Reference  string   `json:"reference"`
	AmountPaid *float64 `json:"amount_paid" validate:"omitempty,gte=0"`
}

type PaymentUpdateResult struct {
	Registration      *models.Registration `json:"registration"`
	FollowUpsResolved int64                `json:"follow_ups_resolved"`
	Warning           string               `json:"warning,omitempty"`
}

type RegistrationToken struct {
	RegistrationID     uuid.UUID `json:"registration_id"`
	RegistrationNumber string    `json:"registration_number"`
	Token              string    `json:"token"`
}

// RegistrationService owns registration intake and every write that changes what
// operations or accounting see about a registration.
type RegistrationService struct {
	registrations repositories.RegistrationRepository
	notifier      *ReconciliationNotifier
	console       *AttendanceConsole
	events        realtime.Publisher
	codec         *utils.TokenCodec
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewRegistrationService(
	registrations repositories.RegistrationRepository,
	notifier *ReconciliationNotifier,
	console *AttendanceConsole,
	events realtime.Publisher,
	codec *utils.TokenCodec,
	log logrus.FieldLogger,
) *RegistrationService {
	return &RegistrationService{
		registrations: registrations,
		notifier:      notifier,
		console:       console,
		events:        events,
		codec:         codec,
		log:           log,
		now:           time.Now,
	}
}

// NewRegistrationNumber returns a human-facing number of the form CAMP-YYMMDD-XXXXXX.
func NewRegistrationNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("CAMP-%s-%s", now.Format("060102"), suffix)
}

func (s *RegistrationService) Create(ctx context.Context, req CreateRegistrationRequest) (*models.Registration, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, NewServiceError(err.Error(), ErrInvalidInput, err)
	}

	children := make(datatypes.JSONSlice[models.Child], 0, len(req.Children))
	seen := make(map[string]bool, len(req.Children))
	var total float64
	for _, in := range req.Children {
		child, err := buildChild(in)
		if err != nil {
			return nil, err
		}
		folded := strings.ToLower(child.Name)
		if seen[folded] {
			return nil, NewServiceError(fmt.Sprintf("child %q appears twice on the registration", child.Name), ErrInvalidInput, nil)
		}
		seen[folded] = true
		total += child.Price
		children = append(children, child)
	}

	kind := req.Kind
	if kind == "" {
		kind = models.KindOnlineUnpaid
	}
	reg := &models.Registration{
		GuardianName:     strings.TrimSpace(req.GuardianName),
		GuardianEmail:    strings.ToLower(strings.TrimSpace(req.GuardianEmail)),
		GuardianPhone:    strings.TrimSpace(req.GuardianPhone),
		Children:         children,
		CampType:         strings.TrimSpace(req.CampType),
		TotalAmount:      total,
		AmountPaid:       req.AmountPaid,
		PaymentStatus:    models.DerivePaymentStatus(req.AmountPaid, total),
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		Kind:             kind,
		Status:           models.RegistrationActive,
		AdminNotes:       datatypes.JSONSlice[models.AdminNote]{},
	}

	if err := s.registrations.CreateRegistration(ctx, reg, func() string { return NewRegistrationNumber(s.now()) }); err != nil {
		s.log.WithError(err).Error("registration create failed")
		return nil, NewServiceError("failed to create registration", ErrStoreUnavailable, err)
	}
	s.console.Invalidate()

	s.log.WithFields(logrus.Fields{
		"registration_id": reg.ID,
		"number":          reg.RegistrationNumber,
		"children":        len(reg.Children),
		"payment_status":  reg.PaymentStatus,
	}).Info("registration created")
	return reg, nil
}

func buildChild(in ChildInput) (models.Child, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Child{}, NewServiceError("child name is required", ErrInvalidInput, nil)
	}
	child := models.Child{
		Name:          name,
		DateOfBirth:   in.DateOfBirth,
		AgeRange:      in.AgeRange,
		SpecialNeeds:  in.SpecialNeeds,
		SelectedDates: dedupeDates(in.SelectedDates),
		SessionTypes:  bytes.TrimSpace(in.SessionTypes),
		SessionType:   in.SessionType,
		Price:         in.Price,
	}
	if len(child.SessionTypes) == 0 || string(child.SessionTypes) == "null" {
		child.SessionTypes = nil
	}
	if len(child.SessionTypes) > 0 && !json.Valid(child.SessionTypes) {
		return models.Child{}, NewServiceError(fmt.Sprintf("session types of %q are not valid JSON", name), ErrInvalidInput, nil)
	}
	for _, d := range SessionDates(child) {
		if !child.HasDate(d) {
			return models.Child{}, NewServiceError(fmt.Sprintf("session for %s given for %q but that date is not selected", d, name), ErrInvalidInput, nil)
		}
	}
	return child, nil
}

func dedupeDates(dates []string) []string {
	out := make([]string, 0, len(dates))
	seen := make(map[string]bool, len(dates))
	for _, d := range dates {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

func (s *RegistrationService) Get(ctx context.Context, id string) (*models.Registration, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, NewServiceError("invalid registration id", ErrInvalidInput, err)
	}
	reg, err := s.registrations.GetRegistrationByID(ctx, id)
	if err != nil {
		return nil, storeError("registration", err)
	}
	return reg, nil
}

func (s *RegistrationService) GetByNumber(ctx context.Context, number string) (*models.Registration, error) {
	reg, err := s.registrations.GetRegistrationByNumber(ctx, strings.ToUpper(strings.TrimSpace(number)))
	if err != nil {
		return nil, storeError("registration", err)
	}
	return reg, nil
}

// Search fails soft: a store error yields an empty list plus the error.
func (s *RegistrationService) Search(ctx context.Context, term string) ([]models.Registration, error) {
	regs, err := s.registrations.SearchRegistrations(ctx, term)
	if err != nil {
		s.log.WithError(err).WithField("term", term).Warn("registration search failed")
		return []models.Registration{}, NewServiceError("failed to search registrations", ErrStoreUnavailable, err)
	}
	return regs, nil
}

// UpdatePaymentStatus is the quick-update path used by both the operations and the
// accounting screens. Setting paid resolves the registration's open follow-ups.
func (s *RegistrationService) UpdatePaymentStatus(ctx context.Context, id string, req PaymentUpdateRequest, actorID string) (*PaymentUpdateResult, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, NewServiceError("an authenticated user is required to update payments", ErrAuthRequired, nil)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, NewServiceError(err.Error(), ErrInvalidInput, err)
	}
	reg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	amount, err := amountForStatus(reg, req)
	if err != nil {
		return nil, err
	}
	update := repositories.PaymentUpdate{
		Status:     req.Status,
		Method:     firstNonEmpty(req.Method, reg.PaymentMethod),
		Reference:  firstNonEmpty(req.Reference, reg.PaymentReference),
		AmountPaid: amount,
	}

	log := s.log.WithFields(logrus.Fields{
		"registration_id": reg.ID,
		"actor_id":        actorID,
		"from":            reg.PaymentStatus,
		"to":              req.Status,
	})
	if err := s.registrations.UpdatePaymentStatus(ctx, id, update); err != nil {
		log.WithError(err).Error("payment update failed")
		return nil, storeError("failed to update payment", err)
	}

	reg.PaymentStatus = update.Status
	reg.PaymentMethod = update.Method
	reg.PaymentReference = update.Reference
	reg.AmountPaid = update.AmountPaid
	result := &PaymentUpdateResult{Registration: reg}

	if req.Status == models.PaymentPaid {
		note := "Payment received"
		if update.Method != "" {
			note += " (" + update.Method + ")"
		}
		resolved, err := s.notifier.MarkCompletedByRegistration(ctx, reg.ID, actorID, note)
		if err != nil {
			log.WithError(err).Error("payment saved but follow-ups were not resolved")
			result.Warning = "payment saved but finance follow-ups could not be resolved"
		}
		result.FollowUpsResolved = resolved
	}

	s.console.ApplyPaymentStatus(reg.ID, reg.PaymentStatus)
	s.events.Publish(realtime.Event{
		Entity:        realtime.EntityRegistration,
		ID:            reg.ID.String(),
		PaymentStatus: reg.PaymentStatus,
		Status:        reg.Status,
	})

	log.WithField("resolved", result.FollowUpsResolved).Info("payment status updated")
	return result, nil
}

// amountForStatus reconciles an explicit amount with the requested status. Without an
// amount, paid means the full total and unpaid means nothing collected.
func amountForStatus(reg *models.Registration, req PaymentUpdateRequest) (float64, error) {
	if req.AmountPaid != nil {
		amount := *req.AmountPaid
		if derived := models.DerivePaymentStatus(amount, reg.TotalAmount); derived != req.Status {
			return 0, NewServiceError(
				fmt.Sprintf("amount %.2f of %.2f is %s, not %s", amount, reg.TotalAmount, derived, req.Status),
				ErrInvalidInput, nil)
		}
		return amount, nil
	}

	switch req.Status {
	case models.PaymentPaid:
		if reg.AmountPaid > reg.TotalAmount {
			return reg.AmountPaid, nil
		}
		return reg.TotalAmount, nil
	case models.PaymentUnpaid:
		return 0, nil
	default:
		if models.DerivePaymentStatus(reg.AmountPaid, reg.TotalAmount) == models.PaymentPartial {
			return reg.AmountPaid, nil
		}
		return 0, NewServiceError("amount_paid is required to mark a registration partially paid", ErrInvalidInput, nil)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (s *RegistrationService) AddAdminNote(ctx context.Context, id, text, author string) (*models.Registration, error) {
	if strings.TrimSpace(author) == "" {
		return nil, NewServiceError("an authenticated user is required to add notes", ErrAuthRequired, nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, NewServiceError("note text is required", ErrInvalidInput, nil)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, NewServiceError("invalid registration id", ErrInvalidInput, err)
	}
	reg, err := s.registrations.AppendAdminNote(ctx, id, models.AdminNote{Text: text, Author: author, At: s.now()})
	if err != nil {
		return nil, storeError("failed to add note", err)
	}
	return reg, nil
}

// SetLifecycleStatus cancels or reactivates a registration. Cancelled registrations
// drop out of every expected list.
func (s *RegistrationService) SetLifecycleStatus(ctx context.Context, id, status, actorID string) (*models.Registration, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, NewServiceError("an authenticated user is required", ErrAuthRequired, nil)
	}
	if status != models.RegistrationActive && status != models.RegistrationCancelled {
		return nil, NewServiceError("status must be active or cancelled", ErrInvalidInput, nil)
	}
	reg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.Status == status {
		return reg, nil
	}
	if err := s.registrations.UpdateLifecycleStatus(ctx, id, status); err != nil {
		return nil, storeError("failed to update registration status", err)
	}
	reg.Status = status
	s.console.Invalidate()
	s.events.Publish(realtime.Event{
		Entity:        realtime.EntityRegistration,
		ID:            reg.ID.String(),
		PaymentStatus: reg.PaymentStatus,
		Status:        reg.Status,
	})
	s.log.WithFields(logrus.Fields{"registration_id": reg.ID, "status": status, "actor_id": actorID}).Info("registration status changed")
	return reg, nil
}

func (s *RegistrationService) Delete(ctx context.Context, id string) error {
	n, err := s.DeleteMany(ctx, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return NewServiceError("registration not found", ErrNotFound, nil)
	}
	return nil
}

// DeleteMany purges registrations together with their attendance history.
func (s *RegistrationService) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, NewServiceError("no registrations selected", ErrInvalidInput, nil)
	}
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return 0, NewServiceError(fmt.Sprintf("invalid registration id %q", id), ErrInvalidInput, err)
		}
	}
	n, err := s.registrations.DeleteRegistrations(ctx, ids)
	if err != nil {
		s.log.WithError(err).Error("registration purge failed")
		return 0, NewServiceError("failed to delete registrations", ErrStoreUnavailable, err)
	}
	s.console.Invalidate()
	s.log.WithField("deleted", n).Info("registrations purged")
	return n, nil
}

// IssueToken signs the token printed on the registration's check-in card.
func (s *RegistrationService) IssueToken(ctx context.Context, id string) (*RegistrationToken, error) {
	reg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	token, err := s.codec.Encode(utils.TokenPayload{
		Type:      utils.TokenTypeRegistration,
		ID:        reg.ID.String(),
		Timestamp: s.now().Unix(),
	})
	if err != nil {
		return nil, NewServiceError("failed to sign token", ErrInvalidInput, err)
	}
	return &RegistrationToken{RegistrationID: reg.ID, RegistrationNumber: reg.RegistrationNumber, Token: token}, nil
}

func (s *RegistrationService) QRCode(ctx context.Context, id string, size int) ([]byte, error) {
	tok, err := s.IssueToken(ctx, id)
	if err != nil {
		return nil, err
	}
	if size <= 0 || size > 1024 {
		size = defaultQRSize
	}
	png, err := utils.RenderQRCodePNG(tok.Token, size)
	if err != nil {
		return nil, NewServiceError("failed to render QR code", ErrInvalidInput, err)
	}
	return png, nil
}
