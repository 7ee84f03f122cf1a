package services

import (
	"context"
	"fmt"
	"strings"

	"camp-ops-backend/internal/models"
	"camp-ops-backend/internal/repositories"
	"camp-ops-backend/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ScanSummary struct {
	RegistrationID     uuid.UUID `json:"registration_id"`
	RegistrationNumber string    `json:"registration_number"`
	Date               string    `json:"date"`
	CheckedIn          int       `json:"checked_in"`
	AlreadyIn          int       `json:"already_in"`
	NotExpected        int       `json:"not_expected"`
	Failed             int       `json:"failed"`
	FollowUps          int       `json:"follow_ups"`
	Message            string    `json:"message"`
}

// TokenCheckInService checks in every expected child of the registration a scanned
// card points to. Scanning the same card twice on a day changes nothing.
type TokenCheckInService struct {
	codec         *utils.TokenCodec
	registrations repositories.RegistrationRepository
	attendance    repositories.AttendanceRepository
	console       *AttendanceConsole
	log           logrus.FieldLogger
}

func NewTokenCheckInService(
	codec *utils.TokenCodec,
	registrations repositories.RegistrationRepository,
	attendance repositories.AttendanceRepository,
	console *AttendanceConsole,
	log logrus.FieldLogger,
) *TokenCheckInService {
	return &TokenCheckInService{
		codec:         codec,
		registrations: registrations,
		attendance:    attendance,
		console:       console,
		log:           log,
	}
}

// ResolveToken decodes a scanned token into its registration.
func (s *TokenCheckInService) ResolveToken(ctx context.Context, token string) (*models.Registration, error) {
	payload := s.codec.Decode(token)
	if payload == nil {
		return nil, NewServiceError("unreadable check-in code", ErrInvalidToken, nil)
	}
	if payload.Type != utils.TokenTypeRegistration {
		return nil, NewServiceError(fmt.Sprintf("code of type %q is not a registration card", payload.Type), ErrInvalidToken, nil)
	}
	if _, err := uuid.Parse(payload.ID); err != nil {
		return nil, NewServiceError("check-in code carries an invalid id", ErrInvalidToken, err)
	}
	reg, err := s.registrations.GetRegistrationByID(ctx, payload.ID)
	if err != nil {
		return nil, storeError("registration for code", err)
	}
	return reg, nil
}

func (s *TokenCheckInService) CheckInByToken(ctx context.Context, token, actorID, date string) (*ScanSummary, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, NewServiceError("an authenticated staff member is required to check in", ErrAuthRequired, nil)
	}
	reg, err := s.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if date == "" {
		date = s.console.Today()
	}
	board, err := s.console.Board(ctx, date)
	if board == nil {
		return nil, err
	}
	if err != nil {
		s.log.WithError(err).Warn("scan proceeding on a degraded board")
	}

	summary := &ScanSummary{
		RegistrationID:     reg.ID,
		RegistrationNumber: reg.RegistrationNumber,
		Date:               date,
	}
	log := s.log.WithFields(logrus.Fields{"registration_id": reg.ID, "date": date, "actor_id": actorID})

	for _, child := range reg.Children {
		if !reg.IsActive() || !child.HasDate(date) {
			summary.NotExpected++
			continue
		}

		existing, err := s.attendance.HasCheckedInOnDate(ctx, reg.ID, child.Name, date)
		if err != nil {
			log.WithError(err).WithField("child", child.Name).Warn("attendance lookup failed during scan")
			summary.Failed++
			continue
		}
		if existing != nil {
			board.Cache().Confirm(existing.Key(), *existing)
			summary.AlreadyIn++
			continue
		}

		result, err := board.CheckIn(ctx, reg, child.Name, actorID)
		switch code := CodeOf(err); {
		case err == nil:
			summary.CheckedIn++
			if result.FollowUpSent {
				summary.FollowUps++
			}
		case code == ErrAlreadyCheckedIn || code == ErrInvalidTransition:
			summary.AlreadyIn++
		default:
			log.WithError(err).WithField("child", child.Name).Error("scan check-in failed")
			summary.Failed++
		}
	}

	summary.Message = summarize(summary)
	log.WithFields(logrus.Fields{
		"checked_in":   summary.CheckedIn,
		"already_in":   summary.AlreadyIn,
		"not_expected": summary.NotExpected,
		"failed":       summary.Failed,
	}).Info("registration card scanned")
	return summary, nil
}

func summarize(s *ScanSummary) string {
	parts := make([]string, 0, 4)
	if s.CheckedIn > 0 {
		parts = append(parts, fmt.Sprintf("%d checked in", s.CheckedIn))
	}
	if s.AlreadyIn > 0 {
		parts = append(parts, fmt.Sprintf("%d already in", s.AlreadyIn))
	}
	if s.NotExpected > 0 {
		parts = append(parts, fmt.Sprintf("%d not expected today", s.NotExpected))
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	if len(parts) == 0 {
		return "No children on this registration"
	}
	msg := s.RegistrationNumber + ": " + strings.Join(parts, ", ")
	if s.FollowUps > 0 {
		msg += fmt.Sprintf(" (finance follow-up sent for %d)", s.FollowUps)
	}
	return msg
}
