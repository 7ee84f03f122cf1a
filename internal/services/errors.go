package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type ErrorCode string

const (
	ErrAuthRequired      ErrorCode = "AUTH_REQUIRED"
	ErrInvalidToken      ErrorCode = "INVALID_TOKEN"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrStoreUnavailable  ErrorCode = "STORE_UNAVAILABLE"
	ErrInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrAlreadyCheckedIn  ErrorCode = "ALREADY_CHECKED_IN"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

type ServiceError struct {
	Message string    `json:"message"`
	Code    ErrorCode `json:"code"`
	Details error     `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s [%s]: %v", e.Message, e.Code, e.Details)
	}
	return fmt.Sprintf("%s [%s]", e.Message, e.Code)
}

func (e *ServiceError) Unwrap() error {
	return e.Details
}

func NewServiceError(message string, code ErrorCode, details error) *ServiceError {
	return &ServiceError{
		Message: message,
		Code:    code,
		Details: details,
	}
}

// CodeOf returns the code of the first ServiceError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var serr *ServiceError
	if errors.As(err, &serr) {
		return serr.Code
	}
	return ""
}

// storeError classifies a repository error: missing rows become NOT_FOUND,
// everything else STORE_UNAVAILABLE.
func storeError(message string, err error) *ServiceError {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewServiceError(message+": not found", ErrNotFound, err)
	}
	return NewServiceError(message, ErrStoreUnavailable, err)
}
