package model

import (
	"errors"
	"fmt"
)

var (
	ErrSlotNotFound          = errors.New("slot not found")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrOwnerNotFound         = errors.New("owner not found")
	ErrBookingNotConfirmed   = errors.New("booking is not confirmed")
	ErrSlotFull              = errors.New("slot is full")
	ErrEmptyRoster           = errors.New("host roster is empty")
	ErrUnknownHost           = errors.New("host is not in the roster")
	ErrExternalIntegration   = errors.New("external integration failed")
	ErrPersistence           = errors.New("persistence failed")
	ErrUnknownReminderWindow = errors.New("unknown reminder window")
)

// ValidationError reports invalid caller input or configuration for a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
