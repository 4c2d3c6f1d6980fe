package model

import "github.com/jakechorley/session-booking/pkg/db"

// VolunteerInfo is the identity supplied by a volunteer when booking
type VolunteerInfo struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// Rejection is a business-rule outcome that callers present to end users
type Rejection string

const (
	RejectionNone      Rejection = ""
	RejectionSlotFull  Rejection = "slot_full"
	RejectionDuplicate Rejection = "duplicate_booking"
	RejectionInactive  Rejection = "slot_inactive"
)

// AllocationResult is the outcome of a booking attempt.
// Exactly one of Booking or Rejection is set.
type AllocationResult struct {
	Booking   *db.Booking
	Rejection Rejection
	// CalendarDegraded is true when the booking stands without a calendar event
	CalendarDegraded bool
}

// Confirmed reports whether the attempt produced a booking
func (r *AllocationResult) Confirmed() bool {
	return r != nil && r.Booking != nil
}
