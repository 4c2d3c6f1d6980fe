package db

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a row does not exist
var ErrNotFound = errors.New("not found")

// CatalogStore defines the operations for offerings and owners
type CatalogStore interface {
	GetOfferings(ctx context.Context) ([]ServiceOffering, error)
	GetOffering(ctx context.Context, offeringID string) (*ServiceOffering, error)
	UpsertOffering(ctx context.Context, offering *ServiceOffering) error
	GetOwners(ctx context.Context) ([]Owner, error)
	GetOwner(ctx context.Context, ownerID string) (*Owner, error)
	UpsertOwner(ctx context.Context, owner *Owner) error
}

// SlotStore defines the slot operations.
// InsertSlots must skip rows that conflict on (owner, offering, date, start time)
// and return the number actually written.
// ClaimSlot is an atomic compare-and-increment: it returns false when the slot is full.
// ReleaseSlot decrements occupancy floored at zero.
type SlotStore interface {
	LatestSlotDate(ctx context.Context, ownerID string) (string, error)
	InsertSlots(ctx context.Context, slots []Slot) (int, error)
	GetSlot(ctx context.Context, slotID string) (*Slot, error)
	GetSlotsForOwner(ctx context.Context, ownerID, fromDate, toDate string) ([]Slot, error)
	ClaimSlot(ctx context.Context, slotID string) (bool, error)
	ReleaseSlot(ctx context.Context, slotID string) error
}

// BookingStore defines the booking operations.
// CancelBooking only transitions confirmed bookings and reports whether it did.
type BookingStore interface {
	InsertBooking(ctx context.Context, booking *Booking) error
	GetBooking(ctx context.Context, bookingID string) (*Booking, error)
	GetConfirmedBookingsByEmail(ctx context.Context, email string) ([]BookingDetail, error)
	CountConfirmedBookingsByHost(ctx context.Context) (map[string]int, error)
	CancelBooking(ctx context.Context, bookingID, reason string, at time.Time) (bool, error)
	UpdateBookingHost(ctx context.Context, bookingID, hostEmail, externalEventID string) error
	GetConfirmedBookingsStartingBetween(ctx context.Context, from, to time.Time) ([]BookingDetail, error)
}

// Database defines the interface for all database operations.
// Both the in-memory MemoryDB and postgres.DB implement this interface.
type Database interface {
	CatalogStore
	SlotStore
	BookingStore
	Close()
}
