package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jakechorley/session-booking/pkg/core/model"
	"github.com/jakechorley/session-booking/pkg/db"
)

// ReminderWindow selects sessions starting between From and To after the
// reference instant, inclusive at both ends
type ReminderWindow struct {
	From time.Duration
	To   time.Duration
}

// ReminderWindows maps a window label such as "24h" to its bounds
type ReminderWindows map[string]ReminderWindow

// DefaultReminderWindows returns the day-before and two-hour windows
func DefaultReminderWindows() ReminderWindows {
	return ReminderWindows{
		"24h": {From: 23 * time.Hour, To: 25 * time.Hour},
		"2h":  {From: 110 * time.Minute, To: 130 * time.Minute},
	}
}

// Labels returns the window labels in a stable order
func (w ReminderWindows) Labels() []string {
	labels := make([]string, 0, len(w))
	for l := range w {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// DueBookingsStore defines the database operations needed for reminder selection
type DueBookingsStore interface {
	GetConfirmedBookingsStartingBetween(ctx context.Context, from, to time.Time) ([]db.BookingDetail, error)
}

// DueBookings returns confirmed bookings whose session starts inside the
// labelled window relative to reference. It has no side effects.
func DueBookings(
	ctx context.Context,
	store DueBookingsStore,
	windows ReminderWindows,
	reference time.Time,
	label string,
) ([]db.BookingDetail, error) {
	window, ok := windows[label]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownReminderWindow, label)
	}

	details, err := store.GetConfirmedBookingsStartingBetween(ctx, reference.Add(window.From), reference.Add(window.To))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bookings in window %s: %w", label, err)
	}

	due := make([]db.BookingDetail, 0, len(details))
	for _, d := range details {
		if d.Booking.Status == db.BookingStatusConfirmed {
			due = append(due, d)
		}
	}
	return due, nil
}
