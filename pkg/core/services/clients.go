package services

import (
	"context"
	"time"
)

// CalendarEvent is what the allocator asks the calendar provider to create
type CalendarEvent struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
	// WantsVideoLink requests a conference link for virtual sessions
	WantsVideoLink bool
}

// CreatedEvent identifies an event created on a host's calendar
type CreatedEvent struct {
	EventID   string
	VideoLink string
}

// CalendarClient defines the calendar operations used by booking services
type CalendarClient interface {
	CreateEvent(ctx context.Context, hostEmail string, event CalendarEvent) (*CreatedEvent, error)
	DeleteEvent(ctx context.Context, hostEmail, eventID string) error
	// TransferEvent moves an event between host calendars and returns its new id
	TransferEvent(ctx context.Context, eventID, fromHost, toHost string) (string, error)
}

// Notification is a single outbound email
type Notification struct {
	To      string
	Subject string
	Body    string
	// Invite is an optional text/calendar attachment
	Invite []byte
}

// Notifier sends notifications. Delivery failures never undo bookings.
type Notifier interface {
	SendNotification(ctx context.Context, n Notification) error
}

// Deduper records that a side effect has happened so repeated scheduler
// ticks do not repeat it
type Deduper interface {
	// MarkOnce returns true the first time a key is seen within ttl
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

// FailedNotification records a notification that could not be sent
type FailedNotification struct {
	BookingID string
	Email     string
	Error     string
}
