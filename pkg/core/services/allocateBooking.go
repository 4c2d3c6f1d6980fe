package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/internal/clock"
	"github.com/jakechorley/session-booking/pkg/core/allocator"
	"github.com/jakechorley/session-booking/pkg/core/ledger"
	"github.com/jakechorley/session-booking/pkg/core/model"
	"github.com/jakechorley/session-booking/pkg/db"
)

var validate = validator.New()

// AllocatorStore defines the database operations needed for booking allocation
type AllocatorStore interface {
	GetSlot(ctx context.Context, slotID string) (*db.Slot, error)
	GetOffering(ctx context.Context, offeringID string) (*db.ServiceOffering, error)
	InsertBooking(ctx context.Context, booking *db.Booking) error
	GetBooking(ctx context.Context, bookingID string) (*db.Booking, error)
	GetConfirmedBookingsByEmail(ctx context.Context, email string) ([]db.BookingDetail, error)
	CountConfirmedBookingsByHost(ctx context.Context) (map[string]int, error)
	CancelBooking(ctx context.Context, bookingID, reason string, at time.Time) (bool, error)
	UpdateBookingHost(ctx context.Context, bookingID, hostEmail, externalEventID string) error
}

// AllocatorConfig holds the booking policy
type AllocatorConfig struct {
	// Roster is the ordered list of host emails; order breaks load ties
	Roster []string
	// DuplicateWindowDays rejects a booking within this many days of another
	DuplicateWindowDays int
	// CalendarTimeout bounds each calendar provider call
	CalendarTimeout time.Duration
	// Location is used when rendering session times in notifications
	Location *time.Location
}

// Allocator books, cancels and reassigns sessions. Calendar and notifier
// may be nil, in which case those side effects are skipped.
type Allocator struct {
	store    AllocatorStore
	ledger   *ledger.Ledger
	calendar CalendarClient
	notifier Notifier
	clock    clock.Clock
	cfg      AllocatorConfig
	logger   *zap.Logger
}

// NewAllocator creates an allocator. An empty roster is a configuration error.
func NewAllocator(
	store AllocatorStore,
	seats *ledger.Ledger,
	calendar CalendarClient,
	notifier Notifier,
	clk clock.Clock,
	cfg AllocatorConfig,
	logger *zap.Logger,
) (*Allocator, error) {
	if len(cfg.Roster) == 0 {
		return nil, model.ErrEmptyRoster
	}
	if cfg.DuplicateWindowDays < 0 {
		return nil, model.NewValidationError("duplicate_window_days", "must not be negative")
	}
	if cfg.CalendarTimeout <= 0 {
		cfg.CalendarTimeout = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Allocator{
		store:    store,
		ledger:   seats,
		calendar: calendar,
		notifier: notifier,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Roster returns a copy of the configured host roster
func (a *Allocator) Roster() []string {
	return append([]string(nil), a.cfg.Roster...)
}

// HostLoads returns every roster host with their confirmed booking count,
// least loaded first. The head of the list is the next host AllocateBooking picks.
func (a *Allocator) HostLoads(ctx context.Context) ([]allocator.HostLoad, error) {
	counts, err := a.store.CountConfirmedBookingsByHost(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count host bookings: %w", err)
	}
	return allocator.RankHosts(a.cfg.Roster, counts), nil
}

func validateVolunteer(v model.VolunteerInfo) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return model.NewValidationError(strings.ToLower(fe.Field()), "failed %s check", fe.Tag())
		}
		return model.NewValidationError("volunteer", "%v", err)
	}
	return nil
}

// AllocateBooking books one seat on a slot for the volunteer.
//
// Steps run in order: duplicate check, seat claim, host selection, calendar
// event, persist, notify. Business-rule outcomes (full, duplicate, inactive)
// are returned as a Rejection with a nil error. Once the seat is claimed the
// operation runs to completion or full compensation even if ctx is
// cancelled. A calendar failure degrades the booking instead of failing it.
func (a *Allocator) AllocateBooking(ctx context.Context, slotID string, volunteer model.VolunteerInfo) (*model.AllocationResult, error) {
	logger := a.logger.With(zap.String("slot_id", slotID))

	volunteer.Name = strings.TrimSpace(volunteer.Name)
	volunteer.Email = strings.ToLower(strings.TrimSpace(volunteer.Email))
	volunteer.Phone = strings.TrimSpace(volunteer.Phone)
	if err := validateVolunteer(volunteer); err != nil {
		return nil, err
	}

	slot, err := a.store.GetSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, model.ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to fetch slot: %w", err)
	}
	if !slot.Active {
		logger.Info("Booking rejected, slot inactive")
		return &model.AllocationResult{Rejection: model.RejectionInactive}, nil
	}

	offering, err := a.store.GetOffering(ctx, slot.OfferingID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch offering %s: %w", slot.OfferingID, err)
	}

	// Step 1: duplicate check
	existing, err := a.store.GetConfirmedBookingsByEmail(ctx, volunteer.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch existing bookings: %w", err)
	}
	nearby, err := allocator.FindNearbyBooking(existing, slot.Date, a.cfg.DuplicateWindowDays)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate bookings: %w", err)
	}
	if nearby != nil {
		logger.Info("Booking rejected, duplicate within window",
			zap.String("existing_booking_id", nearby.Booking.ID),
			zap.String("existing_date", nearby.Slot.Date))
		return &model.AllocationResult{Rejection: model.RejectionDuplicate}, nil
	}

	// Step 2: claim a seat
	if err := a.ledger.Claim(ctx, slot.ID); err != nil {
		if errors.Is(err, model.ErrSlotFull) {
			logger.Info("Booking rejected, slot full")
			return &model.AllocationResult{Rejection: model.RejectionSlotFull}, nil
		}
		return nil, err
	}

	// Past this point the caller going away must not leave a claimed seat behind
	ctx = context.WithoutCancel(ctx)
	var undo allocator.Compensations
	undo.Push("release seat", func(ctx context.Context) error {
		return a.ledger.Release(ctx, slot.ID)
	})

	// Step 3: pick the least-loaded host
	counts, err := a.store.CountConfirmedBookingsByHost(ctx)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to count host bookings: %w", err), undo.Run(ctx, logger))
	}
	host, err := allocator.SelectHost(a.cfg.Roster, counts)
	if err != nil {
		return nil, errors.Join(err, undo.Run(ctx, logger))
	}
	logger = logger.With(zap.String("host", host))

	booking := &db.Booking{
		ID:             uuid.New().String(),
		SlotID:         slot.ID,
		VolunteerName:  volunteer.Name,
		VolunteerEmail: volunteer.Email,
		VolunteerPhone: volunteer.Phone,
		HostEmail:      host,
		Status:         db.BookingStatusConfirmed,
		CreatedAt:      a.clock.Now(),
	}

	// Step 4: calendar event, failure degrades the booking
	degraded := false
	if a.calendar != nil {
		created, err := a.createEvent(ctx, host, slot, offering, volunteer)
		if err != nil {
			logger.Warn("Calendar event creation failed, booking continues without event", zap.Error(err))
			degraded = true
		} else {
			booking.ExternalEventID = created.EventID
			booking.VideoLink = created.VideoLink
			undo.Push("delete calendar event", func(ctx context.Context) error {
				return a.deleteEvent(ctx, host, created.EventID)
			})
		}
	}

	// Step 5: persist
	if err := a.store.InsertBooking(ctx, booking); err != nil {
		logger.Error("Failed to persist booking, compensating", zap.Error(err))
		return nil, errors.Join(fmt.Errorf("%w: %w", model.ErrPersistence, err), undo.Run(ctx, logger))
	}
	undo.Discard()

	logger.Info("Booking confirmed",
		zap.String("booking_id", booking.ID),
		zap.Bool("calendar_degraded", degraded))

	// Step 6: notify, best effort
	a.notify(ctx, logger, confirmationNotification(booking, slot, offering, a.cfg.Location, a.clock.Now()))

	return &model.AllocationResult{Booking: booking, CalendarDegraded: degraded}, nil
}

func (a *Allocator) createEvent(ctx context.Context, host string, slot *db.Slot, offering *db.ServiceOffering, volunteer model.VolunteerInfo) (*CreatedEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.CalendarTimeout)
	defer cancel()

	description := fmt.Sprintf("Volunteer: %s <%s>", volunteer.Name, volunteer.Email)
	if volunteer.Phone != "" {
		description += "\nPhone: " + volunteer.Phone
	}

	created, err := a.calendar.CreateEvent(ctx, host, CalendarEvent{
		Summary:        sessionSummary(offering, volunteer.Name),
		Description:    description,
		Start:          slot.StartsAt,
		End:            slot.EndsAt,
		Attendees:      []string{volunteer.Email},
		WantsVideoLink: offering.Modality == db.ModalityVirtual,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExternalIntegration, err)
	}
	if created == nil || created.EventID == "" {
		return nil, fmt.Errorf("%w: calendar returned no event id", model.ErrExternalIntegration)
	}
	return created, nil
}

func (a *Allocator) deleteEvent(ctx context.Context, host, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.CalendarTimeout)
	defer cancel()
	if err := a.calendar.DeleteEvent(ctx, host, eventID); err != nil {
		return fmt.Errorf("%w: %w", model.ErrExternalIntegration, err)
	}
	return nil
}

// notify sends a notification and only logs failures
func (a *Allocator) notify(ctx context.Context, logger *zap.Logger, n Notification) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.SendNotification(ctx, n); err != nil {
		logger.Warn("Failed to send notification", zap.String("to", n.To), zap.String("subject", n.Subject), zap.Error(err))
		return
	}
	logger.Debug("Notification sent", zap.String("to", n.To), zap.String("subject", n.Subject))
}
