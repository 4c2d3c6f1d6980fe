package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/pkg/core/allocator"
	"github.com/jakechorley/session-booking/pkg/core/model"
	"github.com/jakechorley/session-booking/pkg/db"
)

// ReassignHost moves a confirmed booking to another roster host.
// When the booking has a calendar event it is transferred first; if the
// transfer fails nothing is changed and model.ErrExternalIntegration is returned.
func (a *Allocator) ReassignHost(ctx context.Context, bookingID, newHost string) (*db.Booking, error) {
	logger := a.logger.With(zap.String("booking_id", bookingID), zap.String("new_host", newHost))

	if !allocator.InRoster(a.cfg.Roster, newHost) {
		return nil, model.ErrUnknownHost
	}

	booking, err := a.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, model.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to fetch booking: %w", err)
	}
	if booking.Status != db.BookingStatusConfirmed {
		return nil, model.ErrBookingNotConfirmed
	}
	if booking.HostEmail == newHost {
		logger.Debug("Host unchanged")
		return booking, nil
	}

	ctx = context.WithoutCancel(ctx)
	oldHost := booking.HostEmail
	eventID := booking.ExternalEventID
	var undo allocator.Compensations

	if booking.ExternalEventID != "" {
		if a.calendar == nil {
			return nil, fmt.Errorf("%w: no calendar client configured to transfer event", model.ErrExternalIntegration)
		}
		movedID, err := a.transferEvent(ctx, booking.ExternalEventID, oldHost, newHost)
		if err != nil {
			logger.Warn("Calendar transfer failed, host unchanged", zap.Error(err))
			return nil, err
		}
		if movedID != "" {
			eventID = movedID
		}
		undo.Push("transfer event back", func(ctx context.Context) error {
			_, err := a.transferEvent(ctx, eventID, newHost, oldHost)
			return err
		})
	}

	if err := a.store.UpdateBookingHost(ctx, booking.ID, newHost, eventID); err != nil {
		logger.Error("Failed to persist host change, compensating", zap.Error(err))
		return nil, errors.Join(fmt.Errorf("%w: %w", model.ErrPersistence, err), undo.Run(ctx, logger))
	}
	undo.Discard()

	booking.HostEmail = newHost
	booking.ExternalEventID = eventID
	logger.Info("Host reassigned", zap.String("old_host", oldHost))

	slot, offering, err := a.sessionFor(ctx, booking.SlotID)
	if err != nil {
		logger.Warn("Skipping host change notice", zap.Error(err))
		return booking, nil
	}
	a.notify(ctx, logger, hostChangeNotification(booking, slot, offering, a.cfg.Location))

	return booking, nil
}

func (a *Allocator) transferEvent(ctx context.Context, eventID, fromHost, toHost string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.CalendarTimeout)
	defer cancel()
	movedID, err := a.calendar.TransferEvent(ctx, eventID, fromHost, toHost)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrExternalIntegration, err)
	}
	return movedID, nil
}
