package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/pkg/core/model"
	"github.com/jakechorley/session-booking/pkg/db"
)

// CancelBooking cancels a confirmed booking and returns its seat.
// The calendar event is removed best effort; a failure there never blocks
// the cancellation. The seat is released exactly once, by whichever caller
// wins the confirmed-to-cancelled transition.
func (a *Allocator) CancelBooking(ctx context.Context, bookingID, reason string) (*db.Booking, error) {
	logger := a.logger.With(zap.String("booking_id", bookingID))

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

	ctx = context.WithoutCancel(ctx)

	eventDeleted := false
	if booking.ExternalEventID != "" && a.calendar != nil {
		if err := a.deleteEvent(ctx, booking.HostEmail, booking.ExternalEventID); err != nil {
			logger.Warn("Failed to delete calendar event, continuing with cancellation",
				zap.String("event_id", booking.ExternalEventID),
				zap.Error(err))
		} else {
			eventDeleted = true
		}
	}

	now := a.clock.Now()
	changed, err := a.store.CancelBooking(ctx, booking.ID, reason, now)
	if err != nil {
		if eventDeleted {
			// The event is gone but the row is still confirmed. Nothing recreates it.
			logger.Error("Booking still confirmed but its calendar event was deleted",
				zap.String("event_id", booking.ExternalEventID),
				zap.Bool("event_deleted", true),
				zap.Error(err))
		}
		return nil, fmt.Errorf("%w: failed to cancel booking: %w", model.ErrPersistence, err)
	}
	if !changed {
		logger.Info("Booking was cancelled concurrently")
		return nil, model.ErrBookingNotConfirmed
	}

	booking.Status = db.BookingStatusCancelled
	booking.CancelReason = reason
	booking.CancelledAt = &now

	if err := a.ledger.Release(ctx, booking.SlotID); err != nil {
		logger.Error("Booking cancelled but seat release failed", zap.String("slot_id", booking.SlotID), zap.Error(err))
		return booking, fmt.Errorf("booking cancelled but failed to release seat: %w", err)
	}

	logger.Info("Booking cancelled", zap.String("slot_id", booking.SlotID), zap.String("reason", reason))

	slot, offering, err := a.sessionFor(ctx, booking.SlotID)
	if err != nil {
		logger.Warn("Skipping cancellation notice", zap.Error(err))
		return booking, nil
	}
	a.notify(ctx, logger, cancellationNotification(booking, slot, offering, a.cfg.Location, now))

	return booking, nil
}

// sessionFor loads the slot and offering a booking refers to
func (a *Allocator) sessionFor(ctx context.Context, slotID string) (*db.Slot, *db.ServiceOffering, error) {
	slot, err := a.store.GetSlot(ctx, slotID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch slot %s: %w", slotID, err)
	}
	offering, err := a.store.GetOffering(ctx, slot.OfferingID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch offering %s: %w", slot.OfferingID, err)
	}
	return slot, offering, nil
}
