package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/pkg/db"
)

// reminderMarkTTL outlives every reminder window so a booking is never
// reminded twice for the same label
const reminderMarkTTL = 72 * time.Hour

// ReminderReport summarises a SendReminders run
type ReminderReport struct {
	Label   string
	Sent    []db.BookingDetail
	Skipped []db.BookingDetail
	Failed  []FailedNotification
}

// ReminderKey is the dedup key for one booking in one window
func ReminderKey(label, bookingID string) string {
	return fmt.Sprintf("reminder:%s:%s", label, bookingID)
}

// SendReminders emails every booking due in the labelled window.
// Bookings already reminded for this label are skipped. A failed send
// forgets its mark so the next run retries it.
func SendReminders(
	ctx context.Context,
	store DueBookingsStore,
	notifier Notifier,
	deduper Deduper,
	windows ReminderWindows,
	reference time.Time,
	label string,
	loc *time.Location,
	logger *zap.Logger,
) (*ReminderReport, error) {
	logger = logger.With(zap.String("window", label))

	due, err := DueBookings(ctx, store, windows, reference, label)
	if err != nil {
		return nil, err
	}
	logger.Debug("Bookings due for reminder", zap.Int("count", len(due)))

	report := &ReminderReport{Label: label}
	for _, detail := range due {
		key := ReminderKey(label, detail.Booking.ID)

		first, err := deduper.MarkOnce(ctx, key, reminderMarkTTL)
		if err != nil {
			logger.Warn("Failed to record reminder mark", zap.String("booking_id", detail.Booking.ID), zap.Error(err))
			report.Failed = append(report.Failed, FailedNotification{
				BookingID: detail.Booking.ID,
				Email:     detail.Booking.VolunteerEmail,
				Error:     err.Error(),
			})
			continue
		}
		if !first {
			report.Skipped = append(report.Skipped, detail)
			continue
		}

		if err := notifier.SendNotification(ctx, reminderNotification(detail, label, loc)); err != nil {
			logger.Warn("Failed to send reminder", zap.String("booking_id", detail.Booking.ID), zap.Error(err))
			if ferr := deduper.Forget(ctx, key); ferr != nil {
				logger.Warn("Failed to clear reminder mark", zap.String("key", key), zap.Error(ferr))
			}
			report.Failed = append(report.Failed, FailedNotification{
				BookingID: detail.Booking.ID,
				Email:     detail.Booking.VolunteerEmail,
				Error:     err.Error(),
			})
			continue
		}
		report.Sent = append(report.Sent, detail)
	}

	logger.Info("Reminders processed",
		zap.Int("sent", len(report.Sent)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}
