package allocator

import (
	"time"

	"github.com/jakechorley/session-booking/pkg/db"
)

// FindNearbyBooking returns the first confirmed booking whose slot date lies
// within windowDays (inclusive) of targetDate, on either side.
// Dates are civil dates in db.DateLayout. A window of zero or less disables
// the check.
func FindNearbyBooking(existing []db.BookingDetail, targetDate string, windowDays int) (*db.BookingDetail, error) {
	if windowDays <= 0 {
		return nil, nil
	}

	target, err := time.Parse(db.DateLayout, targetDate)
	if err != nil {
		return nil, err
	}

	for i := range existing {
		if existing[i].Booking.Status != db.BookingStatusConfirmed {
			continue
		}
		d, err := time.Parse(db.DateLayout, existing[i].Slot.Date)
		if err != nil {
			return nil, err
		}
		if absDays(d.Sub(target)) <= windowDays {
			return &existing[i], nil
		}
	}
	return nil, nil
}

func absDays(d time.Duration) int {
	days := int(d.Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}
