package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/session-booking/pkg/db"
)

const bookingColumns = `b.id, b.slot_id, b.volunteer_name, b.volunteer_email, b.volunteer_phone,
	b.host_email, b.external_event_id, b.video_link, b.status, b.cancel_reason,
	b.created_at, b.cancelled_at`

const detailColumns = bookingColumns + `,
	s.id, s.offering_id, s.owner_id, s.slot_date::text, s.start_time, s.end_time,
	s.starts_at, s.ends_at, s.max_occupancy, s.current_occupancy, s.active,
	o.id, o.slug, o.name, o.start_hour, o.end_hour, o.modality, o.max_occupancy`

const detailJoin = `
	FROM booking b
	JOIN slot s ON s.id = b.slot_id
	JOIN service_offering o ON o.id = s.offering_id`

func bookingDest(b *db.Booking, phone, host, eventID, link, reason **string, status *string) []any {
	return []any{&b.ID, &b.SlotID, &b.VolunteerName, &b.VolunteerEmail, phone,
		host, eventID, link, status, reason, &b.CreatedAt, &b.CancelledAt}
}

func scanBooking(row pgx.Row) (*db.Booking, error) {
	var b db.Booking
	var phone, host, eventID, link, reason *string
	var status string
	if err := row.Scan(bookingDest(&b, &phone, &host, &eventID, &link, &reason, &status)...); err != nil {
		return nil, err
	}
	fillBooking(&b, phone, host, eventID, link, reason, status)
	return &b, nil
}

func scanDetail(row pgx.Row) (*db.BookingDetail, error) {
	var d db.BookingDetail
	var phone, host, eventID, link, reason *string
	var status, modality string
	s, o := &d.Slot, &d.Offering

	dest := bookingDest(&d.Booking, &phone, &host, &eventID, &link, &reason, &status)
	dest = append(dest,
		&s.ID, &s.OfferingID, &s.OwnerID, &s.Date, &s.StartTime, &s.EndTime,
		&s.StartsAt, &s.EndsAt, &s.MaxOccupancy, &s.CurrentOccupancy, &s.Active,
		&o.ID, &o.Slug, &o.Name, &o.StartHour, &o.EndHour, &modality, &o.MaxOccupancy)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	fillBooking(&d.Booking, phone, host, eventID, link, reason, status)
	o.Modality = db.Modality(modality)
	return &d, nil
}

func fillBooking(b *db.Booking, phone, host, eventID, link, reason *string, status string) {
	b.VolunteerPhone = deref(phone)
	b.HostEmail = deref(host)
	b.ExternalEventID = deref(eventID)
	b.VideoLink = deref(link)
	b.CancelReason = deref(reason)
	b.Status = db.BookingStatus(status)
}

func (d *DB) queryDetails(ctx context.Context, where string, args ...any) ([]db.BookingDetail, error) {
	rows, err := d.query(ctx, `SELECT `+detailColumns+detailJoin+` `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var details []db.BookingDetail
	for rows.Next() {
		detail, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		details = append(details, *detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %w", err)
	}
	return details, nil
}

// InsertBooking stores a new booking. Returns db.ErrNotFound if the slot does not exist.
func (d *DB) InsertBooking(ctx context.Context, booking *db.Booking) error {
	_, err := d.exec(ctx, `
		INSERT INTO booking (id, slot_id, volunteer_name, volunteer_email, volunteer_phone,
			host_email, external_event_id, video_link, status, cancel_reason, created_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, booking.ID, booking.SlotID, booking.VolunteerName, booking.VolunteerEmail, nullable(booking.VolunteerPhone),
		nullable(booking.HostEmail), nullable(booking.ExternalEventID), nullable(booking.VideoLink),
		string(booking.Status), nullable(booking.CancelReason), booking.CreatedAt, booking.CancelledAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return db.ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("booking %s already exists: %w", booking.ID, err)
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// GetBooking retrieves one booking by id
func (d *DB) GetBooking(ctx context.Context, bookingID string) (*db.Booking, error) {
	b, err := scanBooking(d.queryRow(ctx, `SELECT `+bookingColumns+` FROM booking b WHERE b.id = $1`, bookingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// GetConfirmedBookingsByEmail retrieves confirmed bookings for an email, case-insensitively
func (d *DB) GetConfirmedBookingsByEmail(ctx context.Context, email string) ([]db.BookingDetail, error) {
	return d.queryDetails(ctx, `
		WHERE b.status = 'confirmed' AND lower(b.volunteer_email) = lower($1)
		ORDER BY b.created_at
	`, email)
}

// CountConfirmedBookingsByHost returns confirmed booking counts per host email
func (d *DB) CountConfirmedBookingsByHost(ctx context.Context) (map[string]int, error) {
	rows, err := d.query(ctx, `
		SELECT host_email, COUNT(*)
		FROM booking
		WHERE status = 'confirmed' AND host_email IS NOT NULL
		GROUP BY host_email
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings by host: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var host string
		var n int
		if err := rows.Scan(&host, &n); err != nil {
			return nil, fmt.Errorf("failed to scan host count: %w", err)
		}
		counts[host] = n
	}
	return counts, rows.Err()
}

// CancelBooking moves a confirmed booking to cancelled. Returns false when the
// booking exists but was not confirmed, so only one caller sees true.
func (d *DB) CancelBooking(ctx context.Context, bookingID, reason string, at time.Time) (bool, error) {
	tag, err := d.exec(ctx, `
		UPDATE booking
		SET status = 'cancelled', cancel_reason = $2, cancelled_at = $3
		WHERE id = $1 AND status = 'confirmed'
	`, bookingID, nullable(reason), at)
	if err != nil {
		return false, fmt.Errorf("failed to cancel booking: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	if _, err := d.GetBooking(ctx, bookingID); err != nil {
		return false, err
	}
	return false, nil
}

// UpdateBookingHost sets the booking's host and calendar event id
func (d *DB) UpdateBookingHost(ctx context.Context, bookingID, hostEmail, externalEventID string) error {
	tag, err := d.exec(ctx, `
		UPDATE booking SET host_email = $2, external_event_id = $3 WHERE id = $1
	`, bookingID, nullable(hostEmail), nullable(externalEventID))
	if err != nil {
		return fmt.Errorf("failed to update booking host: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// GetConfirmedBookingsStartingBetween retrieves confirmed bookings whose slot
// starts within [from, to]
func (d *DB) GetConfirmedBookingsStartingBetween(ctx context.Context, from, to time.Time) ([]db.BookingDetail, error) {
	return d.queryDetails(ctx, `
		WHERE b.status = 'confirmed' AND s.starts_at BETWEEN $1 AND $2
		ORDER BY s.starts_at, b.created_at
	`, from, to)
}
