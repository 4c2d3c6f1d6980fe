package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/session-booking/pkg/db"
)

const slotColumns = `id, offering_id, owner_id, slot_date::text, start_time, end_time,
	starts_at, ends_at, max_occupancy, current_occupancy, active`

func scanSlot(row pgx.Row) (*db.Slot, error) {
	var s db.Slot
	err := row.Scan(&s.ID, &s.OfferingID, &s.OwnerID, &s.Date, &s.StartTime, &s.EndTime,
		&s.StartsAt, &s.EndsAt, &s.MaxOccupancy, &s.CurrentOccupancy, &s.Active)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// LatestSlotDate returns the owner's latest materialized slot date, or ""
func (d *DB) LatestSlotDate(ctx context.Context, ownerID string) (string, error) {
	var latest *string
	err := d.queryRow(ctx, `SELECT MAX(slot_date)::text FROM slot WHERE owner_id = $1`, ownerID).Scan(&latest)
	if err != nil {
		return "", fmt.Errorf("failed to query latest slot date: %w", err)
	}
	return deref(latest), nil
}

// InsertSlots inserts slots in one batch, skipping any whose
// (owner, offering, date, start time) already exists. Returns the number inserted.
func (d *DB) InsertSlots(ctx context.Context, slots []db.Slot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, s := range slots {
		batch.Queue(`
			INSERT INTO slot (id, offering_id, owner_id, slot_date, start_time, end_time,
				starts_at, ends_at, max_occupancy, current_occupancy, active)
			VALUES ($1, $2, $3, $4::text::date, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (owner_id, offering_id, slot_date, start_time) DO NOTHING
		`, s.ID, s.OfferingID, s.OwnerID, s.Date, s.StartTime, s.EndTime,
			s.StartsAt, s.EndsAt, s.MaxOccupancy, s.CurrentOccupancy, s.Active)
	}

	inserted := 0
	err := d.withTx(ctx, func(ctx context.Context) error {
		br := txFromContext(ctx).SendBatch(ctx, batch)
		defer br.Close()

		for range slots {
			tag, err := br.Exec()
			if err != nil {
				return fmt.Errorf("failed to insert slot: %w", err)
			}
			inserted += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetSlot retrieves one slot by id
func (d *DB) GetSlot(ctx context.Context, slotID string) (*db.Slot, error) {
	s, err := scanSlot(d.queryRow(ctx, `SELECT `+slotColumns+` FROM slot WHERE id = $1`, slotID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return s, nil
}

// GetSlotsForOwner retrieves the owner's slots between two civil dates inclusive
func (d *DB) GetSlotsForOwner(ctx context.Context, ownerID, fromDate, toDate string) ([]db.Slot, error) {
	rows, err := d.query(ctx, `
		SELECT `+slotColumns+`
		FROM slot
		WHERE owner_id = $1 AND slot_date BETWEEN $2::text::date AND $3::text::date
		ORDER BY starts_at, offering_id
	`, ownerID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	var slots []db.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slots: %w", err)
	}
	return slots, nil
}

// ClaimSlot increments occupancy if a seat is free, as one conditional update.
// Returns false when the slot is full and db.ErrNotFound when it does not exist.
func (d *DB) ClaimSlot(ctx context.Context, slotID string) (bool, error) {
	tag, err := d.exec(ctx, `
		UPDATE slot
		SET current_occupancy = current_occupancy + 1
		WHERE id = $1 AND current_occupancy < max_occupancy
	`, slotID)
	if err != nil {
		return false, fmt.Errorf("failed to claim slot: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := d.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM slot WHERE id = $1)`, slotID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check slot: %w", err)
	}
	if !exists {
		return false, db.ErrNotFound
	}
	return false, nil
}

// ReleaseSlot decrements occupancy, never below zero
func (d *DB) ReleaseSlot(ctx context.Context, slotID string) error {
	tag, err := d.exec(ctx, `
		UPDATE slot
		SET current_occupancy = GREATEST(current_occupancy - 1, 0)
		WHERE id = $1
	`, slotID)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}
