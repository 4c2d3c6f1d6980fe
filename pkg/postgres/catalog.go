package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/session-booking/pkg/db"
)

// GetOfferings retrieves all service offerings ordered by slug
func (d *DB) GetOfferings(ctx context.Context) ([]db.ServiceOffering, error) {
	rows, err := d.query(ctx, `
		SELECT id, slug, name, start_hour, end_hour, modality, max_occupancy
		FROM service_offering
		ORDER BY slug
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query offerings: %w", err)
	}
	defer rows.Close()

	var offerings []db.ServiceOffering
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		offerings = append(offerings, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offerings: %w", err)
	}
	return offerings, nil
}

// GetOffering retrieves one offering by id
func (d *DB) GetOffering(ctx context.Context, offeringID string) (*db.ServiceOffering, error) {
	row := d.queryRow(ctx, `
		SELECT id, slug, name, start_hour, end_hour, modality, max_occupancy
		FROM service_offering
		WHERE id = $1
	`, offeringID)
	o, err := scanOffering(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	return o, err
}

func scanOffering(row pgx.Row) (*db.ServiceOffering, error) {
	var o db.ServiceOffering
	var modality string
	if err := row.Scan(&o.ID, &o.Slug, &o.Name, &o.StartHour, &o.EndHour, &modality, &o.MaxOccupancy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan offering: %w", err)
	}
	o.Modality = db.Modality(modality)
	return &o, nil
}

// UpsertOffering inserts or updates an offering by id
func (d *DB) UpsertOffering(ctx context.Context, offering *db.ServiceOffering) error {
	_, err := d.exec(ctx, `
		INSERT INTO service_offering (id, slug, name, start_hour, end_hour, modality, max_occupancy)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			slug = EXCLUDED.slug,
			name = EXCLUDED.name,
			start_hour = EXCLUDED.start_hour,
			end_hour = EXCLUDED.end_hour,
			modality = EXCLUDED.modality,
			max_occupancy = EXCLUDED.max_occupancy
	`, offering.ID, offering.Slug, offering.Name, offering.StartHour, offering.EndHour, string(offering.Modality), offering.MaxOccupancy)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("offering slug %q already used by another offering: %w", offering.Slug, err)
		}
		return fmt.Errorf("failed to upsert offering: %w", err)
	}
	return nil
}

// GetOwners retrieves all owners ordered by id
func (d *DB) GetOwners(ctx context.Context) ([]db.Owner, error) {
	rows, err := d.query(ctx, `SELECT id, name, day_patterns, full_calendar FROM owner ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query owners: %w", err)
	}
	defer rows.Close()

	var owners []db.Owner
	for rows.Next() {
		var o db.Owner
		if err := rows.Scan(&o.ID, &o.Name, &o.DayPatterns, &o.FullCalendar); err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		owners = append(owners, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating owners: %w", err)
	}
	return owners, nil
}

// GetOwner retrieves one owner by id
func (d *DB) GetOwner(ctx context.Context, ownerID string) (*db.Owner, error) {
	var o db.Owner
	err := d.queryRow(ctx, `SELECT id, name, day_patterns, full_calendar FROM owner WHERE id = $1`, ownerID).
		Scan(&o.ID, &o.Name, &o.DayPatterns, &o.FullCalendar)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}
	return &o, nil
}

// UpsertOwner inserts or updates an owner by id
func (d *DB) UpsertOwner(ctx context.Context, owner *db.Owner) error {
	patterns := owner.DayPatterns
	if patterns == nil {
		patterns = []string{}
	}
	_, err := d.exec(ctx, `
		INSERT INTO owner (id, name, day_patterns, full_calendar)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			day_patterns = EXCLUDED.day_patterns,
			full_calendar = EXCLUDED.full_calendar
	`, owner.ID, owner.Name, patterns, owner.FullCalendar)
	if err != nil {
		return fmt.Errorf("failed to upsert owner: %w", err)
	}
	return nil
}
