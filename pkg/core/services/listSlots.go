package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/pkg/core/model"
	"github.com/jakechorley/session-booking/pkg/db"
)

// ListSlotsStore defines the database operations needed for listing slots
type ListSlotsStore interface {
	GetOwner(ctx context.Context, ownerID string) (*db.Owner, error)
	GetSlotsForOwner(ctx context.Context, ownerID, fromDate, toDate string) ([]db.Slot, error)
}

// SlotTrigger starts background materialization for an owner
type SlotTrigger interface {
	Trigger(ownerID string)
}

// ListAvailableSlots returns the owner's active slots with free seats between
// from and to inclusive. It fires a background materialization first but
// never waits for it, so newly generated slots may appear on the next call.
func ListAvailableSlots(
	ctx context.Context,
	store ListSlotsStore,
	trigger SlotTrigger,
	ownerID string,
	from, to time.Time,
	logger *zap.Logger,
) ([]db.Slot, error) {
	if to.Before(from) {
		return nil, model.NewValidationError("to", "must not be before from")
	}

	if _, err := store.GetOwner(ctx, ownerID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, model.ErrOwnerNotFound
		}
		return nil, fmt.Errorf("failed to fetch owner: %w", err)
	}

	if trigger != nil {
		trigger.Trigger(ownerID)
	}

	slots, err := store.GetSlotsForOwner(ctx, ownerID, from.Format(db.DateLayout), to.Format(db.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch slots: %w", err)
	}

	available := make([]db.Slot, 0, len(slots))
	for _, s := range slots {
		if s.Available() {
			available = append(available, s)
		}
	}

	logger.Debug("Listed available slots",
		zap.String("owner_id", ownerID),
		zap.Int("total", len(slots)),
		zap.Int("available", len(available)))
	return available, nil
}
