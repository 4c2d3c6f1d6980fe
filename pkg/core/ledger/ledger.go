package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/pkg/core/model"
	"github.com/jakechorley/session-booking/pkg/db"
)

// OccupancyStore is the persistence primitive the ledger relies on.
// ClaimSlot must be a single atomic conditional increment.
type OccupancyStore interface {
	ClaimSlot(ctx context.Context, slotID string) (bool, error)
	ReleaseSlot(ctx context.Context, slotID string) error
}

// Ledger owns per-slot occupancy. It is the only writer of
// Slot.CurrentOccupancy after materialization.
type Ledger struct {
	store  OccupancyStore
	logger *zap.Logger
}

// New creates a ledger over the given store
func New(store OccupancyStore, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, logger: logger}
}

// Claim takes one seat on the slot.
// Returns model.ErrSlotFull when no seat is free and model.ErrSlotNotFound
// when the slot does not exist.
func (l *Ledger) Claim(ctx context.Context, slotID string) error {
	claimed, err := l.store.ClaimSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return model.ErrSlotNotFound
		}
		return fmt.Errorf("failed to claim slot %s: %w", slotID, err)
	}
	if !claimed {
		l.logger.Debug("Slot full", zap.String("slot_id", slotID))
		return model.ErrSlotFull
	}

	l.logger.Debug("Seat claimed", zap.String("slot_id", slotID))
	return nil
}

// Release gives back one seat previously taken by Claim.
// Occupancy never drops below zero.
func (l *Ledger) Release(ctx context.Context, slotID string) error {
	if err := l.store.ReleaseSlot(ctx, slotID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return model.ErrSlotNotFound
		}
		return fmt.Errorf("failed to release slot %s: %w", slotID, err)
	}

	l.logger.Debug("Seat released", zap.String("slot_id", slotID))
	return nil
}
