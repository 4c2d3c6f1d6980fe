package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/session-booking/pkg/core/model"
)

func TestReassignHost_TransfersEvent(t *testing.T) {
	f := setupAllocator(t)
	slot := addSlot(t, f.mem, "2026-03-10", 9, 2)
	booking := bookOne(t, f, slot, 1)
	require.Equal(t, "alice@example.org", booking.HostEmail)

	updated, err := f.allocator.ReassignHost(context.Background(), booking.ID, "carol@example.org")
	require.NoError(t, err)
	assert.Equal(t, "carol@example.org", updated.HostEmail)
	assert.Equal(t, "evt-1-moved", updated.ExternalEventID)
	assert.Equal(t, []string{"evt-1:alice@example.org->carol@example.org"}, f.calendar.transfers)

	stored, err := f.mem.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol@example.org", stored.HostEmail)
	assert.Equal(t, "evt-1-moved", stored.ExternalEventID)

	require.Len(t, f.notifier.sent, 2)
	assert.Contains(t, f.notifier.sent[1].Body, "carol@example.org")
}

func TestReassignHost_TransferFailureLeavesBookingUnchanged(t *testing.T) {
	f := setupAllocator(t)
	slot := addSlot(t, f.mem, "2026-03-10", 9, 2)
	booking := bookOne(t, f, slot, 1)
	f.calendar.transferErr = errors.New("forbidden")

	_, err := f.allocator.ReassignHost(context.Background(), booking.ID, "bob@example.org")
	assert.ErrorIs(t, err, model.ErrExternalIntegration)

	stored, err := f.mem.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.org", stored.HostEmail)
	assert.Equal(t, "evt-1", stored.ExternalEventID)
}

func TestReassignHost_PersistFailureTransfersBack(t *testing.T) {
	f := setupAllocator(t)
	slot := addSlot(t, f.mem, "2026-03-10", 9, 2)
	booking := bookOne(t, f, slot, 1)
	f.store.updateHostErr = errors.New("deadlock")

	_, err := f.allocator.ReassignHost(context.Background(), booking.ID, "bob@example.org")
	assert.ErrorIs(t, err, model.ErrPersistence)
	assert.Equal(t, []string{
		"evt-1:alice@example.org->bob@example.org",
		"evt-1-moved:bob@example.org->alice@example.org",
	}, f.calendar.transfers)
}

func TestReassignHost_UnknownHost(t *testing.T) {
	f := setupAllocator(t)
	slot := addSlot(t, f.mem, "2026-03-10", 9, 2)
	booking := bookOne(t, f, slot, 1)

	_, err := f.allocator.ReassignHost(context.Background(), booking.ID, "mallory@example.org")
	assert.ErrorIs(t, err, model.ErrUnknownHost)
}

func TestReassignHost_CancelledBooking(t *testing.T) {
	f := setupAllocator(t)
	ctx := context.Background()
	slot := addSlot(t, f.mem, "2026-03-10", 9, 2)
	booking := bookOne(t, f, slot, 1)
	_, err := f.allocator.CancelBooking(ctx, booking.ID, "")
	require.NoError(t, err)

	_, err = f.allocator.ReassignHost(ctx, booking.ID, "bob@example.org")
	assert.ErrorIs(t, err, model.ErrBookingNotConfirmed)
}

func TestReassignHost_DegradedBookingNeedsNoTransfer(t *testing.T) {
	f := setupAllocator(t)
	f.calendar.createErr = errors.New("down")
	slot := addSlot(t, f.mem, "2026-03-10", 9, 2)
	booking := bookOne(t, f, slot, 1)

	updated, err := f.allocator.ReassignHost(context.Background(), booking.ID, "bob@example.org")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.org", updated.HostEmail)
	assert.Empty(t, updated.ExternalEventID)
	assert.Empty(t, f.calendar.transfers)
}
