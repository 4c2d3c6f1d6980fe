package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSlot(id, date string, hour, max int) Slot {
	d, _ := time.Parse(DateLayout, date)
	start := d.Add(time.Duration(hour) * time.Hour)
	return Slot{
		ID:           id,
		OfferingID:   "offering-1",
		OwnerID:      "owner-1",
		Date:         date,
		StartTime:    start.Format(TimeLayout),
		EndTime:      start.Add(time.Hour).Format(TimeLayout),
		StartsAt:     start,
		EndsAt:       start.Add(time.Hour),
		MaxOccupancy: max,
		Active:       true,
	}
}

func TestMemoryDB_InsertSlotsSkipsExistingKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryDB()

	n, err := m.InsertSlots(ctx, []Slot{testSlot("a", "2026-03-19", 9, 2), testSlot("b", "2026-03-19", 10, 2)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// same key, new id
	n, err = m.InsertSlots(ctx, []Slot{testSlot("c", "2026-03-19", 9, 2), testSlot("d", "2026-04-16", 9, 2)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	latest, err := m.LatestSlotDate(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-04-16", latest)

	latest, err = m.LatestSlotDate(ctx, "owner-2")
	require.NoError(t, err)
	assert.Empty(t, latest)

	slots, err := m.GetSlotsForOwner(ctx, "owner-1", "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "a", slots[0].ID)
	assert.Equal(t, "b", slots[1].ID)
}

func TestMemoryDB_ClaimAndRelease(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryDB()
	_, err := m.InsertSlots(ctx, []Slot{testSlot("a", "2026-03-19", 9, 1)})
	require.NoError(t, err)

	ok, err := m.ClaimSlot(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.ClaimSlot(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.ReleaseSlot(ctx, "a"))
	require.NoError(t, m.ReleaseSlot(ctx, "a"))
	s, err := m.GetSlot(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, s.CurrentOccupancy)

	_, err = m.ClaimSlot(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDB_ConcurrentClaimsNeverOverfill(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryDB()
	_, err := m.InsertSlots(ctx, []Slot{testSlot("a", "2026-03-19", 9, 3)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.ClaimSlot(ctx, "a")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, claimed)
	s, _ := m.GetSlot(ctx, "a")
	assert.Equal(t, 3, s.CurrentOccupancy)
}

func TestMemoryDB_Bookings(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryDB()
	require.NoError(t, m.UpsertOffering(ctx, &ServiceOffering{ID: "offering-1", Slug: "mentoring", Name: "Mentoring"}))
	_, err := m.InsertSlots(ctx, []Slot{testSlot("a", "2026-03-19", 9, 2), testSlot("b", "2026-03-20", 9, 2)})
	require.NoError(t, err)

	require.NoError(t, m.InsertBooking(ctx, &Booking{ID: "b1", SlotID: "a", VolunteerEmail: "V@Example.com", HostEmail: "alice@example.org", Status: BookingStatusConfirmed}))
	require.NoError(t, m.InsertBooking(ctx, &Booking{ID: "b2", SlotID: "b", VolunteerEmail: "w@example.com", HostEmail: "alice@example.org", Status: BookingStatusConfirmed}))
	assert.ErrorIs(t, m.InsertBooking(ctx, &Booking{ID: "b3", SlotID: "missing"}), ErrNotFound)

	t.Run("by email is case-insensitive and joined", func(t *testing.T) {
		details, err := m.GetConfirmedBookingsByEmail(ctx, "v@example.com")
		require.NoError(t, err)
		require.Len(t, details, 1)
		assert.Equal(t, "2026-03-19", details[0].Slot.Date)
		assert.Equal(t, "Mentoring", details[0].Offering.Name)
	})

	t.Run("counts by host", func(t *testing.T) {
		counts, err := m.CountConfirmedBookingsByHost(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"alice@example.org": 2}, counts)
	})

	t.Run("cancel only transitions confirmed bookings", func(t *testing.T) {
		at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		changed, err := m.CancelBooking(ctx, "b2", "ill", at)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = m.CancelBooking(ctx, "b2", "again", at)
		require.NoError(t, err)
		assert.False(t, changed)

		b, err := m.GetBooking(ctx, "b2")
		require.NoError(t, err)
		assert.Equal(t, BookingStatusCancelled, b.Status)
		assert.Equal(t, "ill", b.CancelReason)
		require.NotNil(t, b.CancelledAt)
		assert.True(t, at.Equal(*b.CancelledAt))
	})

	t.Run("starting between excludes cancelled", func(t *testing.T) {
		details, err := m.GetConfirmedBookingsStartingBetween(ctx,
			time.Date(2026, 3, 19, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		require.Len(t, details, 1)
		assert.Equal(t, "b1", details[0].Booking.ID)
	})

	t.Run("update host", func(t *testing.T) {
		require.NoError(t, m.UpdateBookingHost(ctx, "b1", "bob@example.org", "evt-2"))
		b, err := m.GetBooking(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "bob@example.org", b.HostEmail)
		assert.Equal(t, "evt-2", b.ExternalEventID)
	})
}

func TestMemoryDB_OwnersAreCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryDB()
	owner := &Owner{ID: "owner-1", DayPatterns: []string{"3-4"}}
	require.NoError(t, m.UpsertOwner(ctx, owner))
	owner.DayPatterns[0] = "changed"

	got, err := m.GetOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"3-4"}, got.DayPatterns)

	_, err = m.GetOwner(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
