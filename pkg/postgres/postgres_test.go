package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/pkg/db"
)

// newTestDB connects to TEST_DATABASE_URL and resets the schema.
// Tests are skipped when no database is configured.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping Postgres integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	d, err := NewDB(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Skipf("skipping Postgres integration tests: %v", err)
	}
	t.Cleanup(d.Close)

	_, err = d.pool.Exec(ctx, `DROP TABLE IF EXISTS booking, slot, owner, service_offering, schema_migrations CASCADE`)
	require.NoError(t, err)
	_, err = d.RunMigrations(ctx)
	require.NoError(t, err)
	return d
}

func seed(t *testing.T, d *DB) db.Slot {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, d.UpsertOffering(ctx, &db.ServiceOffering{
		ID: "off-1", Slug: "mentoring", Name: "Mentoring", StartHour: 9, EndHour: 12,
		Modality: db.ModalityVirtual, MaxOccupancy: 2,
	}))
	require.NoError(t, d.UpsertOwner(ctx, &db.Owner{ID: "owner-1", Name: "Hub", DayPatterns: []string{"3-4"}}))

	startsAt := time.Date(2026, 3, 19, 9, 0, 0, 0, time.UTC)
	slot := db.Slot{
		ID: "slot-1", OfferingID: "off-1", OwnerID: "owner-1", Date: "2026-03-19",
		StartTime: "09:00", EndTime: "10:00", StartsAt: startsAt, EndsAt: startsAt.Add(time.Hour),
		MaxOccupancy: 2, Active: true,
	}
	n, err := d.InsertSlots(ctx, []db.Slot{slot})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	return slot
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	d := newTestDB(t)
	ran, err := d.RunMigrations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ran)
}

func TestCatalogRoundTrip(t *testing.T) {
	d := newTestDB(t)
	seed(t, d)
	ctx := context.Background()

	owner, err := d.GetOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"3-4"}, owner.DayPatterns)

	offering, err := d.GetOffering(ctx, "off-1")
	require.NoError(t, err)
	assert.Equal(t, db.ModalityVirtual, offering.Modality)

	_, err = d.GetOwner(ctx, "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestInsertSlots_SkipsExistingKeys(t *testing.T) {
	d := newTestDB(t)
	slot := seed(t, d)
	ctx := context.Background()

	dup := slot
	dup.ID = "slot-dup"
	n, err := d.InsertSlots(ctx, []db.Slot{dup})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	latest, err := d.LatestSlotDate(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-19", latest)

	latest, err = d.LatestSlotDate(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, "", latest)
}

func TestClaimSlot_ConcurrentClaimsRespectCapacity(t *testing.T) {
	d := newTestDB(t)
	slot := seed(t, d)

	var mu sync.Mutex
	claimed := 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := d.ClaimSlot(context.Background(), slot.ID)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, claimed)
	got, err := d.GetSlot(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentOccupancy)

	_, err = d.ClaimSlot(context.Background(), "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestBookingLifecycle(t *testing.T) {
	d := newTestDB(t)
	slot := seed(t, d)
	ctx := context.Background()

	b := &db.Booking{
		ID: "b-1", SlotID: slot.ID, VolunteerName: "Sam", VolunteerEmail: "sam@example.com",
		HostEmail: "alice@example.org", Status: db.BookingStatusConfirmed, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, d.InsertBooking(ctx, b))

	got, err := d.GetBooking(ctx, "b-1")
	require.NoError(t, err)
	assert.Empty(t, got.ExternalEventID)
	assert.Empty(t, got.VolunteerPhone)

	byEmail, err := d.GetConfirmedBookingsByEmail(ctx, "SAM@example.com")
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, "2026-03-19", byEmail[0].Slot.Date)
	assert.Equal(t, "Mentoring", byEmail[0].Offering.Name)

	counts, err := d.CountConfirmedBookingsByHost(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"alice@example.org": 1}, counts)

	due, err := d.GetConfirmedBookingsStartingBetween(ctx, slot.StartsAt.Add(-time.Hour), slot.StartsAt)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	require.NoError(t, d.UpdateBookingHost(ctx, "b-1", "bob@example.org", "evt-9"))
	got, err = d.GetBooking(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.org", got.HostEmail)
	assert.Equal(t, "evt-9", got.ExternalEventID)

	changed, err := d.CancelBooking(ctx, "b-1", "ill", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = d.CancelBooking(ctx, "b-1", "ill", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = d.CancelBooking(ctx, "missing", "", time.Now().UTC())
	assert.ErrorIs(t, err, db.ErrNotFound)

	err = d.InsertBooking(ctx, &db.Booking{ID: "b-2", SlotID: "missing", VolunteerName: "x", VolunteerEmail: "x@example.com", Status: db.BookingStatusConfirmed, CreatedAt: time.Now()})
	assert.ErrorIs(t, err, db.ErrNotFound)
}
