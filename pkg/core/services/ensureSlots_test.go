package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/pkg/core/model"
	"github.com/jakechorley/session-booking/pkg/core/recurrence"
	"github.com/jakechorley/session-booking/pkg/db"
)

func setupMaterializer(t *testing.T, now time.Time, patterns []string, holidays recurrence.Holidays) (*db.MemoryDB, *testClock, *Materializer) {
	t.Helper()
	ctx := context.Background()
	store := db.NewMemoryDB()
	offering := mentoring
	require.NoError(t, store.UpsertOffering(ctx, &offering))
	require.NoError(t, store.UpsertOwner(ctx, &db.Owner{ID: "owner-1", Name: "North hub", DayPatterns: patterns}))

	clk := &testClock{now: now}
	m := NewMaterializer(store, clk, MaterializerConfig{
		Location:      time.UTC,
		Holidays:      holidays,
		HorizonMonths: 3,
	}, zap.NewNop())
	return store, clk, m
}

func slotDates(t *testing.T, store *db.MemoryDB) []string {
	t.Helper()
	slots, err := store.GetSlotsForOwner(context.Background(), "owner-1", "0000-01-01", "9999-12-31")
	require.NoError(t, err)
	seen := map[string]bool{}
	var dates []string
	for _, s := range slots {
		if !seen[s.Date] {
			seen[s.Date] = true
			dates = append(dates, s.Date)
		}
	}
	return dates
}

func TestHorizonEnd(t *testing.T) {
	_, _, m := setupMaterializer(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), nil, nil)
	assert.Equal(t, "2026-04-30", m.HorizonEnd().Format(db.DateLayout))
}

func TestEnsureSlots_CreatesHourlySlotsForResolvedDates(t *testing.T) {
	store, _, m := setupMaterializer(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), []string{"3-4"}, nil)

	created, err := m.EnsureOwner(context.Background(), "owner-1")
	require.NoError(t, err)

	// four third Thursdays, three hours each
	assert.Equal(t, 12, created)
	assert.Equal(t, []string{"2026-01-15", "2026-02-19", "2026-03-19", "2026-04-16"}, slotDates(t, store))

	slots, err := store.GetSlotsForOwner(context.Background(), "owner-1", "2026-01-15", "2026-01-15")
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, "09:00", slots[0].StartTime)
	assert.Equal(t, "10:00", slots[0].EndTime)
	assert.Equal(t, "11:00", slots[2].StartTime)
	assert.Equal(t, 2, slots[0].MaxOccupancy)
	assert.Equal(t, 0, slots[0].CurrentOccupancy)
	assert.True(t, slots[0].Active)
	assert.Equal(t, time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC), slots[0].StartsAt)
}

func TestEnsureSlots_IsIdempotent(t *testing.T) {
	store, _, m := setupMaterializer(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), []string{"3-4"}, nil)
	ctx := context.Background()

	first, err := m.EnsureOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Equal(t, 12, first)

	second, err := m.EnsureOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 0, second)
	assert.Len(t, slotDates(t, store), 4)
}

func TestEnsureSlots_ExtendsIncrementallyAsTimeMoves(t *testing.T) {
	store, clk, m := setupMaterializer(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), []string{"3-4"}, nil)
	ctx := context.Background()

	_, err := m.EnsureOwner(ctx, "owner-1")
	require.NoError(t, err)

	clk.Set(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	created, err := m.EnsureOwner(ctx, "owner-1")
	require.NoError(t, err)

	assert.Equal(t, 6, created)
	assert.Equal(t, []string{
		"2026-01-15", "2026-02-19", "2026-03-19", "2026-04-16", "2026-05-21", "2026-06-18",
	}, slotDates(t, store))
}

func TestEnsureSlots_SkipsHolidays(t *testing.T) {
	holidays, err := recurrence.ParseHolidays([]string{"2026-02-19"})
	require.NoError(t, err)
	store, _, m := setupMaterializer(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), []string{"3-4"}, holidays)

	created, err := m.EnsureOwner(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 9, created)
	assert.NotContains(t, slotDates(t, store), "2026-02-19")
}

func TestEnsureSlots_UnrecognizedPatternsAreSkipped(t *testing.T) {
	store, _, m := setupMaterializer(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), []string{"fortnightly-ish", "3-4"}, nil)

	created, err := m.EnsureOwner(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 12, created)
	assert.Len(t, slotDates(t, store), 4)
}

func TestEnsureSlots_NoPatternsCreatesNothing(t *testing.T) {
	store, _, m := setupMaterializer(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), nil, nil)

	created, err := m.EnsureOwner(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Empty(t, slotDates(t, store))
}

func TestEnsureSlots_UnknownOwner(t *testing.T) {
	_, _, m := setupMaterializer(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), nil, nil)

	_, err := m.EnsureOwner(context.Background(), "nobody")
	assert.ErrorIs(t, err, model.ErrOwnerNotFound)
}

func TestEnsureAll(t *testing.T) {
	store, _, m := setupMaterializer(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), []string{"3-4"}, nil)
	require.NoError(t, store.UpsertOwner(context.Background(), &db.Owner{ID: "owner-2", DayPatterns: []string{"1st monday"}}))

	created, err := m.EnsureAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, created["owner-1"])
	// first Mondays Jan 5, Feb 2, Mar 2, Apr 6
	assert.Equal(t, 12, created["owner-2"])
}

func TestTrigger_ConcurrentTriggersCreateEachSlotOnce(t *testing.T) {
	store, _, m := setupMaterializer(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), []string{"3-4"}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Trigger("owner-1")
		}()
	}
	wg.Wait()
	m.Wait()

	slots, err := store.GetSlotsForOwner(context.Background(), "owner-1", "2026-01-01", "2026-12-31")
	require.NoError(t, err)
	assert.Len(t, slots, 12)
}

func TestListAvailableSlots_FiltersFullAndInactive(t *testing.T) {
	store := db.NewMemoryDB()
	ctx := context.Background()
	require.NoError(t, store.UpsertOwner(ctx, &db.Owner{ID: "owner-1"}))

	open := addSlot(t, store, "2026-03-10", 9, 2)
	full := addSlot(t, store, "2026-03-10", 10, 1)
	_, err := store.ClaimSlot(ctx, full.ID)
	require.NoError(t, err)
	addSlot(t, store, "2026-03-20", 9, 2)

	slots, err := ListAvailableSlots(ctx, store, nil, "owner-1", mustDate(t, "2026-03-01"), mustDate(t, "2026-03-15"), zap.NewNop())
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, open.ID, slots[0].ID)
}

func TestListAvailableSlots_UnknownOwner(t *testing.T) {
	_, err := ListAvailableSlots(context.Background(), db.NewMemoryDB(), nil, "nobody", mustDate(t, "2026-03-01"), mustDate(t, "2026-03-15"), zap.NewNop())
	assert.ErrorIs(t, err, model.ErrOwnerNotFound)
}

func TestSeedCatalog(t *testing.T) {
	store := db.NewMemoryDB()
	ctx := context.Background()
	offering := mentoring
	offering.ID = ""

	err := SeedCatalog(ctx, store, []db.ServiceOffering{offering}, []db.Owner{{ID: "owner-1", DayPatterns: []string{"3-4", "nonsense"}}}, zap.NewNop())
	require.NoError(t, err)

	offerings, err := store.GetOfferings(ctx)
	require.NoError(t, err)
	require.Len(t, offerings, 1)
	assert.Equal(t, OfferingID("mentoring"), offerings[0].ID)

	owner, err := store.GetOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"3-4", "nonsense"}, owner.DayPatterns)
}

func TestSeedCatalog_RejectsInvalidOffering(t *testing.T) {
	offering := mentoring
	offering.EndHour = offering.StartHour

	err := SeedCatalog(context.Background(), db.NewMemoryDB(), []db.ServiceOffering{offering}, nil, zap.NewNop())
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}
