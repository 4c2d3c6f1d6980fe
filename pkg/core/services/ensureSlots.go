package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jakechorley/session-booking/internal/clock"
	"github.com/jakechorley/session-booking/pkg/core/model"
	"github.com/jakechorley/session-booking/pkg/core/recurrence"
	"github.com/jakechorley/session-booking/pkg/db"
)

// MaterializerStore defines the database operations needed for slot materialization
type MaterializerStore interface {
	GetOfferings(ctx context.Context) ([]db.ServiceOffering, error)
	GetOwners(ctx context.Context) ([]db.Owner, error)
	GetOwner(ctx context.Context, ownerID string) (*db.Owner, error)
	LatestSlotDate(ctx context.Context, ownerID string) (string, error)
	InsertSlots(ctx context.Context, slots []db.Slot) (int, error)
}

// MaterializerConfig controls how far ahead slots are generated
type MaterializerConfig struct {
	// Location is the timezone slot hours are expressed in
	Location *time.Location
	Holidays recurrence.Holidays
	// HorizonMonths is how many months past the current one to cover
	HorizonMonths int
	// LookaheadMonths is the margin before the horizon at which an owner is
	// considered due for more slots
	LookaheadMonths int
	// TriggerTimeout bounds a background run started by Trigger
	TriggerTimeout time.Duration
}

// Materializer generates bookable slots from owner day patterns.
// Runs are incremental and idempotent: slots that already exist are skipped.
type Materializer struct {
	store  MaterializerStore
	clock  clock.Clock
	cfg    MaterializerConfig
	logger *zap.Logger

	group singleflight.Group
	wg    sync.WaitGroup
}

// NewMaterializer creates a materializer, filling defaults for unset config
func NewMaterializer(store MaterializerStore, clk clock.Clock, cfg MaterializerConfig, logger *zap.Logger) *Materializer {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.HorizonMonths <= 0 {
		cfg.HorizonMonths = 3
	}
	if cfg.LookaheadMonths <= 0 {
		cfg.LookaheadMonths = 1
	}
	if cfg.TriggerTimeout <= 0 {
		cfg.TriggerTimeout = time.Minute
	}
	return &Materializer{store: store, clock: clk, cfg: cfg, logger: logger}
}

// Today returns the current civil date in the materializer's timezone
func (m *Materializer) Today() time.Time {
	return recurrence.CivilDate(m.clock.Now().In(m.cfg.Location))
}

// HorizonEnd is the last day of the month HorizonMonths after the current one
func (m *Materializer) HorizonEnd() time.Time {
	today := m.Today()
	firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	return firstOfMonth.AddDate(0, m.cfg.HorizonMonths+1, -1)
}

// EnsureSlots materializes the owner's slots up to horizonEnd.
// It resumes the day after the owner's latest materialized slot, and does
// nothing while that slot is still within the lookahead margin of the horizon.
// Returns the number of newly created slots.
func (m *Materializer) EnsureSlots(ctx context.Context, owner db.Owner, offerings []db.ServiceOffering, horizonEnd time.Time) (int, error) {
	logger := m.logger.With(zap.String("owner_id", owner.ID))
	today := m.Today()
	horizonEnd = recurrence.CivilDate(horizonEnd)

	latest, err := m.store.LatestSlotDate(ctx, owner.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch latest slot date: %w", err)
	}

	start := today
	if latest != "" {
		latestDate, err := time.Parse(db.DateLayout, latest)
		if err != nil {
			return 0, fmt.Errorf("invalid latest slot date %q: %w", latest, err)
		}
		threshold := horizonEnd.AddDate(0, -m.cfg.LookaheadMonths, 0)
		if !latestDate.Before(threshold) {
			logger.Debug("Slots already materialized far enough ahead",
				zap.String("latest", latest),
				zap.String("threshold", threshold.Format(db.DateLayout)))
			return 0, nil
		}
		if next := latestDate.AddDate(0, 0, 1); next.After(start) {
			start = next
		}
	}

	if start.After(horizonEnd) {
		return 0, nil
	}

	patterns := m.patternsFor(owner, logger)
	if len(patterns) == 0 {
		logger.Debug("Owner has no recognized day patterns")
		return 0, nil
	}

	dates := recurrence.ResolveAll(patterns, start, horizonEnd, m.cfg.Holidays)
	logger.Debug("Resolved session dates",
		zap.String("from", start.Format(db.DateLayout)),
		zap.String("to", horizonEnd.Format(db.DateLayout)),
		zap.Int("dates", len(dates)))

	slots := m.buildSlots(owner, offerings, dates, logger)
	if len(slots) == 0 {
		return 0, nil
	}

	inserted, err := m.store.InsertSlots(ctx, slots)
	if err != nil {
		return 0, fmt.Errorf("failed to insert slots: %w", err)
	}

	logger.Info("Slots materialized",
		zap.Int("candidates", len(slots)),
		zap.Int("created", inserted))
	return inserted, nil
}

func (m *Materializer) patternsFor(owner db.Owner, logger *zap.Logger) []recurrence.Pattern {
	var patterns []recurrence.Pattern
	for _, p := range recurrence.ParseAll(owner.DayPatterns) {
		if !p.Recognized() {
			logger.Warn("Skipping unrecognized day pattern", zap.String("pattern", p.Source))
			continue
		}
		patterns = append(patterns, p)
	}
	if owner.FullCalendar {
		patterns = append(patterns, recurrence.FullCalendar())
	}
	return patterns
}

// buildSlots creates one slot per offering hour on each date
func (m *Materializer) buildSlots(owner db.Owner, offerings []db.ServiceOffering, dates []time.Time, logger *zap.Logger) []db.Slot {
	var slots []db.Slot
	for _, offering := range offerings {
		if err := ValidateOffering(offering); err != nil {
			logger.Warn("Skipping invalid offering", zap.String("offering", offering.Slug), zap.Error(err))
			continue
		}
		for _, d := range dates {
			for hour := offering.StartHour; hour < offering.EndHour; hour++ {
				startsAt := time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, m.cfg.Location)
				endsAt := startsAt.Add(time.Hour)
				slots = append(slots, db.Slot{
					ID:           uuid.New().String(),
					OfferingID:   offering.ID,
					OwnerID:      owner.ID,
					Date:         d.Format(db.DateLayout),
					StartTime:    startsAt.Format(db.TimeLayout),
					EndTime:      endsAt.Format(db.TimeLayout),
					StartsAt:     startsAt,
					EndsAt:       endsAt,
					MaxOccupancy: offering.MaxOccupancy,
					Active:       true,
				})
			}
		}
	}
	return slots
}

// EnsureOwner loads the owner and catalog and materializes up to the default horizon
func (m *Materializer) EnsureOwner(ctx context.Context, ownerID string) (int, error) {
	owner, err := m.store.GetOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return 0, model.ErrOwnerNotFound
		}
		return 0, fmt.Errorf("failed to fetch owner: %w", err)
	}

	offerings, err := m.store.GetOfferings(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch offerings: %w", err)
	}

	return m.EnsureSlots(ctx, *owner, offerings, m.HorizonEnd())
}

// EnsureAll materializes every owner. A failing owner does not stop the
// others; failures are joined into the returned error.
func (m *Materializer) EnsureAll(ctx context.Context) (map[string]int, error) {
	owners, err := m.store.GetOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch owners: %w", err)
	}
	offerings, err := m.store.GetOfferings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch offerings: %w", err)
	}

	horizonEnd := m.HorizonEnd()
	created := make(map[string]int, len(owners))
	var errs []error
	for _, owner := range owners {
		n, err := m.EnsureSlots(ctx, owner, offerings, horizonEnd)
		if err != nil {
			m.logger.Error("Failed to materialize owner", zap.String("owner_id", owner.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("owner %s: %w", owner.ID, err))
			continue
		}
		created[owner.ID] = n
	}
	return created, errors.Join(errs...)
}

// Trigger starts a background EnsureOwner run and returns immediately.
// Concurrent triggers for the same owner share one run. Errors are logged only.
func (m *Materializer) Trigger(ownerID string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.TriggerTimeout)
		defer cancel()

		created, err, shared := m.group.Do(ownerID, func() (interface{}, error) {
			return m.EnsureOwner(ctx, ownerID)
		})
		if err != nil {
			m.logger.Warn("Background materialization failed", zap.String("owner_id", ownerID), zap.Error(err))
			return
		}
		m.logger.Debug("Background materialization finished",
			zap.String("owner_id", ownerID),
			zap.Any("created", created),
			zap.Bool("shared", shared))
	}()
}

// Wait blocks until all background runs started by Trigger have finished
func (m *Materializer) Wait() {
	m.wg.Wait()
}
