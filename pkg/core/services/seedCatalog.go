package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/pkg/core/model"
	"github.com/jakechorley/session-booking/pkg/core/recurrence"
	"github.com/jakechorley/session-booking/pkg/db"
)

// offeringNamespace scopes deterministic offering ids
var offeringNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("session-booking/offering"))

// OfferingID derives a stable id from an offering slug so reseeding never
// orphans existing slots
func OfferingID(slug string) string {
	return uuid.NewSHA1(offeringNamespace, []byte(slug)).String()
}

// SeedCatalogStore defines the database operations needed for seeding the catalog
type SeedCatalogStore interface {
	UpsertOffering(ctx context.Context, offering *db.ServiceOffering) error
	UpsertOwner(ctx context.Context, owner *db.Owner) error
}

// ValidateOffering checks the static constraints of an offering
func ValidateOffering(o db.ServiceOffering) error {
	if o.Slug == "" {
		return model.NewValidationError("offering.slug", "must not be empty")
	}
	if o.StartHour < 0 || o.EndHour > 24 || o.StartHour >= o.EndHour {
		return model.NewValidationError("offering.hours", "%s: start hour %d must be before end hour %d within 0-24", o.Slug, o.StartHour, o.EndHour)
	}
	if o.MaxOccupancy < 1 {
		return model.NewValidationError("offering.max_occupancy", "%s: must be at least 1", o.Slug)
	}
	if o.Modality != db.ModalityVirtual && o.Modality != db.ModalityInPerson {
		return model.NewValidationError("offering.modality", "%s: unknown modality %q", o.Slug, o.Modality)
	}
	return nil
}

// SeedCatalog upserts the configured offerings and owners.
// Unrecognized day patterns are logged but still stored; the materializer skips them.
func SeedCatalog(
	ctx context.Context,
	store SeedCatalogStore,
	offerings []db.ServiceOffering,
	owners []db.Owner,
	logger *zap.Logger,
) error {
	logger.Debug("Seeding catalog", zap.Int("offerings", len(offerings)), zap.Int("owners", len(owners)))

	for i := range offerings {
		o := offerings[i]
		if err := ValidateOffering(o); err != nil {
			return err
		}
		if o.ID == "" {
			o.ID = OfferingID(o.Slug)
		}
		if err := store.UpsertOffering(ctx, &o); err != nil {
			return fmt.Errorf("failed to upsert offering %s: %w", o.Slug, err)
		}
	}

	for i := range owners {
		owner := owners[i]
		if owner.ID == "" {
			return model.NewValidationError("owner.id", "must not be empty")
		}
		for _, p := range recurrence.ParseAll(owner.DayPatterns) {
			if !p.Recognized() {
				logger.Warn("Unrecognized day pattern will be ignored",
					zap.String("owner_id", owner.ID),
					zap.String("pattern", p.Source))
			}
		}
		if err := store.UpsertOwner(ctx, &owner); err != nil {
			return fmt.Errorf("failed to upsert owner %s: %w", owner.ID, err)
		}
	}

	logger.Info("Catalog seeded", zap.Int("offerings", len(offerings)), zap.Int("owners", len(owners)))
	return nil
}
