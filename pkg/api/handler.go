package api

import (
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/internal/clock"
	"github.com/jakechorley/session-booking/pkg/core/services"
)

// Store is the read side the handlers query directly
type Store interface {
	services.ListSlotsStore
	services.DueBookingsStore
}

// Handler holds the dependencies shared by every route
type Handler struct {
	Store        Store
	Materializer *services.Materializer
	Allocator    *services.Allocator
	Windows      services.ReminderWindows
	Location     *time.Location
	Clock        clock.Clock
	Log          *zap.Logger
}

// NewHandler constructs a Handler
func NewHandler(
	store Store,
	materializer *services.Materializer,
	allocator *services.Allocator,
	windows services.ReminderWindows,
	loc *time.Location,
	clk clock.Clock,
	logger *zap.Logger,
) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		Store:        store,
		Materializer: materializer,
		Allocator:    allocator,
		Windows:      windows,
		Location:     loc,
		Clock:        clk,
		Log:          logger,
	}
}
