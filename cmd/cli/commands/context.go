package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/internal/clock"
	"github.com/jakechorley/session-booking/internal/config"
	"github.com/jakechorley/session-booking/pkg/core/services"
	"github.com/jakechorley/session-booking/pkg/db"
)

// AppContext holds the application dependencies shared across all commands.
// Calendar and Notifier are nil when running offline.
type AppContext struct {
	Cfg          *config.Config
	Database     db.Database
	Calendar     services.CalendarClient
	Notifier     services.Notifier
	Deduper      services.Deduper
	Materializer *services.Materializer
	Allocator    *services.Allocator
	Clock        clock.Clock
	Logger       *zap.Logger
	Ctx          context.Context
}
