package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/cmd/cli/commands"
	"github.com/jakechorley/session-booking/internal/clock"
	"github.com/jakechorley/session-booking/internal/config"
	"github.com/jakechorley/session-booking/pkg/clients/calendarclient"
	"github.com/jakechorley/session-booking/pkg/clients/gmailclient"
	"github.com/jakechorley/session-booking/pkg/core/ledger"
	"github.com/jakechorley/session-booking/pkg/core/recurrence"
	"github.com/jakechorley/session-booking/pkg/core/services"
	"github.com/jakechorley/session-booking/pkg/db"
	"github.com/jakechorley/session-booking/pkg/ics"
	"github.com/jakechorley/session-booking/pkg/postgres"
	"github.com/jakechorley/session-booking/pkg/scheduler"
	"github.com/jakechorley/session-booking/pkg/utils"
	"github.com/jakechorley/session-booking/pkg/utils/logging"
)

const (
	storePostgres = "postgres"
	storeMemory   = "memory"

	redisKeyPrefix = "session-booking:"
)

var (
	env       string
	storeKind string
	offline   bool
	verbose   bool
	app       = &commands.AppContext{}
	closers   []func()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Session booking CLI - Manage bookable sessions and their hosts",
		Long:  `A CLI tool for generating session slots, booking volunteers, assigning hosts and sending reminders.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
			if app.Logger != nil {
				_ = app.Logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", storePostgres, "Storage backend: postgres or memory (dry run)")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Skip Google Calendar and Gmail")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to the console")

	rootCmd.AddCommand(commands.EnsureSlotsCmd(app))
	rootCmd.AddCommand(commands.ListSlotsCmd(app))
	rootCmd.AddCommand(commands.BookCmd(app))
	rootCmd.AddCommand(commands.CancelBookingCmd(app))
	rootCmd.AddCommand(commands.ReassignHostCmd(app))
	rootCmd.AddCommand(commands.DueRemindersCmd(app))
	rootCmd.AddCommand(commands.ServeCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, database, clients and services
func initApp() error {
	var err error
	app.Ctx = context.Background()
	app.Clock = clock.NewSystem()

	// Load configuration first so the logger knows where to write
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app.Logger, err = logging.InitLogger(logging.Options{Env: env, Dir: app.Cfg.LogsDir, Verbose: verbose})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := app.Logger

	logger.Info("Starting application", zap.String("environment", env), zap.String("store", storeKind))
	for _, w := range app.Cfg.PatternWarnings() {
		logger.Warn("Day pattern will be ignored", zap.String("detail", w))
	}

	if err := initDatabase(); err != nil {
		return err
	}

	logger.Info("Seeding catalog")
	offerings, owners := catalogFromConfig(app.Cfg)
	if err := services.SeedCatalog(app.Ctx, app.Database, offerings, owners, logger); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	holidays, err := loadHolidays()
	if err != nil {
		return err
	}

	if offline {
		logger.Info("Offline mode, calendar and email disabled")
	} else if err := initGoogleClients(); err != nil {
		return err
	}

	if err := initDeduper(); err != nil {
		return err
	}

	loc := app.Cfg.Location()
	app.Materializer = services.NewMaterializer(app.Database, app.Clock, services.MaterializerConfig{
		Location:        loc,
		Holidays:        holidays,
		HorizonMonths:   app.Cfg.HorizonMonths,
		LookaheadMonths: app.Cfg.LookaheadMonths,
	}, logger)

	app.Allocator, err = services.NewAllocator(
		app.Database,
		ledger.New(app.Database, logger),
		app.Calendar,
		app.Notifier,
		app.Clock,
		services.AllocatorConfig{
			Roster:              app.Cfg.Roster(),
			DuplicateWindowDays: *app.Cfg.DuplicateWindowDays,
			CalendarTimeout:     app.Cfg.CalendarTimeout,
			Location:            loc,
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create allocator: %w", err)
	}

	logger.Debug("Application initialized")
	return nil
}

func initDatabase() error {
	logger := app.Logger

	switch storeKind {
	case storeMemory:
		logger.Warn("Using in-memory store, nothing will be persisted")
		app.Database = db.NewMemoryDB()
	case storePostgres:
		if app.Cfg.DatabaseURL == "" {
			return fmt.Errorf("databaseURL is not set; set it in config or %s", config.DatabaseURLEnv)
		}
		logger.Info("Connecting to database")
		pg, err := postgres.NewDB(app.Ctx, app.Cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		closers = append(closers, pg.Close)

		applied, err := pg.RunMigrations(app.Ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("Applied migrations", zap.Strings("migrations", applied))
		}
		app.Database = pg
	default:
		return fmt.Errorf("unknown store %q, want %s or %s", storeKind, storePostgres, storeMemory)
	}
	return nil
}

func loadHolidays() (recurrence.Holidays, error) {
	holidays, err := recurrence.ParseHolidays(app.Cfg.Holidays)
	if err != nil {
		return nil, fmt.Errorf("failed to parse holidays: %w", err)
	}
	if len(app.Cfg.HolidayFeeds) > 0 {
		app.Logger.Info("Loading holiday feeds", zap.Int("feeds", len(app.Cfg.HolidayFeeds)))
		feeds, err := ics.LoadAllHolidays(app.Ctx, nil, app.Cfg.HolidayFeeds)
		if err != nil {
			return nil, fmt.Errorf("failed to load holiday feeds: %w", err)
		}
		holidays.Merge(feeds)
	}
	app.Logger.Debug("Holidays loaded", zap.Int("dates", len(holidays)))
	return holidays, nil
}

func initGoogleClients() error {
	logger := app.Logger

	logger.Info("Loading service account")
	account, err := config.LoadServiceAccountWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load service account: %w", err)
	}

	impersonator, err := utils.NewImpersonator(account.JSON(), utils.RequiredScopes()...)
	if err != nil {
		return err
	}

	app.Calendar = calendarclient.NewClient(impersonator)
	logger.Debug("Calendar client initialized")

	if app.Cfg.GmailSender == "" {
		logger.Warn("gmailSender not set, notifications disabled")
		return nil
	}
	httpClient, err := impersonator.Client(app.Ctx, app.Cfg.GmailSender)
	if err != nil {
		return fmt.Errorf("failed to authorise gmail sender: %w", err)
	}
	gmail, err := gmailclient.NewClient(app.Ctx, httpClient, app.Cfg.GmailSender)
	if err != nil {
		return fmt.Errorf("failed to create gmail client: %w", err)
	}
	app.Notifier = gmail
	logger.Debug("Gmail client initialized", zap.String("sender", app.Cfg.GmailSender))
	return nil
}

func initDeduper() error {
	if app.Cfg.Redis == nil {
		app.Deduper = scheduler.NewMemoryDeduper(app.Clock)
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     app.Cfg.Redis.Addr,
		Password: app.Cfg.Redis.Password,
		DB:       app.Cfg.Redis.DB,
	})
	closers = append(closers, func() { _ = client.Close() })

	deduper, err := scheduler.NewRedisDeduper(app.Ctx, client, redisKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.Deduper = deduper
	app.Logger.Debug("Redis deduper initialized", zap.String("addr", app.Cfg.Redis.Addr))
	return nil
}

func catalogFromConfig(cfg *config.Config) ([]db.ServiceOffering, []db.Owner) {
	offerings := make([]db.ServiceOffering, len(cfg.Offerings))
	for i, o := range cfg.Offerings {
		offerings[i] = db.ServiceOffering{
			ID:           services.OfferingID(o.Slug),
			Slug:         o.Slug,
			Name:         o.Name,
			StartHour:    o.StartHour,
			EndHour:      o.EndHour,
			Modality:     db.Modality(o.Modality),
			MaxOccupancy: o.MaxOccupancy,
		}
	}

	owners := make([]db.Owner, len(cfg.Owners))
	for i, o := range cfg.Owners {
		owners[i] = db.Owner{
			ID:           o.ID,
			Name:         o.Name,
			DayPatterns:  o.DayPatterns,
			FullCalendar: o.FullCalendar,
		}
	}
	return offerings, owners
}
