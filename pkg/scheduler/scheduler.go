package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/internal/clock"
	"github.com/jakechorley/session-booking/pkg/core/services"
)

// Jobs holds the collaborators the background jobs need
type Jobs struct {
	Materializer *services.Materializer
	Bookings     services.DueBookingsStore
	Notifier     services.Notifier
	Deduper      services.Deduper
	Windows      services.ReminderWindows
	Clock        clock.Clock
	Location     *time.Location
}

// Config holds the cron specs and per-run timeout
type Config struct {
	MaterializeSpec string
	ReminderSpec    string
	JobTimeout      time.Duration
}

// Scheduler runs slot materialization and reminder sending on cron schedules.
// A job that is still running when its next tick fires is skipped.
type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	cfg    Config
	logger *zap.Logger
}

// New creates a scheduler and registers both jobs. Invalid specs are rejected.
func New(jobs Jobs, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	loc := jobs.Location
	if loc == nil {
		loc = time.UTC
	}

	cl := cronLogger{logger: logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:   jobs,
		cfg:    cfg,
		logger: logger,
	}

	if _, err := s.cron.AddFunc(cfg.MaterializeSpec, s.runJob("materialize", s.RunMaterialize)); err != nil {
		return nil, fmt.Errorf("invalid materialize schedule %q: %w", cfg.MaterializeSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.ReminderSpec, s.runJob("reminders", s.RunReminders)); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", cfg.ReminderSpec, err)
	}
	return s, nil
}

// Start begins running jobs in the background
func (s *Scheduler) Start() {
	s.logger.Info("Scheduler started",
		zap.String("materialize", s.cfg.MaterializeSpec),
		zap.String("reminders", s.cfg.ReminderSpec))
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs or ctx, whichever ends first
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runJob(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			s.logger.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Debug("Scheduled job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	}
}

// RunMaterialize extends every owner's slots to the horizon
func (s *Scheduler) RunMaterialize(ctx context.Context) error {
	created, err := s.jobs.Materializer.EnsureAll(ctx)
	total := 0
	for _, n := range created {
		total += n
	}
	s.logger.Info("Materialization run complete", zap.Int("owners", len(created)), zap.Int("created", total))
	return err
}

// RunReminders sends reminders for every configured window.
// Without a notifier it does nothing.
func (s *Scheduler) RunReminders(ctx context.Context) error {
	if s.jobs.Notifier == nil {
		s.logger.Debug("No notifier configured, skipping reminders")
		return nil
	}
	now := s.jobs.Clock.Now()
	for _, label := range s.jobs.Windows.Labels() {
		_, err := services.SendReminders(ctx, s.jobs.Bookings, s.jobs.Notifier, s.jobs.Deduper,
			s.jobs.Windows, now, label, s.jobs.Location, s.logger)
		if err != nil {
			return fmt.Errorf("failed to send %s reminders: %w", label, err)
		}
	}
	return nil
}

// cronLogger adapts zap to cron's logger interface
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
