package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/pkg/api"
	"github.com/jakechorley/session-booking/pkg/scheduler"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd creates the serve command
func ServeCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			noScheduler, _ := cmd.Flags().GetBool("no-scheduler")

			ctx, stop := signal.NotifyContext(app.Ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			windows := reminderWindows(app)
			loc := app.Cfg.Location()

			var sched *scheduler.Scheduler
			if !noScheduler {
				if app.Notifier == nil {
					app.Logger.Warn("No notifier configured, reminders will not be sent")
				}
				var err error
				sched, err = scheduler.New(scheduler.Jobs{
					Materializer: app.Materializer,
					Bookings:     app.Database,
					Notifier:     app.Notifier,
					Deduper:      app.Deduper,
					Windows:      windows,
					Clock:        app.Clock,
					Location:     loc,
				}, scheduler.Config{
					MaterializeSpec: app.Cfg.Scheduler.MaterializeSpec,
					ReminderSpec:    app.Cfg.Scheduler.ReminderSpec,
				}, app.Logger)
				if err != nil {
					return err
				}
				sched.Start()
			}

			handler := api.NewHandler(app.Database, app.Materializer, app.Allocator, windows, loc, app.Clock, app.Logger)
			server := &http.Server{
				Addr:              app.Cfg.HTTPAddr,
				Handler:           api.Routes(handler),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				app.Logger.Info("HTTP server listening", zap.String("addr", server.Addr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				if err != nil {
					return fmt.Errorf("http server failed: %w", err)
				}
			case <-ctx.Done():
				app.Logger.Info("Shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				app.Logger.Error("HTTP shutdown failed", zap.Error(err))
			}
			if sched != nil {
				if err := sched.Stop(shutdownCtx); err != nil {
					app.Logger.Error("Scheduler did not stop cleanly", zap.Error(err))
				}
			}
			app.Materializer.Wait()
			return nil
		},
	}

	cmd.Flags().Bool("no-scheduler", false, "Serve the API without running background jobs")

	return cmd
}
