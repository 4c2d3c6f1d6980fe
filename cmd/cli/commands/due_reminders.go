package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/pkg/core/services"
	"github.com/jakechorley/session-booking/pkg/db"
)

// DueRemindersCmd creates the dueReminders command
func DueRemindersCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dueReminders <window>",
		Short: "List bookings due a reminder in a window (e.g. 24h, 2h), optionally sending them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label := args[0]
			atFlag, _ := cmd.Flags().GetString("at")
			send, _ := cmd.Flags().GetBool("send")

			reference := app.Clock.Now()
			if atFlag != "" {
				t, err := time.Parse(time.RFC3339, atFlag)
				if err != nil {
					return fmt.Errorf("at must be RFC3339: %w", err)
				}
				reference = t
			}

			app.Logger.Debug("dueReminders command",
				zap.String("window", label),
				zap.Time("reference", reference),
				zap.Bool("send", send))

			windows := reminderWindows(app)
			loc := app.Cfg.Location()

			if !send {
				due, err := services.DueBookings(app.Ctx, app.Database, windows, reference, label)
				if err != nil {
					return err
				}
				fmt.Printf("\nBookings due a %s reminder at %s\n\n", label, reference.In(loc).Format(time.RFC3339))
				printDetails(due, loc)
				return nil
			}

			if app.Notifier == nil {
				return fmt.Errorf("--send needs a notifier; run without --offline")
			}

			report, err := services.SendReminders(app.Ctx, app.Database, app.Notifier, app.Deduper,
				windows, reference, label, loc, app.Logger)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ %s reminders sent: %d\n\n", label, len(report.Sent))
			printDetails(report.Sent, loc)

			if len(report.Skipped) > 0 {
				fmt.Printf("Already reminded: %d\n\n", len(report.Skipped))
			}
			if len(report.Failed) > 0 {
				fmt.Printf("⚠️  Failed to send %d reminders:\n", len(report.Failed))
				for _, f := range report.Failed {
					fmt.Printf("  ✗ %s (%s): %s\n", f.BookingID, f.Email, f.Error)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().String("at", "", "Reference instant (RFC3339, default now)")
	cmd.Flags().Bool("send", false, "Send the reminders instead of only listing them")

	return cmd
}

func reminderWindows(app *AppContext) services.ReminderWindows {
	windows := make(services.ReminderWindows, len(app.Cfg.ReminderWindows))
	for label, w := range app.Cfg.ReminderWindows {
		windows[label] = services.ReminderWindow{From: w.From, To: w.To}
	}
	return windows
}

func printDetails(details []db.BookingDetail, loc *time.Location) {
	if len(details) == 0 {
		fmt.Println("  (none)")
		fmt.Println()
		return
	}
	for _, d := range details {
		fmt.Printf("  %s  %s  %-20s %s <%s>  host %s\n",
			d.Booking.ID,
			d.Slot.StartsAt.In(loc).Format("Mon 02 Jan 15:04"),
			d.Offering.Name,
			d.Booking.VolunteerName,
			d.Booking.VolunteerEmail,
			d.Booking.HostEmail)
	}
	fmt.Println()
}
