package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/pkg/core/services"
	"github.com/jakechorley/session-booking/pkg/db"
)

// ListSlotsCmd creates the listSlots command
func ListSlotsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listSlots <owner_id>",
		Short: "List bookable slots for an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID := args[0]
			fromFlag, _ := cmd.Flags().GetString("from")
			days, _ := cmd.Flags().GetInt("days")

			loc := app.Cfg.Location()
			from := app.Materializer.Today()
			if fromFlag != "" {
				parsed, err := time.ParseInLocation(db.DateLayout, fromFlag, loc)
				if err != nil {
					return fmt.Errorf("from must be YYYY-MM-DD: %w", err)
				}
				from = parsed
			}
			to := from.AddDate(0, 0, days)

			app.Logger.Debug("listSlots command",
				zap.String("owner_id", ownerID),
				zap.Time("from", from),
				zap.Time("to", to))

			slots, err := services.ListAvailableSlots(app.Ctx, app.Database, app.Materializer, ownerID, from, to, app.Logger)
			if err != nil {
				return err
			}
			// Let the background run finish before the process exits
			app.Materializer.Wait()

			offerings, err := app.Database.GetOfferings(app.Ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch offerings: %w", err)
			}
			names := make(map[string]string, len(offerings))
			for _, o := range offerings {
				names[o.ID] = o.Name
			}

			fmt.Printf("\nAvailable slots for %s (%s to %s)\n\n", ownerID, from.Format(db.DateLayout), to.Format(db.DateLayout))
			if len(slots) == 0 {
				fmt.Println("No available slots. Run ensureSlots or widen the range.")
				fmt.Println()
				return nil
			}

			for _, s := range slots {
				fmt.Printf("  %s  %s  %s-%s  %-20s %s  %d/%d\n",
					s.ID,
					s.StartsAt.In(loc).Format("Mon 02 Jan"),
					s.StartTime, s.EndTime,
					names[s.OfferingID],
					seatsBar(s.CurrentOccupancy, s.MaxOccupancy),
					s.CurrentOccupancy, s.MaxOccupancy)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().String("from", "", "First date to list (YYYY-MM-DD, default today)")
	cmd.Flags().Int("days", 30, "Number of days to list")

	return cmd
}

// seatsBar renders taken seats as filled blocks, e.g. "■■□□"
func seatsBar(taken, capacity int) string {
	if capacity <= 0 {
		return ""
	}
	if taken > capacity {
		taken = capacity
	}
	if taken < 0 {
		taken = 0
	}
	return strings.Repeat("■", taken) + strings.Repeat("□", capacity-taken)
}
