package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// CancelBookingCmd creates the cancelBooking command
func CancelBookingCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancelBooking <booking_id> [reason]",
		Short: "Cancel a confirmed booking and free its seat",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason := strings.Join(args[1:], " ")

			booking, err := app.Allocator.CancelBooking(app.Ctx, args[0], reason)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Booking %s cancelled\n", booking.ID)
			if reason != "" {
				fmt.Printf("Reason: %s\n", reason)
			}
			fmt.Println()
			return nil
		},
	}
}
