package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/pkg/core/model"
)

// BookCmd creates the book command
func BookCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "book <slot_id> <name> <email> [phone]",
		Short: "Book a volunteer into a slot",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			volunteer := model.VolunteerInfo{Name: args[1], Email: args[2]}
			if len(args) == 4 {
				volunteer.Phone = args[3]
			}

			app.Logger.Debug("book command", zap.String("slot_id", args[0]), zap.String("email", volunteer.Email))

			result, err := app.Allocator.AllocateBooking(app.Ctx, args[0], volunteer)
			if err != nil {
				return err
			}

			if !result.Confirmed() {
				fmt.Printf("\n✗ Booking rejected: %s\n\n", rejectionMessage(result.Rejection))
				return nil
			}

			b := result.Booking
			fmt.Printf("\n✓ Booking confirmed!\n\n")
			fmt.Printf("Booking ID: %s\n", b.ID)
			fmt.Printf("Volunteer:  %s (%s)\n", b.VolunteerName, b.VolunteerEmail)
			fmt.Printf("Host:       %s\n", b.HostEmail)
			if b.VideoLink != "" {
				fmt.Printf("Video link: %s\n", b.VideoLink)
			}
			if result.CalendarDegraded {
				fmt.Printf("\n⚠️  No calendar event was created. The host should be told manually.\n")
			}
			fmt.Println()
			return nil
		},
	}
}

func rejectionMessage(r model.Rejection) string {
	switch r {
	case model.RejectionSlotFull:
		return "the slot is full"
	case model.RejectionDuplicate:
		return "the volunteer already has a booking within the duplicate window"
	case model.RejectionInactive:
		return "the slot is no longer offered"
	default:
		return string(r)
	}
}
