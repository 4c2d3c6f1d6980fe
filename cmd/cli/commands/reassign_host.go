package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/session-booking/pkg/core/allocator"
)

// ReassignHostCmd creates the reassignHost command
func ReassignHostCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reassignHost <booking_id> <host_email>",
		Short: "Move a booking, and its calendar event, to another host",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			booking, err := app.Allocator.ReassignHost(app.Ctx, args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Booking %s is now hosted by %s\n\n", booking.ID, booking.HostEmail)

			loads, err := app.Allocator.HostLoads(app.Ctx)
			if err != nil {
				return err
			}
			fmt.Println("Host load:")
			for _, line := range formatHostLoads(loads, booking.HostEmail) {
				fmt.Println(line)
			}
			fmt.Println()
			return nil
		},
	}
}

// formatHostLoads renders one line per host, marking the current host
func formatHostLoads(loads []allocator.HostLoad, current string) []string {
	lines := make([]string, 0, len(loads))
	for _, l := range loads {
		marker := " "
		if l.Host == current {
			marker = "*"
		}
		lines = append(lines, fmt.Sprintf("  %s %-30s %d", marker, l.Host, l.Count))
	}
	return lines
}
