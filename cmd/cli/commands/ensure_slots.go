package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// EnsureSlotsCmd creates the ensureSlots command
func EnsureSlotsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ensureSlots [owner_id]",
		Short: "Generate slots up to the horizon for one owner, or all owners",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var created map[string]int
			var runErr error

			if len(args) == 1 {
				n, err := app.Materializer.EnsureOwner(app.Ctx, args[0])
				if err != nil {
					return err
				}
				created = map[string]int{args[0]: n}
			} else {
				// Owners that succeeded are still reported when others fail
				created, runErr = app.Materializer.EnsureAll(app.Ctx)
			}

			ids := make([]string, 0, len(created))
			for id := range created {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			fmt.Printf("\n✓ Slots ensured up to %s\n\n", app.Materializer.HorizonEnd().Format("2006-01-02"))
			for _, id := range ids {
				fmt.Printf("  %-24s %d new slots\n", id, created[id])
			}
			fmt.Println()

			return runErr
		},
	}
}
