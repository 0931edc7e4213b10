package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voisinsolidaire/voisin/pkg/core/services"
)

// ExportRosterCmd creates the exportRoster command
func ExportRosterCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "exportRoster <mission_id>",
		Short: "Write the volunteers of a mission to the roster spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.RequireAssociation(); err != nil {
				return err
			}

			sheets, _, err := app.GoogleClients()
			if err != nil {
				return err
			}

			roster, err := services.ExportRoster(app.Ctx, app.Backend, app.Backend, sheets, app.Cfg, app.Logger, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Roster published for %s (%s %s)\n\n", roster.MissionTitle, roster.Date, roster.StartTime)
			for _, row := range roster.Rows {
				fmt.Printf("  %-30s %-30s %s\n", row.Name, row.Email, row.Status)
			}
			fmt.Println()
			return nil
		},
	}
}
