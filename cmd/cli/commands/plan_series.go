package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/core/services"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

// PlanSeriesCmd creates the planSeries command
func PlanSeriesCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "planSeries <template> <count>",
		Short: "Draft the next occurrences of a recurring mission template",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			associationID, err := app.RequireAssociation()
			if err != nil {
				return err
			}

			var count int
			if _, err := fmt.Sscanf(args[1], "%d", &count); err != nil || count < 1 {
				return fmt.Errorf("count must be a positive integer, got: %s", args[1])
			}

			tpl, err := app.Cfg.Template(args[0])
			if err != nil {
				return err
			}

			fromFlag, _ := cmd.Flags().GetString("from")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			from := time.Now().In(app.Cfg.Location())
			if fromFlag != "" {
				from, err = time.ParseInLocation(db.DateLayout, fromFlag, app.Cfg.Location())
				if err != nil {
					return fmt.Errorf("--from must be YYYY-MM-DD: %w", err)
				}
			}

			app.Logger.Debug("planSeries command",
				zap.String("template", tpl.Name),
				zap.Int("count", count),
				zap.Bool("dry_run", dryRun))

			result, err := services.PlanSeries(app.Ctx, app.Backend, app.Logger, *tpl, associationID, from, count, dryRun)
			if err != nil {
				return err
			}

			if result.DryRun {
				fmt.Printf("\nDRY RUN - %d drafts for %s (nothing saved)\n\n", len(result.Missions), result.Template)
			} else {
				fmt.Printf("\n✓ %d drafts created for %s\n\n", len(result.Missions), result.Template)
			}
			for i := range result.Missions {
				m := &result.Missions[i]
				date, _ := time.Parse(db.DateLayout, m.Date)
				fmt.Printf("  %2d. %s %s  %s%s%s\n", i+1, date.Format("2006-01-02 (Monday)"), m.StartTime, colorDim, m.ID, colorReset)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().String("from", "", "First day to consider (YYYY-MM-DD), defaults to today")
	cmd.Flags().Bool("dry-run", false, "Print the drafts without saving them")

	return cmd
}
