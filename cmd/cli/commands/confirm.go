package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/core/services"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

// ConfirmCmd creates the confirm command
func ConfirmCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm <mission_id> <user_id>...",
		Short: "Confirm pending volunteers of a mission",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.RequireAssociation(); err != nil {
				return err
			}
			noEmail, _ := cmd.Flags().GetBool("no-email")

			app.Logger.Debug("confirm command",
				zap.String("mission_id", args[0]),
				zap.Int("volunteers", len(args)-1),
				zap.Bool("no_email", noEmail))

			var mailer services.EmailSender
			if !noEmail {
				_, gmail, err := app.GoogleClients()
				if err != nil {
					return err
				}
				mailer = gmail
			}

			result, err := services.ConfirmVolunteers(app.Ctx, app.Backend, app.Backend, mailer, app.Logger, args[0], args[1:])
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ %d volunteers confirmed\n\n", len(result.Confirmed))
			for _, reg := range result.Confirmed {
				fmt.Printf("  ✓ %s\n", reg.UserID)
			}
			if len(result.Failed) > 0 {
				fmt.Printf("\n⚠️  %d could not be confirmed:\n", len(result.Failed))
				for _, f := range result.Failed {
					fmt.Printf("  ✗ %s: %s\n", f.UserID, services.UserMessage(f.Error))
				}
			}
			if result.Emails != nil {
				fmt.Printf("\nEmails sent: %d\n", len(result.Emails.Sent))
				for _, fe := range result.Emails.Failed {
					fmt.Printf("  ✗ %s (%s): %s\n", fe.UserID, fe.Email, fe.Error)
				}
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().Bool("no-email", false, "Confirm only, don't send confirmation emails")

	return cmd
}

// CompleteCmd creates the complete command
func CompleteCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <mission_id>",
		Short: "Mark a mission as done and credit confirmed volunteers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.RequireAssociation(); err != nil {
				return err
			}

			mission, regs, err := services.CompleteMission(app.Ctx, app.Backend, app.Logger, args[0])
			if err != nil {
				printFailure("Clôture impossible", err)
				return err
			}

			fmt.Printf("\n✓ Mission %q completed\n", mission.Title)
			fmt.Printf("Volunteers credited: %d\n\n", len(regs))
			return nil
		},
	}
}

// PublishMissionCmd creates the publishMission command
func PublishMissionCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publishMission <mission_id>",
		Short: "Publish a draft mission, or cancel it with --cancel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.RequireAssociation(); err != nil {
				return err
			}
			cancel, _ := cmd.Flags().GetBool("cancel")

			var err error
			if cancel {
				_, err = services.SetMissionStatus(app.Ctx, app.Backend, app.Logger, args[0], db.MissionCancelled)
			} else {
				_, err = services.PublishMission(app.Ctx, app.Backend, app.Logger, args[0])
			}
			if err != nil {
				printFailure("Mise à jour impossible", err)
				return err
			}

			if cancel {
				fmt.Printf("\n✓ Mission %s cancelled\n\n", args[0])
			} else {
				fmt.Printf("\n✓ Mission %s published\n\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().Bool("cancel", false, "Cancel the mission instead of publishing it")

	return cmd
}
