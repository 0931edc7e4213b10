package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/core/services"
)

// RegisterCmd creates the register command
func RegisterCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "register <mission_id>",
		Short: "Register for a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := app.RequireUser()
			if err != nil {
				return err
			}

			app.Logger.Debug("register command", zap.String("mission_id", args[0]))

			mission, reg, err := services.RegisterVolunteer(app.Ctx, app.Backend, app.Logger, args[0], userID)
			if err != nil {
				printFailure("Inscription impossible", err)
				return err
			}

			fmt.Printf("\n✓ Inscription enregistrée !\n\n")
			fmt.Printf("Mission: %s\n", missionLine(mission))
			fmt.Printf("Statut:  %s%s%s\n\n", statusColor(reg.Status), reg.Status, colorReset)
			return nil
		},
	}
}

// CancelCmd creates the cancel command
func CancelCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <mission_id>",
		Short: "Cancel your registration to a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := app.RequireUser()
			if err != nil {
				return err
			}
			reason, _ := cmd.Flags().GetString("reason")

			mission, _, err := services.CancelRegistration(app.Ctx, app.Backend, app.Logger, args[0], userID, reason)
			if err != nil {
				printFailure("Annulation impossible", err)
				return err
			}

			fmt.Printf("\n✓ Inscription annulée pour %s\n", mission.Title)
			fmt.Printf("Places: %s\n\n", spotsLabel(mission))
			return nil
		},
	}

	cmd.Flags().String("reason", "", "Optional cancellation reason shared with the association")

	return cmd
}

// FeedbackCmd creates the feedback command
func FeedbackCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback <mission_id> <rating>",
		Short: "Rate a completed mission from 1 to 5",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := app.RequireUser()
			if err != nil {
				return err
			}

			var rating int
			if _, err := fmt.Sscanf(args[1], "%d", &rating); err != nil {
				return fmt.Errorf("rating must be a number: %w", err)
			}
			comment, _ := cmd.Flags().GetString("comment")

			_, err = services.LeaveFeedback(app.Ctx, app.Backend, app.Logger, args[0], userID,
				services.Feedback{Comment: comment, Rating: rating})
			if err != nil {
				printFailure("Avis non enregistré", err)
				return err
			}

			fmt.Printf("\n✓ Merci pour votre avis !\n\n")
			return nil
		},
	}

	cmd.Flags().String("comment", "", "Free-text comment")

	return cmd
}

// RegistrationsCmd creates the registrations command
func RegistrationsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registrations [mission_id]",
		Short: "List your registrations, or a mission's registrations for its association",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return listMissionRegistrations(app, args[0])
			}

			userID, err := app.RequireUser()
			if err != nil {
				return err
			}

			views, err := services.ListUserRegistrations(app.Ctx, app.Backend, app.Logger, userID)
			if err != nil {
				return err
			}

			fmt.Printf("\n%d inscriptions\n\n", len(views))
			for _, v := range views {
				title := v.Registration.MissionID
				if v.Mission != nil {
					title = missionLine(v.Mission)
				}
				fmt.Printf("  %s%-10s%s %s %s\n", statusColor(v.Registration.Status), v.Registration.Status, colorReset,
					title, actionsLabel(v.Actions))
			}
			fmt.Println()
			return nil
		},
	}

	return cmd
}

func listMissionRegistrations(app *AppContext, missionID string) error {
	if _, err := app.RequireAssociation(); err != nil {
		return err
	}

	regs, err := app.Backend.ListMissionRegistrations(app.Ctx, missionID)
	if err != nil {
		return err
	}

	fmt.Printf("\n%d inscriptions\n\n", len(regs))
	for _, reg := range regs {
		fmt.Printf("  %s%-10s%s %s  %s\n", statusColor(reg.Status), reg.Status, colorReset,
			reg.UserID, reg.RegistrationDate.Local().Format("02/01/2006 15:04"))
	}
	fmt.Println()
	return nil
}
