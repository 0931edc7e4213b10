package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/core/notifications"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

func loadInbox(app *AppContext) (*notifications.Inbox, error) {
	userID, err := app.RequireUser()
	if err != nil {
		return nil, err
	}

	inbox := notifications.NewInbox(app.Backend, app.Logger, userID)
	if err := inbox.Load(app.Ctx); err != nil {
		return nil, err
	}
	return inbox, nil
}

func printInbox(inbox *notifications.Inbox) {
	fmt.Printf("\nNotifications (%d non lues)\n\n", inbox.UnreadCount())
	for _, n := range inbox.Items() {
		fmt.Printf("  %s\n", notificationLine(&n))
	}
	fmt.Println()
}

// NotificationsCmd creates the notifications command
func NotificationsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notifications",
		Short: "List your notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inbox, err := loadInbox(app)
			if err != nil {
				return err
			}
			printInbox(inbox)
			return nil
		},
	}
}

// MarkReadCmd creates the markRead command
func MarkReadCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markRead [notification_id]",
		Short: "Mark one notification, or all of them with --all, as read",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if all == (len(args) == 1) {
				return fmt.Errorf("pass either a notification id or --all")
			}

			inbox, err := loadInbox(app)
			if err != nil {
				return err
			}

			if all {
				err = inbox.MarkAllRead(app.Ctx)
			} else {
				err = inbox.MarkRead(app.Ctx, args[0])
			}
			if err != nil {
				printFailure("Mise à jour impossible", err)
				return err
			}

			printInbox(inbox)
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "Mark every notification as read")

	return cmd
}

// WatchNotificationsCmd creates the watchNotifications command
func WatchNotificationsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watchNotifications",
		Short: "Print notifications as they arrive until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inbox, err := loadInbox(app)
			if err != nil {
				return err
			}

			fmt.Printf("\nWatching notifications (%d non lues), Ctrl-C to stop\n\n", inbox.UnreadCount())
			app.Logger.Debug("Watching notifications", zap.String("user_id", app.UserID))

			return inbox.Watch(app.Ctx, app.Backend, func(n db.Notification) {
				fmt.Printf("  %s  %s(%d non lues)%s\n", notificationLine(&n), colorDim, inbox.UnreadCount(), colorReset)
			})
		},
	}
}
