package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/cmd/cli/commands"
	"github.com/voisinsolidaire/voisin/internal/config"
	"github.com/voisinsolidaire/voisin/pkg/utils/logging"
)

var (
	env     string
	user    string
	verbose bool
	app     *commands.AppContext
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "voisin",
		Short: "Voisin Solidaire CLI - Find and manage micro-volunteering missions",
		Long: `A CLI for volunteers and associations: explore missions, register,
confirm volunteers, follow notifications and serve the JSON API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app == nil {
				return
			}
			app.Close()
			if app.Logger != nil {
				_ = app.Logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")
	rootCmd.PersistentFlags().StringVarP(&user, "user", "u", "", "Acting user id (postgres backend only)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print debug logs to the console")

	app = &commands.AppContext{Ctx: ctx}

	rootCmd.AddCommand(commands.LoginCmd(app))
	rootCmd.AddCommand(commands.SearchMissionsCmd(app))
	rootCmd.AddCommand(commands.NearbyMissionsCmd(app))
	rootCmd.AddCommand(commands.RegisterCmd(app))
	rootCmd.AddCommand(commands.CancelCmd(app))
	rootCmd.AddCommand(commands.ConfirmCmd(app))
	rootCmd.AddCommand(commands.CompleteCmd(app))
	rootCmd.AddCommand(commands.FeedbackCmd(app))
	rootCmd.AddCommand(commands.RegistrationsCmd(app))
	rootCmd.AddCommand(commands.NotificationsCmd(app))
	rootCmd.AddCommand(commands.MarkReadCmd(app))
	rootCmd.AddCommand(commands.WatchNotificationsCmd(app))
	rootCmd.AddCommand(commands.PlanSeriesCmd(app))
	rootCmd.AddCommand(commands.PublishMissionCmd(app))
	rootCmd.AddCommand(commands.ExportRosterCmd(app))
	rootCmd.AddCommand(commands.MigrateCmd(app))
	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config and backend
func initApp() error {
	// The interactive session re-enters commands without PersistentPreRunE
	if app.Backend != nil {
		return nil
	}

	logger, err := logging.InitLogger(env, verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Env = env

	app.Logger.Info("Starting application", zap.String("environment", env))

	app.Logger.Info("Loading configuration")
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully", zap.String("backend", app.Cfg.Backend))

	if err := app.Connect(user); err != nil {
		return err
	}
	app.Logger.Info("Backend initialized successfully")

	return nil
}
