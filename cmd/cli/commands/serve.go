package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/api"
)

// MigrateCmd creates the migrate command
func MigrateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations to the postgres backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, err := app.Postgres()
			if err != nil {
				return err
			}
			if err := pg.RunMigrations(app.Ctx); err != nil {
				return err
			}
			fmt.Printf("\n✓ Database schema is up to date\n\n")
			return nil
		},
	}
}

// ServeCmd creates the serve command
func ServeCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				app.Cfg.Server.Addr = addr
			}
			withGoogle, _ := cmd.Flags().GetBool("google")

			opts := []api.Option{}
			if withGoogle {
				sheets, gmail, err := app.GoogleClients()
				if err != nil {
					return err
				}
				opts = append(opts, api.WithMailer(gmail), api.WithRosterPublisher(sheets))
			}

			app.Logger.Info("Starting API server",
				zap.String("addr", app.Cfg.Server.Addr),
				zap.Bool("google", withGoogle))

			server := api.NewServer(app.Cfg, app.BackendFor, app.Logger, opts...)
			if err := server.Run(app.Ctx); err != nil {
				return fmt.Errorf("api server stopped: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().String("addr", "", "Listen address, overrides server.addr")
	cmd.Flags().Bool("google", false, "Enable roster export and confirmation emails")

	return cmd
}
