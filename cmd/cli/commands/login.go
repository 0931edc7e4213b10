package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voisinsolidaire/voisin/pkg/auth"
)

// LoginCmd creates the login command
func LoginCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in and store the session for this environment",
		Long: `Sign in with email and password. The password is read from the
VOISIN_PASSWORD environment variable, or from stdin when it is unset.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			authn, err := app.Authenticator()
			if err != nil {
				return err
			}

			password := os.Getenv("VOISIN_PASSWORD")
			if password == "" {
				fmt.Print("Mot de passe : ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimSpace(line)
			}

			path, err := auth.SessionPath(app.Env)
			if err != nil {
				return err
			}

			session, err := auth.Login(app.Ctx, authn, path, args[0], password, app.Logger)
			if err != nil {
				printFailure("Connexion impossible", err)
				return err
			}

			claims, err := auth.ParseClaims(session.AccessToken, app.Cfg.JWTSecret)
			if err != nil {
				return fmt.Errorf("failed to read session token: %w", err)
			}

			fmt.Printf("\n✓ Connecté(e) en tant que %s (%s)\n", session.User.Email, claims.AppRole())
			fmt.Printf("Session enregistrée dans %s\n\n", path)
			return nil
		},
	}

	return cmd
}
