package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/internal/config"
	"github.com/voisinsolidaire/voisin/pkg/auth"
	"github.com/voisinsolidaire/voisin/pkg/clients/gmailclient"
	"github.com/voisinsolidaire/voisin/pkg/clients/sheetsclient"
	"github.com/voisinsolidaire/voisin/pkg/clients/supabaseclient"
	"github.com/voisinsolidaire/voisin/pkg/db"
	"github.com/voisinsolidaire/voisin/pkg/postgres"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg     *config.Config
	Env     string
	Backend db.Backend
	// Claims of the stored session; nil when signed out or on the postgres backend
	Claims *auth.Claims
	// UserID is the acting user: the session subject, or --user on postgres
	UserID string
	Logger *zap.Logger
	Ctx    context.Context

	supabase *supabaseclient.Client
	postgres *postgres.DB
	sheets   *sheetsclient.Client
	gmail    *gmailclient.Client
}

// Connect opens the configured backend. On supabase the stored session (if
// any) scopes every request; on postgres userFlag names the acting user.
func (app *AppContext) Connect(userFlag string) error {
	switch app.Cfg.Backend {
	case config.BackendSupabase:
		app.Logger.Info("Connecting to Supabase", zap.String("url", app.Cfg.SupabaseURL))
		app.supabase = supabaseclient.NewClient(app.Cfg.SupabaseURL, app.Cfg.SupabaseAnonKey, app.Cfg.PollInterval, app.Logger)
		app.Backend = app.supabase
		return app.loadSession()

	case config.BackendPostgres:
		app.Logger.Info("Connecting to database")
		pg, err := postgres.NewDB(app.Ctx, app.Cfg.DatabaseURL, app.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		app.postgres = pg
		app.Backend = pg
		app.UserID = userFlag
		return nil
	}
	return fmt.Errorf("unsupported backend %q", app.Cfg.Backend)
}

func (app *AppContext) loadSession() error {
	path, err := auth.SessionPath(app.Env)
	if err != nil {
		return err
	}

	session, err := auth.Current(app.Ctx, app.supabase, path, app.Logger)
	if errors.Is(err, auth.ErrNoSession) {
		app.Logger.Debug("No stored session, continuing anonymously")
		return nil
	}
	if err != nil {
		return err
	}

	claims, err := auth.ParseClaims(session.AccessToken, app.Cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("failed to read session token: %w", err)
	}

	app.Claims = claims
	app.UserID = claims.UserID()
	app.Backend = app.supabase.WithAccessToken(session.AccessToken)
	app.Logger.Debug("Session loaded", zap.String("user_id", app.UserID), zap.String("role", claims.AppRole()))
	return nil
}

// Close releases the backend
func (app *AppContext) Close() {
	if app.Backend != nil {
		app.Backend.Close()
	}
}

// RequireUser returns the acting user id
func (app *AppContext) RequireUser() (string, error) {
	if app.UserID == "" {
		if app.postgres != nil {
			return "", fmt.Errorf("--user is required with the postgres backend: %w", db.ErrUnauthorized)
		}
		return "", fmt.Errorf("%w: %w", db.ErrUnauthorized, auth.ErrNoSession)
	}
	return app.UserID, nil
}

// RequireAssociation returns the acting user id when it is an association account.
// The postgres backend has no role claim, so --user is trusted.
func (app *AppContext) RequireAssociation() (string, error) {
	userID, err := app.RequireUser()
	if err != nil {
		return "", err
	}
	if app.Claims != nil && !app.Claims.IsAssociation() {
		return "", fmt.Errorf("this command is reserved to association accounts: %w", db.ErrUnauthorized)
	}
	return userID, nil
}

// Authenticator returns the backend auth service
func (app *AppContext) Authenticator() (auth.Authenticator, error) {
	if app.supabase == nil {
		return nil, fmt.Errorf("the %s backend has no auth service, use --user instead", app.Cfg.Backend)
	}
	return app.supabase, nil
}

// Postgres returns the self-hosted database
func (app *AppContext) Postgres() (*postgres.DB, error) {
	if app.postgres == nil {
		return nil, fmt.Errorf("this command needs the postgres backend, got %s", app.Cfg.Backend)
	}
	return app.postgres, nil
}

// BackendFor scopes the backend to an API caller's token
func (app *AppContext) BackendFor(accessToken string) db.Backend {
	if app.supabase == nil {
		return app.postgres
	}
	if accessToken == "" {
		return app.supabase
	}
	return app.supabase.WithAccessToken(accessToken)
}

// GoogleClients returns the Sheets and Gmail clients, running the OAuth flow
// on first use. The Gmail client reuses the Sheets token.
func (app *AppContext) GoogleClients() (*sheetsclient.Client, *gmailclient.Client, error) {
	if app.sheets != nil {
		return app.sheets, app.gmail, nil
	}

	app.Logger.Info("Loading OAuth client configuration")
	oauthCfg, err := config.LoadOAuthClientWithEnv(app.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	app.Logger.Info("Initializing sheets client")
	sheets, err := sheetsclient.NewClient(app.Ctx, oauthCfg, app.Env, app.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	app.Logger.Info("Initializing gmail client")
	gmail, err := gmailclient.NewClient(app.Ctx, oauthCfg, sheets.Token(), app.Cfg.GmailSender)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gmail client: %w", err)
	}

	app.sheets, app.gmail = sheets, gmail
	return sheets, gmail, nil
}
