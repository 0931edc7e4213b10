package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/sheets/v4"

	"github.com/voisinsolidaire/voisin/internal/config"
)

const (
	// GoogleCallbackPort is where the consent screen redirects to
	GoogleCallbackPort  = 3000
	googleCallbackPath  = "/oauth/callback"
	googleConsentWindow = 5 * time.Minute
)

// GoogleScopes covers the roster spreadsheet and confirmation emails, granted
// in a single consent so one token serves both clients
var GoogleScopes = []string{sheets.SpreadsheetsScope, gmail.GmailSendScope}

// GoogleOAuthConfig builds the OAuth config for the installed client,
// redirecting to the local callback
func GoogleOAuthConfig(client *config.OAuthClientConfig) (*oauth2.Config, error) {
	raw, err := json.Marshal(client)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal oauth client: %w", err)
	}

	cfg, err := google.ConfigFromJSON(raw, GoogleScopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to create google config: %w", err)
	}
	cfg.RedirectURL = fmt.Sprintf("http://localhost:%d%s", GoogleCallbackPort, googleCallbackPath)
	return cfg, nil
}

// GoogleTokenPath returns ~/.voisin/google-<env>.json, next to the session file
func GoogleTokenPath(env string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, sessionDirName, "google-"+env+".json"), nil
}

// GoogleGrant is a stored token with the scopes it was granted
type GoogleGrant struct {
	Token  *oauth2.Token `json:"token"`
	Scopes []string      `json:"scopes"`
}

// Missing returns the scopes the grant lacks
func (g *GoogleGrant) Missing(required []string) []string {
	var missing []string
	for _, scope := range required {
		if !slices.Contains(g.Scopes, scope) {
			missing = append(missing, scope)
		}
	}
	return missing
}

// SaveGoogleGrant writes the grant to path, readable by the owner only
func SaveGoogleGrant(path string, g *GoogleGrant) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal google token: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write google token: %w", err)
	}
	return nil
}

// LoadGoogleGrant reads a grant written by SaveGoogleGrant. A missing file
// yields ErrNoSession.
func LoadGoogleGrant(path string) (*GoogleGrant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read google token: %w", err)
	}

	var g GoogleGrant
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse google token: %w", err)
	}
	if g.Token == nil {
		return nil, fmt.Errorf("google token file %s holds no token", path)
	}
	return &g, nil
}

// GoogleToken returns a token carrying GoogleScopes. The stored grant is used
// and refreshed when it can be; otherwise the consent flow runs in the browser
// and its result is stored at path.
func GoogleToken(ctx context.Context, oauthConfig *oauth2.Config, path string, logger *zap.Logger) (*oauth2.Token, error) {
	grant, err := LoadGoogleGrant(path)
	switch {
	case errors.Is(err, ErrNoSession):
		logger.Debug("No stored Google token", zap.String("path", path))
	case err != nil:
		logger.Warn("Ignoring unreadable Google token", zap.Error(err))
	default:
		if token, ok := reuseGrant(ctx, oauthConfig, grant, path, logger); ok {
			return token, nil
		}
	}

	token, err := runConsent(ctx, oauthConfig, logger)
	if err != nil {
		return nil, err
	}

	granted := &GoogleGrant{Token: token, Scopes: grantedScopes(token, oauthConfig.Scopes)}
	if missing := granted.Missing(GoogleScopes); len(missing) > 0 {
		return nil, fmt.Errorf("consent did not grant %s, allow every permission and try again", strings.Join(missing, ", "))
	}

	if err := SaveGoogleGrant(path, granted); err != nil {
		logger.Warn("Failed to store Google token", zap.Error(err))
	}
	return token, nil
}

func reuseGrant(ctx context.Context, oauthConfig *oauth2.Config, grant *GoogleGrant, path string, logger *zap.Logger) (*oauth2.Token, bool) {
	if missing := grant.Missing(GoogleScopes); len(missing) > 0 {
		logger.Info("Stored Google token lacks scopes, asking again", zap.Strings("missing", missing))
		return nil, false
	}

	token, err := oauthConfig.TokenSource(ctx, grant.Token).Token()
	if err != nil {
		logger.Warn("Failed to refresh Google token", zap.Error(err))
		return nil, false
	}

	if token.AccessToken != grant.Token.AccessToken {
		logger.Debug("Google token refreshed")
		grant.Token = token
		if err := SaveGoogleGrant(path, grant); err != nil {
			logger.Warn("Failed to store refreshed Google token", zap.Error(err))
		}
	}
	return token, true
}

// grantedScopes reads the scope list Google returns with a fresh token,
// falling back to what was requested
func grantedScopes(token *oauth2.Token, requested []string) []string {
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		return strings.Fields(scope)
	}
	return requested
}

func runConsent(ctx context.Context, oauthConfig *oauth2.Config, logger *zap.Logger) (*oauth2.Token, error) {
	state := uuid.NewString()
	authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Printf("\nOuvrez ce lien pour autoriser l'accès à Google :\n%s\n\n", authURL)

	code, err := awaitGoogleCallback(ctx, state, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to get authorization code: %w", err)
	}

	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}
	return token, nil
}

type callbackResult struct {
	code string
	err  error
}

// reporter delivers the first outcome and drops the rest
func reporter(results chan<- callbackResult) func(callbackResult) {
	return func(res callbackResult) {
		select {
		case results <- res:
		default:
		}
	}
}

// googleCallback answers the consent redirect and reports its outcome
func googleCallback(state string, results chan<- callbackResult) http.Handler {
	report := reporter(results)

	r := chi.NewRouter()
	r.Get(googleCallbackPath, func(w http.ResponseWriter, req *http.Request) {
		query := req.URL.Query()
		switch {
		case query.Get("state") != state:
			report(callbackResult{err: errors.New("oauth state mismatch")})
			http.Error(w, "Autorisation refusée", http.StatusBadRequest)
			return
		case query.Get("error") != "":
			report(callbackResult{err: fmt.Errorf("consent denied: %s", query.Get("error"))})
			http.Error(w, "Autorisation refusée", http.StatusBadRequest)
			return
		case query.Get("code") == "":
			report(callbackResult{err: errors.New("no authorization code received")})
			http.Error(w, "Autorisation refusée", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><h1>Autorisation accordée</h1><p>Vous pouvez revenir au terminal.</p></body></html>`)
		report(callbackResult{code: query.Get("code")})
	})
	return r
}

func awaitGoogleCallback(ctx context.Context, state string, logger *zap.Logger) (string, error) {
	results := make(chan callbackResult, 1)
	server := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", GoogleCallbackPort),
		Handler:           googleCallback(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}

	report := reporter(results)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			report(callbackResult{err: fmt.Errorf("callback server failed: %w", err)})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Debug("Callback server shutdown", zap.Error(err))
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, googleConsentWindow)
	defer cancel()

	select {
	case res := <-results:
		return res.code, res.err
	case <-waitCtx.Done():
		return "", fmt.Errorf("no authorization within %v: %w", googleConsentWindow, waitCtx.Err())
	}
}
