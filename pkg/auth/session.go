package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const sessionDirName = ".voisin"

// refreshMargin renews tokens that expire within this window
const refreshMargin = time.Minute

// ErrNoSession is returned when no session has been stored for the environment
var ErrNoSession = errors.New("no stored session, run login first")

// User is the account returned with a session
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

// Session is the token pair returned by the auth service
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

// Expired reports whether the access token expires before now plus margin
func (s *Session) Expired(now time.Time, margin time.Duration) bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return !now.Add(margin).Before(time.Unix(s.ExpiresAt, 0))
}

// Authenticator exchanges credentials for sessions
type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
}

// SessionPath returns ~/.voisin/session-<env>.json
func SessionPath(env string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, sessionDirName, "session-"+env+".json"), nil
}

// SaveSession writes the session to path, readable by the owner only
func SaveSession(path string, s *Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// LoadSession reads a session written by SaveSession
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &s, nil
}

// Login signs in and stores the session at path
func Login(ctx context.Context, authn Authenticator, path, email, password string, logger *zap.Logger) (*Session, error) {
	session, err := authn.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}

	if err := SaveSession(path, session); err != nil {
		return nil, err
	}

	logger.Info("Signed in",
		zap.String("user_id", session.User.ID),
		zap.String("role", session.User.UserMetadata.Role))
	return session, nil
}

// Current loads the stored session, refreshing and re-saving it when the
// access token is about to expire
func Current(ctx context.Context, authn Authenticator, path string, logger *zap.Logger) (*Session, error) {
	session, err := LoadSession(path)
	if err != nil {
		return nil, err
	}

	if !session.Expired(time.Now(), refreshMargin) {
		return session, nil
	}
	if session.RefreshToken == "" {
		return nil, fmt.Errorf("session expired, run login again")
	}

	logger.Debug("Refreshing session", zap.String("user_id", session.User.ID))
	refreshed, err := authn.RefreshSession(ctx, session.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	if err := SaveSession(path, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}
