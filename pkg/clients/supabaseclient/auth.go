package supabaseclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/voisinsolidaire/voisin/pkg/auth"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

var _ auth.Authenticator = (*Client)(nil)

// authError covers the error bodies of both auth service generations
type authError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
}

func parseAuthError(status int, body []byte) error {
	var ae authError
	_ = json.Unmarshal(body, &ae)

	message := ae.ErrorDescription
	if message == "" {
		message = ae.Msg
	}
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	code := ae.ErrorCode
	if code == "" {
		code = ae.Error
	}

	return &db.BackendError{
		Status:  status,
		Code:    code,
		Message: message,
		Kind:    db.ErrUnauthorized,
	}
}

func (c *Client) token(ctx context.Context, grantType string, body map[string]string) (*auth.Session, error) {
	query := url.Values{}
	query.Set("grant_type", grantType)

	data, err := c.postAuth(ctx, "/auth/v1/token", query, body)
	if err != nil {
		return nil, err
	}

	var session auth.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if session.ExpiresAt == 0 && session.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(session.ExpiresIn) * time.Second).Unix()
	}
	return &session, nil
}

// SignInWithPassword exchanges an email and password for a session
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	return c.token(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
}

// RefreshSession exchanges a refresh token for a new session
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*auth.Session, error) {
	return c.token(ctx, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}
