package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

func signToken(t *testing.T, secret, role string, expiresAt time.Time) string {
	t.Helper()
	claims := Claims{
		Email:        "marie@example.fr",
		UserMetadata: UserMetadata{Role: role},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestParseClaims_Verified(t *testing.T) {
	token := signToken(t, "secret", db.RoleAssociation, time.Now().Add(time.Hour))

	claims, err := ParseClaims(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID())
	assert.Equal(t, "marie@example.fr", claims.Email)
	assert.True(t, claims.IsAssociation())
}

func TestParseClaims_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, "other", db.RoleVolunteer, time.Now().Add(time.Hour))},
		{"expired", signToken(t, "secret", db.RoleVolunteer, time.Now().Add(-time.Hour))},
		{"garbage", "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClaims(tt.token, "secret")
			require.Error(t, err)
			assert.ErrorIs(t, err, db.ErrUnauthorized)
		})
	}
}

func TestParseClaims_Unverified(t *testing.T) {
	token := signToken(t, "unknown-to-us", "", time.Now().Add(time.Hour))

	claims, err := ParseClaims(token, "")
	require.NoError(t, err)
	assert.Equal(t, db.RoleVolunteer, claims.AppRole())

	_, err = ParseClaims("garbage", "")
	assert.Error(t, err)
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, (&Session{}).Expired(now, time.Minute))
	assert.False(t, (&Session{ExpiresAt: now.Add(time.Hour).Unix()}).Expired(now, time.Minute))
	assert.True(t, (&Session{ExpiresAt: now.Add(30 * time.Second).Unix()}).Expired(now, time.Minute))
	assert.True(t, (&Session{ExpiresAt: now.Add(-time.Hour).Unix()}).Expired(now, time.Minute))
}

type mockAuthenticator struct {
	session       *Session
	err           error
	refreshedWith string
}

func (m *mockAuthenticator) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return m.session, m.err
}

func (m *mockAuthenticator) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	m.refreshedWith = refreshToken
	return m.session, m.err
}

func TestLoginAndCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session-test.json")
	authn := &mockAuthenticator{session: &Session{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		User:         User{ID: "u1", UserMetadata: UserMetadata{Role: db.RoleVolunteer}},
	}}

	_, err := Login(context.Background(), authn, path, "marie@example.fr", "secret", zap.NewNop())
	require.NoError(t, err)

	session, err := Current(context.Background(), authn, path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "at", session.AccessToken)
	assert.Empty(t, authn.refreshedWith)
}

func TestCurrent_RefreshesExpiredSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session-test.json")
	require.NoError(t, SaveSession(path, &Session{
		AccessToken:  "old",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(-time.Minute).Unix(),
	}))

	authn := &mockAuthenticator{session: &Session{
		AccessToken:  "new",
		RefreshToken: "rt2",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}}

	session, err := Current(context.Background(), authn, path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "new", session.AccessToken)
	assert.Equal(t, "rt", authn.refreshedWith)

	stored, err := LoadSession(path)
	require.NoError(t, err)
	assert.Equal(t, "rt2", stored.RefreshToken)
}

func TestCurrent_NoSession(t *testing.T) {
	_, err := Current(context.Background(), &mockAuthenticator{}, filepath.Join(t.TempDir(), "none.json"), zap.NewNop())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLogin_Failure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session-test.json")
	authn := &mockAuthenticator{err: errors.New("invalid credentials")}

	_, err := Login(context.Background(), authn, path, "marie@example.fr", "wrong", zap.NewNop())
	require.Error(t, err)

	_, err = LoadSession(path)
	assert.ErrorIs(t, err, ErrNoSession)
}
