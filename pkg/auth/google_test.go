package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

func TestGoogleGrant_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "google-test.json")
	grant := &GoogleGrant{
		Token:  &oauth2.Token{AccessToken: "at", RefreshToken: "rt", Expiry: time.Now().Add(time.Hour)},
		Scopes: GoogleScopes,
	}

	require.NoError(t, SaveGoogleGrant(path, grant))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadGoogleGrant(path)
	require.NoError(t, err)
	assert.Equal(t, "rt", loaded.Token.RefreshToken)
	assert.Empty(t, loaded.Missing(GoogleScopes))
}

func TestLoadGoogleGrant_Missing(t *testing.T) {
	_, err := LoadGoogleGrant(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestGoogleGrant_Missing(t *testing.T) {
	grant := &GoogleGrant{Scopes: []string{GoogleScopes[0]}}
	assert.Equal(t, []string{GoogleScopes[1]}, grant.Missing(GoogleScopes))
}

func TestGoogleTokenPath_SitsNextToSession(t *testing.T) {
	tokenPath, err := GoogleTokenPath("prod")
	require.NoError(t, err)
	sessionPath, err := SessionPath("prod")
	require.NoError(t, err)

	assert.Equal(t, filepath.Dir(sessionPath), filepath.Dir(tokenPath))
	assert.Equal(t, "google-prod.json", filepath.Base(tokenPath))
}

func TestGoogleToken_ReusesStoredGrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "google-test.json")
	stored := &oauth2.Token{AccessToken: "still-valid", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	require.NoError(t, SaveGoogleGrant(path, &GoogleGrant{Token: stored, Scopes: GoogleScopes}))

	token, err := GoogleToken(context.Background(), &oauth2.Config{Scopes: GoogleScopes}, path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "still-valid", token.AccessToken)
}

func TestGrantedScopes(t *testing.T) {
	withScope := (&oauth2.Token{}).WithExtra(map[string]any{"scope": "a b"})
	assert.Equal(t, []string{"a", "b"}, grantedScopes(withScope, []string{"requested"}))
	assert.Equal(t, []string{"requested"}, grantedScopes(&oauth2.Token{}, []string{"requested"}))
}

func TestGoogleCallback(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		status   int
		wantCode string
	}{
		{"granted", "?state=s1&code=abc", http.StatusOK, "abc"},
		{"wrong state", "?state=other&code=abc", http.StatusBadRequest, ""},
		{"denied", "?state=s1&error=access_denied", http.StatusBadRequest, ""},
		{"no code", "?state=s1", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make(chan callbackResult, 1)
			h := googleCallback("s1", results)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, googleCallbackPath+tt.query, nil))
			assert.Equal(t, tt.status, w.Code)

			res := <-results
			assert.Equal(t, tt.wantCode, res.code)
			if tt.wantCode == "" {
				assert.Error(t, res.err)
			} else {
				assert.NoError(t, res.err)
			}
		})
	}
}
