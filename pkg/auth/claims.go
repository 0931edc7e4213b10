package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

// UserMetadata is the profile data the auth service embeds in access tokens
type UserMetadata struct {
	Role      string `json:"role"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Claims are the access token claims the application relies on
type Claims struct {
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token
func (c *Claims) UserID() string {
	return c.Subject
}

// AppRole returns the application role, defaulting to volunteer
func (c *Claims) AppRole() string {
	if c.UserMetadata.Role == db.RoleAssociation {
		return db.RoleAssociation
	}
	return db.RoleVolunteer
}

// IsAssociation reports whether the token belongs to an association account
func (c *Claims) IsAssociation() bool {
	return c.AppRole() == db.RoleAssociation
}

// ParseClaims parses an access token. With a secret the HS256 signature and
// expiry are verified; without one the claims are read as is, which is only
// suitable for tokens the backend will verify again.
func ParseClaims(token, secret string) (*Claims, error) {
	claims := &Claims{}

	if secret == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("failed to parse token: %w", err)
		}
	} else {
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", db.ErrUnauthorized, err)
		}
		if !parsed.Valid {
			return nil, fmt.Errorf("%w: invalid token", db.ErrUnauthorized)
		}
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", db.ErrUnauthorized)
	}

	return claims, nil
}
