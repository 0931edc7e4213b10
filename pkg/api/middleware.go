package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/auth"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

type contextKey string

const (
	claimsKey contextKey = "claims"
	tokenKey  contextKey = "token"
)

// RequestLogger logs one line per request with zap
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("ip", r.RemoteAddr),
			}
			if claims := Claims(r.Context()); claims != nil {
				fields = append(fields, zap.String("user_id", claims.UserID()))
			}

			if ww.Status() >= http.StatusInternalServerError {
				logger.Error("Request failed", fields...)
				return
			}
			logger.Info("Request served", fields...)
		})
	}
}

// Authenticate reads an optional bearer token and stores its claims in the
// request context. A malformed or invalid token is rejected. Without a secret
// tokens are only accepted when backendVerifies is set, since their signature
// goes unchecked here.
func Authenticate(secret string, backendVerifies bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := strings.TrimPrefix(header, "Bearer ")
			if token == header {
				writeError(w, db.ErrUnauthorized)
				return
			}

			if secret == "" && !backendVerifies {
				writeError(w, fmt.Errorf("%w: no secret to verify the token", db.ErrUnauthorized))
				return
			}

			claims, err := auth.ParseClaims(token, secret)
			if err != nil {
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests without a valid session
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Claims(r.Context()) == nil {
			writeError(w, db.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAssociation rejects requests not made by an association account
func RequireAssociation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := Claims(r.Context())
		if claims == nil {
			writeError(w, db.ErrUnauthorized)
			return
		}
		if !claims.IsAssociation() {
			writeJSON(w, http.StatusForbidden, errorResponse{
				Error: "Cette action est réservée aux associations.",
				Code:  "forbidden",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Claims returns the caller's claims, or nil for anonymous requests
func Claims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// AccessToken returns the caller's raw token, or ""
func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}
