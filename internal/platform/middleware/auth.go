package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// TokenValidator validates bearer session tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*SessionClaims, error)
}

// SessionClaims carries the claims the middleware needs from a validated
// session token.
type SessionClaims struct {
	SessionID string
	User      string
	Admin     bool
}

type contextKeySession struct{}

// GetSession retrieves the validated session claims, or nil when the request
// did not pass RequireSession.
func GetSession(ctx context.Context) *SessionClaims {
	claims, ok := ctx.Value(contextKeySession{}).(*SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

// RequireSession rejects requests without a valid bearer token and stores the
// claims in the request context for handlers.
func RequireSession(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				unauthorized(w)
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "rejected session token",
					"request_id", GetRequestID(r.Context()),
					"error", err,
				)
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), contextKeySession{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates reference-data mutation routes on the admin claim.
// It must run after RequireSession.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetSession(r.Context())
			if claims == nil {
				unauthorized(w)
				return
			}
			if !claims.Admin {
				logger.WarnContext(r.Context(), "admin route without admin claim",
					"request_id", GetRequestID(r.Context()),
					"user", claims.User,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
