package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"repuestera/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const (
	ClaimsKey   contextKey = "claims"
	RawTokenKey contextKey = "raw_token"
)

// User-facing authentication messages. Expired and malformed tokens are
// deliberately distinguishable; credential mismatches elsewhere are not.
const (
	MsgNoToken        = "Token no proporcionado"
	MsgTokenExpired   = "Token expirado"
	MsgTokenMalformed = "Token inválido"
)

// extractBearer pulls the token out of an Authorization: Bearer header.
// Returns "" when the header is missing or not in Bearer form.
func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return ""
	}
	return parts[1]
}

// RequireAuth verifies the bearer token and attaches the decoded claims and
// the raw token to the request context. Missing, expired, and malformed
// tokens halt the request with distinguishable 401 messages.
func RequireAuth(tokens service.TokenService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearer(r)
			if tokenString == "" {
				logger.Debug("Missing bearer token")
				RespondWithError(w, http.StatusUnauthorized, MsgNoToken)
				return
			}

			claims, err := tokens.Verify(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrTokenExpired):
					logger.Debug("Expired token")
					RespondWithError(w, http.StatusUnauthorized, MsgTokenExpired)
				case errors.Is(err, service.ErrTokenMalformed):
					logger.Debug("Malformed token", zap.Error(err))
					RespondWithError(w, http.StatusUnauthorized, MsgTokenMalformed)
				default:
					logger.Error("Token verification failed", zap.Error(err))
					RespondWithError(w, http.StatusInternalServerError, "error de autenticación")
				}
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			ctx = context.WithValue(ctx, RawTokenKey, tokenString)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches claims when a valid token is present and otherwise
// lets the request proceed unauthenticated. Every extraction or verification
// failure is swallowed.
func OptionalAuth(tokens service.TokenService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearer(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.Verify(tokenString)
			if err != nil {
				logger.Debug("Optional auth token rejected", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			ctx = context.WithValue(ctx, RawTokenKey, tokenString)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims extracts decoded claims from the request context.
func GetClaims(ctx context.Context) (*service.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*service.Claims)
	return claims, ok
}

// GetRawToken extracts the raw bearer token from the request context.
func GetRawToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(RawTokenKey).(string)
	return token, ok
}
