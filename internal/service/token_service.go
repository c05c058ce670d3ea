package service

import (
	"errors"
	"time"

	"repuestera/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired is returned when a token's expiry has passed. Callers
	// distinguish it from ErrTokenMalformed for user-facing messaging.
	ErrTokenExpired = errors.New("token has expired")
	// ErrTokenMalformed covers every other signature or structure failure.
	ErrTokenMalformed = errors.New("token is malformed or invalid")
)

// Claims is the payload carried inside an issued token. Type discriminates
// the principal kind; Role is set only for administrator tokens.
type Claims struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Type  string    `json:"type"`
	Role  string    `json:"rol,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims belong to an administrator token.
func (c *Claims) IsAdmin() bool {
	return c.Type == domain.PrincipalTypeAdmin
}

// TokenService issues and verifies signed, expiring tokens.
type TokenService interface {
	Issue(claims Claims, ttl time.Duration) (string, error)
	Verify(token string) (*Claims, error)
	DefaultTTL() time.Duration
}

type tokenService struct {
	secret     []byte
	defaultTTL time.Duration
}

// NewTokenService creates a TokenService signing with the shared secret.
func NewTokenService(secret string, defaultTTL time.Duration) TokenService {
	return &tokenService{
		secret:     []byte(secret),
		defaultTTL: defaultTTL,
	}
}

func (s *tokenService) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Issue signs the claims with HS256 and the given time-to-live. TTL is
// explicit per call; use DefaultTTL for the configured default.
func (s *tokenService) Issue(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates a token, returning its claims. Expiry maps to
// ErrTokenExpired; any other failure maps to ErrTokenMalformed.
func (s *tokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
