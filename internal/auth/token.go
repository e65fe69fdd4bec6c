// Package auth provides the JWT token service and the account-facing HTTP
// handlers (signup, signin, logout, profile, auction lists).
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nishant/auction-app/backend/internal/apperrors"
)

const issuer = "auction-app"

// TokenService signs and verifies the bearer tokens that prove a user's
// identity. Tokens are HS256 JWTs carrying the user id in the subject claim.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret should be at least 32
// bytes of random data in production.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Issue creates a signed token for the given user id, expiring after the
// configured lifetime (one hour by default).
func (s *TokenService) Issue(userID string) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// issueWithDuration creates a token with a custom lifetime. Used by tests to
// produce expired tokens.
func (s *TokenService) issueWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and checks a token, returning the user id from the subject
// claim. Signature, expiry, issuer and signing algorithm are all enforced.
func (s *TokenService) Verify(tokenStr string) (string, error) {
	c, err := s.parse(tokenStr)
	if err != nil {
		return "", err
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject: %w", apperrors.ErrForbidden)
	}
	return c.Subject, nil
}

// Remaining returns how long a valid token has until expiry. The logout path
// uses this as the blacklist TTL so invalidated tokens are only stored for
// as long as they could still be replayed.
func (s *TokenService) Remaining(tokenStr string) (time.Duration, error) {
	c, err := s.parse(tokenStr)
	if err != nil {
		return 0, err
	}
	return time.Until(c.ExpiresAt.Time), nil
}

func (s *TokenService) parse(tokenStr string) (*claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired: %w", apperrors.ErrForbidden)
		}
		return nil, fmt.Errorf("auth: invalid token: %w", apperrors.ErrForbidden)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims: %w", apperrors.ErrForbidden)
	}
	return c, nil
}
