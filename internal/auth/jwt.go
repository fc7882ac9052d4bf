// Package auth issues and checks session tokens and talks to the OAuth
// identity providers.
//
// A session is a signed JWT in the HttpOnly "token" cookie. Besides the user
// id it carries one application claim, "tnr" (tenant ready), recording
// whether the user's tenant database was provisioned during this session so
// a refresh does not repeat the work.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the "iss" claim of every session token.
const Issuer = "notebox"

// DefaultSessionTTL matches the session cookie lifetime.
const DefaultSessionTTL = 7 * 24 * time.Hour

// MinSecretLength is the shortest HMAC secret NewTokenService accepts.
const MinSecretLength = 16

// Session is what a valid token tells us about the caller.
type Session struct {
	UserID      string
	TenantReady bool
	ExpiresAt   time.Time
}

// TokenService signs and verifies session tokens with an HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. A zero ttl means DefaultSessionTTL.
// Generate a secret with: openssl rand -hex 32
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", MinSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

type claims struct {
	TenantReady bool `json:"tnr,omitempty"`
	jwt.RegisteredClaims
}

// TTL is the lifetime of tokens from Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Generate signs a session token for userID that lives for TTL.
func (s *TokenService) Generate(userID string, tenantReady bool) (string, error) {
	return s.GenerateWithDuration(userID, tenantReady, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use it to
// mint expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, tenantReady bool, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		TenantReady: tenantReady,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature, issuer and expiry, and returns the session.
// Only HS256 is accepted, which rules out "alg: none" tokens.
func (s *TokenService) Validate(tokenStr string) (*Session, error) {
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
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	sess := &Session{UserID: c.Subject, TenantReady: c.TenantReady}
	if c.ExpiresAt != nil {
		sess.ExpiresAt = c.ExpiresAt.Time
	}
	return sess, nil
}
