package jwtmw

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Issuer is set as the "iss" claim of every token.
	Issuer = "market_sync"
	// Audience is the "aud" claim the read API accepts.
	Audience = "market_sync-api"
	// ScopeRead grants access to the price and coverage endpoints.
	ScopeRead = "prices:read"
)

// ServiceClaims are the claims of a service-to-service token.
type ServiceClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope reports whether the token was granted scope.
func (c ServiceClaims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// Generator defines the interface for JWT token generation.
type Generator interface {
	// GenerateToken creates a signed JWT token for the given subject.
	GenerateToken(subject string) (string, error)
}

// TokenGenerator signs HS256 service tokens with a shared secret.
type TokenGenerator struct {
	secret     []byte
	expiration time.Duration
	scopes     []string
	now        func() time.Time
}

var _ Generator = (*TokenGenerator)(nil)

// NewGenerator creates a generator whose tokens expire after expiration and
// carry scopes. Without scopes the token is granted ScopeRead.
func NewGenerator(secret string, expiration time.Duration, scopes ...string) *TokenGenerator {
	if len(scopes) == 0 {
		scopes = []string{ScopeRead}
	}
	return &TokenGenerator{
		secret:     []byte(secret),
		expiration: expiration,
		scopes:     scopes,
		now:        time.Now,
	}
}

// GenerateToken creates a signed service token for subject.
func (g *TokenGenerator) GenerateToken(subject string) (string, error) {
	if len(g.secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	if subject == "" {
		return "", errors.New("token subject is empty")
	}
	if g.expiration <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", g.expiration)
	}
	now := g.now()
	claims := ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.expiration)),
		},
		Scopes: g.scopes,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
