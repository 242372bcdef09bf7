package session

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the subset of bearer token claims the client cares about.
type TokenClaims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Expired reports whether the token has an expiry in the past. Tokens
// without exp never expire client side.
func (c *TokenClaims) Expired(now time.Time) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// TokenInspector reads claims out of an access token.
type TokenInspector interface {
	Inspect(token string) (*TokenClaims, error)
}

// TokenInspectorFunc adapts a function into a TokenInspector.
type TokenInspectorFunc func(token string) (*TokenClaims, error)

// Inspect satisfies TokenInspector
func (f TokenInspectorFunc) Inspect(token string) (*TokenClaims, error) {
	if f == nil {
		return &TokenClaims{}, nil
	}
	return f(token)
}

// UnverifiedInspector decodes JWT claims without checking the signature.
// The API remains the authority; the client only needs exp to avoid
// presenting a credential that is known to be dead.
type UnverifiedInspector struct{}

// Inspect satisfies TokenInspector
func (UnverifiedInspector) Inspect(token string) (*TokenClaims, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return toTokenClaims(claims), nil
}

// JWKSInspector verifies the token signature against a JWKS endpoint
// before reading its claims. Expiry is reported, not enforced, so callers
// can decide how to treat a stale credential.
type JWKSInspector struct {
	jwks *keyfunc.JWKS
}

// NewJWKSInspector fetches the key set and keeps it refreshed in the background.
func NewJWKSInspector(ctx context.Context, jwksURL string, logger Logger) (*JWKSInspector, error) {
	if logger == nil {
		logger = defLogger()
	}
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Warn("jwks refresh failed", "url", jwksURL, "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("load jwks from %s: %w", jwksURL, err)
	}
	return &JWKSInspector{jwks: jwks}, nil
}

// Inspect satisfies TokenInspector
func (i *JWKSInspector) Inspect(token string) (*TokenClaims, error) {
	claims := &jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, i.jwks.Keyfunc, jwt.WithoutClaimsValidation()); err != nil {
		return nil, fmt.Errorf("verify access token: %w", err)
	}
	return toTokenClaims(claims), nil
}

// Close stops the background refresh.
func (i *JWKSInspector) Close() {
	if i != nil && i.jwks != nil {
		i.jwks.EndBackground()
	}
}

func toTokenClaims(claims *jwt.RegisteredClaims) *TokenClaims {
	out := &TokenClaims{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out
}
