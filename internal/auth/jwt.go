// Package auth verifies the bearer token presented when a connection opens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = domain.Unauthorized("invalid or expired token")
	ErrMissingToken = domain.Unauthorized("missing token")
	ErrInactive     = domain.Unauthorized("account is disabled")
)

// IdentityLookup resolves the current state of a token's subject.
type IdentityLookup interface {
	FindIdentity(ctx context.Context, id domain.IdentityID) (domain.Identity, error)
}

type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verifier signs and verifies HS256 tokens. With a lookup configured, the
// subject must exist and be active in the user store; without one the
// token's claims are trusted as-is.
type Verifier struct {
	secret []byte
	ttl    time.Duration
	lookup IdentityLookup
}

func NewVerifier(secret string, ttl time.Duration, lookup IdentityLookup) *Verifier {
	return &Verifier{secret: []byte(secret), ttl: ttl, lookup: lookup}
}

// Issue mints a token for identity.
func (v *Verifier) Issue(identity domain.Identity) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("jwt secret is empty")
	}
	if strings.TrimSpace(string(identity.ID)) == "" {
		return "", errors.New("identity id required")
	}
	now := time.Now()
	claims := Claims{
		Name: identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  string(identity.ID),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if v.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(v.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify returns the identity behind token or an Unauthorized error.
func (v *Verifier) Verify(ctx context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, ErrMissingToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return domain.Identity{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Identity{}, ErrInvalidToken
	}
	identity, err := domain.NewIdentity(claims.Subject, claims.Name)
	if err != nil {
		return domain.Identity{}, ErrInvalidToken
	}
	if v.lookup == nil {
		return identity, nil
	}
	stored, err := v.lookup.FindIdentity(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return domain.Identity{}, ErrInvalidToken
		}
		return domain.Identity{}, fmt.Errorf("lookup identity: %w", err)
	}
	if !stored.IsActive {
		return domain.Identity{}, ErrInactive
	}
	if stored.DisplayName == "" {
		stored.DisplayName = identity.DisplayName
	}
	return stored, nil
}

// SubjectOf reads the subject of a token without verifying it. Clients use it
// to learn their own identity id from the token they were handed.
func SubjectOf(token string) (domain.IdentityID, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return domain.IdentityID(claims.Subject), nil
}
