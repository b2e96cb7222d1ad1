// Package jwt issues and verifies the HS256 access tokens handed out by the
// development backend.
package jwt

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	wferrors "github.com/jrsteele09/go-workforce-client/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Audience values carried in the aud claim.
const (
	AudienceTenant = "tenant"
	AudienceAdmin  = "admin"
)

var ErrWrongAudience = errors.New("token issued for another audience")

// Claims are the access token claims.
type Claims struct {
	Tenant string   `json:"tenant,omitempty"` // Tenant the subject belongs to, empty for system accounts
	Roles  []string `json:"roles,omitempty"`  // Roles granted to the subject
	jwtlib.RegisteredClaims
}

// Subject is who a token is issued to.
type Subject struct {
	UserID   string
	TenantID string
	Roles    []string
}

// RevokedChecker reports whether a token ID has been revoked.
type RevokedChecker interface {
	IsRevoked(jti string) bool
}

// Issuer signs and verifies access tokens with a shared secret.
type Issuer struct {
	name    string
	secret  []byte
	ttl     time.Duration
	revoked RevokedChecker
}

type IssuerOption func(*Issuer)

// WithRevokedChecker makes Verify reject revoked token IDs.
func WithRevokedChecker(rc RevokedChecker) IssuerOption {
	return func(i *Issuer) {
		i.revoked = rc
	}
}

func NewIssuer(name string, secret []byte, ttl time.Duration, options ...IssuerOption) *Issuer {
	i := &Issuer{name: name, secret: secret, ttl: ttl}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// TTL is the lifetime of newly issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a signed access token for sub, valid for audience.
func (i *Issuer) Issue(sub Subject, audience string) (string, *Claims, error) {
	now := NowTimeFunc()
	claims := &Claims{
		Tenant: sub.TenantID,
		Roles:  sub.Roles,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    i.name,
			Subject:   sub.UserID,
			Audience:  jwtlib.ClaimStrings{audience},
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.New().String(),
		},
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, claims, nil
}

// Verify parses raw, checks its signature, expiry, audience and revocation
// state, and returns its claims.
func (i *Issuer) Verify(raw, audience string) (*Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, wferrors.ErrInvalidToken
	}
	claims := &Claims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwtlib.WithIssuer(i.name),
		jwtlib.WithTimeFunc(NowTimeFunc),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", wferrors.ErrInvalidToken, err)
	}
	if audience != "" && !slices.Contains(claims.Audience, audience) {
		return nil, fmt.Errorf("%w: %w", wferrors.ErrInvalidToken, ErrWrongAudience)
	}
	if i.revoked != nil && i.revoked.IsRevoked(claims.ID) {
		return nil, fmt.Errorf("%w: token revoked", wferrors.ErrInvalidToken)
	}
	return claims, nil
}
