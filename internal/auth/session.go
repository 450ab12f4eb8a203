// Package auth validates the session tokens the frontend obtains from the
// identity provider and exposes the caller's identity to handlers.
//
// SESSION FLOW:
// 1. The user signs in with the identity provider in the browser
// 2. The provider issues a short-lived session JWT (the __session cookie, or
//    an Authorization: Bearer header for API clients)
// 3. RequireAuth validates the token and stores its subject, the external
//    identity id, in the request context
// 4. Services resolve that id to the local user when they check ownership
//
// Tokens are HS256 and carry:
//
//	sub  external identity id
//	azp  origin of the frontend that requested the token
//	iss  issuer (checked when configured)
//	exp  expiry (required)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService validates session tokens. It can also mint them, which the
// tests and local tooling use to stand in for the identity provider.
type TokenService struct {
	secret  []byte
	issuer  string
	parties map[string]struct{}
}

// NewTokenService creates a TokenService.
//
// An empty authorizedParties accepts any azp claim. Otherwise the azp claim
// must be one of the listed origins.
func NewTokenService(secret, issuer string, authorizedParties []string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}

	parties := make(map[string]struct{}, len(authorizedParties))
	for _, p := range authorizedParties {
		if p != "" {
			parties[p] = struct{}{}
		}
	}

	return &TokenService{secret: []byte(secret), issuer: issuer, parties: parties}, nil
}

// Claims is the session token payload.
type Claims struct {
	jwt.RegisteredClaims
	AuthorizedParty string `json:"azp,omitempty"`
}

// Generate signs a token for subject valid for ttl. A negative ttl yields an
// already expired token.
func (s *TokenService) Generate(subject, authorizedParty string, ttl time.Duration) (string, error) {
	now := time.Now()

	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		AuthorizedParty: authorizedParty,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies tokenStr and returns its subject.
//
// Checks, in order: HS256 signature, expiry (required), issuer when
// configured, subject present, azp in the authorized parties when any are
// configured.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var c Claims
	token, err := jwt.ParseWithClaims(tokenStr, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.New("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("auth: invalid token")
	}

	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	if len(s.parties) > 0 {
		if _, ok := s.parties[c.AuthorizedParty]; !ok {
			return "", fmt.Errorf("auth: unauthorized party %q", c.AuthorizedParty)
		}
	}

	return c.Subject, nil
}
