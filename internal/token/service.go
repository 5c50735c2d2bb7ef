// Package token issues and verifies the signed bearer tokens used by the API.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failure kinds. The auth middleware relies on these being
// distinguishable to pick the right response message.
var (
	ErrMalformed        = errors.New("token: malformed")
	ErrExpired          = errors.New("token: expired")
	ErrSignatureInvalid = errors.New("token: signature invalid")
)

// Claims is the payload carried by every issued token.
type Claims struct {
	jwt.RegisteredClaims
}

// Identity is the verified content of a token.
type Identity struct {
	UserID   string
	IssuedAt time.Time
}

// Service signs and verifies HS256 tokens. Verification is stateless: there is
// no revocation list, only the password-changed-at check applied downstream.
type Service struct {
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

// NewService constructs a Service with an explicit secret and token lifetime.
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  time.Now,
	}
}

// WithClock overrides the time source, used by tests for deterministic expiry.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Issue signs a token bound to the given user identifier.
func (s *Service) Issue(userID string) (string, error) {
	now := s.clock().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token string, returning the identity it
// carries. Errors are one of ErrMalformed, ErrExpired or ErrSignatureInvalid.
func (s *Service) Verify(tokenString string) (Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.clock() }))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Identity{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Identity{}, ErrSignatureInvalid
		default:
			return Identity{}, ErrMalformed
		}
	}
	if !parsed.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		return Identity{}, ErrMalformed
	}
	return Identity{UserID: claims.Subject, IssuedAt: claims.IssuedAt.Time}, nil
}
