package channel

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleCustomer is the subscriber role a storefront session connects as.
const RoleCustomer = "customer"

var (
	ErrMissingToken    = errors.New("channel: missing auth token")
	ErrMissingCustomer = errors.New("channel: missing customer id")
	ErrTokenExpired    = errors.New("channel: auth token expired")
)

// Session carries the identity a connection is keyed by.
type Session struct {
	Token      string
	Role       string
	CustomerID string
}

func (s Session) role() string {
	if s.Role == "" {
		return RoleCustomer
	}
	return s.Role
}

// Validate rejects sessions the server would refuse anyway. Tokens that are
// JWTs are checked for expiry without verifying the signature; opaque
// tokens are passed through.
func (s Session) Validate(now time.Time) error {
	if s.Token == "" {
		return ErrMissingToken
	}
	if s.CustomerID == "" {
		return ErrMissingCustomer
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, claims.ExpiresAt.Time.Format(time.RFC3339))
	}
	return nil
}
