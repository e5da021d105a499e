package host

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
)

// HeaderClaims are the claims of a client authorization header. The host
// never verifies them; the identity provider does.
type HeaderClaims struct {
	jwt.RegisteredClaims

	// ClientID is the identity provider's client the header belongs to.
	ClientID      string `json:"id,omitempty"`
	RotatingToken string `json:"rotating_token,omitempty"`
}

// InspectHeader decodes the claims of header without verifying its
// signature. A "Bearer " prefix is ignored.
func InspectHeader(header string) (*HeaderClaims, error) {
	token := strings.TrimSpace(header)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return nil, errors.New(errors.ErrCodeStore, "authorization header is empty")
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &HeaderClaims{})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, "authorization header is not a token", err)
	}
	claims, ok := parsed.Claims.(*HeaderClaims)
	if !ok {
		return nil, errors.New(errors.ErrCodeStore, "unexpected authorization header claims")
	}
	return claims, nil
}

// Expired reports whether the claims carry an expiry before now.
func (c *HeaderClaims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}
