package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when a token cannot be decoded.
var ErrMalformed = errors.New("malformed token")

// Claims is the payload of a session token.
type Claims struct {
	Email       string   `json:"email,omitempty"`
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
	jwt.RegisteredClaims
}

// Decode parses tokenStr and returns its claims without verifying the
// signature or the registered time claims.
func Decode(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMalformed
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}
