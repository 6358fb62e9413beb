package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/pricesync-backend/pkg/enums"
)

// AccessTokenPayload is what an issuer supplies when minting an operator JWT.
type AccessTokenPayload struct {
	OperatorID string
	Role       enums.OperatorRole
	JTI        string
}

// AccessTokenClaims is the typed JWT body carried by back-office operators.
type AccessTokenClaims struct {
	Role enums.OperatorRole `json:"role"`
	jwt.RegisteredClaims
}

// OperatorID is the trimmed subject claim.
func (c *AccessTokenClaims) OperatorID() string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Subject)
}

// Validate runs after the registered-claim checks in jwt.Parser.
func (c *AccessTokenClaims) Validate() error {
	if c.OperatorID() == "" {
		return ErrMissingSubject
	}
	if !c.Role.IsValid() {
		return ErrInvalidRole
	}
	return nil
}
