package models

import "github.com/golang-jwt/jwt/v5"

// IdentityClaims represents the bearer token claims issued by the auth service.
// Tokens carry the user id either in the custom "id" claim or in "sub".
type IdentityClaims struct {
	jwt.RegisteredClaims        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	ID                   string `json:"id"`
	Email                string `json:"email,omitempty"`
	Role                 string `json:"role,omitempty"`
}

// GetUserID returns the owner identity carried by the token.
func (c *IdentityClaims) GetUserID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Subject
}
