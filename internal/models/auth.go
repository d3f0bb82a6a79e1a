package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the payload of access tokens minted by the identity provider. The subject is the
// user id; the provider role ("authenticated") is not an application role.
type JWTClaims struct {
	Email        string `json:"email,omitempty"`
	ProviderRole string `json:"role,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *JWTClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}
