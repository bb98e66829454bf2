package academy

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the caller supplied claims for Issue. TokenID binds the
// jti to a stored credential token row, it is generated when empty.
type TokenClaims struct {
	UserID   string
	Role     Role
	TokenID  string
	Metadata map[string]any
}

// JWTClaims is the signed payload of every token kind
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string         `json:"uid,omitempty"`
	Kind     TokenKind      `json:"kind"`
	UserRole string         `json:"role,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Subject returns the subject claim, the identity email
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the embedded role. Only access tokens carry one.
func (c *JWTClaims) Role() Role {
	return Role(c.UserRole)
}

func (c *JWTClaims) TokenKind() TokenKind {
	return c.Kind
}

// TokenID returns the jti claim
func (c *JWTClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
