package academy

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type immutableClaimsSnapshot struct {
	subject   string
	issuer    string
	id        string
	uid       string
	kind      TokenKind
	role      string
	audience  []string
	issuedAt  time.Time
	expiresAt time.Time
}

func captureImmutableClaims(claims *JWTClaims) immutableClaimsSnapshot {
	snap := immutableClaimsSnapshot{
		subject:  claims.RegisteredClaims.Subject,
		issuer:   claims.RegisteredClaims.Issuer,
		id:       claims.RegisteredClaims.ID,
		uid:      claims.UID,
		kind:     claims.Kind,
		role:     claims.UserRole,
		audience: append([]string(nil), claims.RegisteredClaims.Audience...),
	}
	if claims.RegisteredClaims.IssuedAt != nil {
		snap.issuedAt = claims.RegisteredClaims.IssuedAt.Time
	}
	if claims.RegisteredClaims.ExpiresAt != nil {
		snap.expiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}
	return snap
}

func (snap immutableClaimsSnapshot) validate(claims *JWTClaims) error {
	switch {
	case claims.RegisteredClaims.Subject != snap.subject:
		return immutableClaimViolation("sub")
	case claims.RegisteredClaims.Issuer != snap.issuer:
		return immutableClaimViolation("iss")
	case claims.RegisteredClaims.ID != snap.id:
		return immutableClaimViolation("jti")
	case claims.UID != snap.uid:
		return immutableClaimViolation("uid")
	case claims.Kind != snap.kind:
		return immutableClaimViolation("kind")
	case claims.UserRole != snap.role:
		return immutableClaimViolation("role")
	case !audienceEqual(claims.RegisteredClaims.Audience, snap.audience):
		return immutableClaimViolation("aud")
	case !numericDateEqual(claims.RegisteredClaims.IssuedAt, snap.issuedAt):
		return immutableClaimViolation("iat")
	case !numericDateEqual(claims.RegisteredClaims.ExpiresAt, snap.expiresAt):
		return immutableClaimViolation("exp")
	}
	return nil
}

func numericDateEqual(date *jwt.NumericDate, expected time.Time) bool {
	if date == nil {
		return expected.IsZero()
	}
	return date.Time.Equal(expected)
}

func audienceEqual(a jwt.ClaimStrings, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func immutableClaimViolation(field string) error {
	return newError(ErrInternal, fmt.Sprintf("immutable claim mutated: %s", field), map[string]any{
		"claim": field,
	})
}
