package academy

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// Guard authorizes requests from a raw access token.
type Guard struct {
	tokens   *TokenServiceImpl
	resolver IdentityResolver
	activity ActivitySink
	logger   Logger
}

func NewGuard(tokens *TokenServiceImpl, resolver IdentityResolver) *Guard {
	return &Guard{
		tokens:   tokens,
		resolver: resolver,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (g *Guard) WithActivitySink(sink ActivitySink) *Guard {
	g.activity = normalizeActivitySink(sink)
	return g
}

func (g *Guard) WithLogger(logger Logger) *Guard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// Authorize verifies raw as an access token and loads its identity.
//
// A missing, malformed, expired or wrong kind credential is Unauthenticated.
// A missing or soft deleted identity is NotFound. A blocked identity, or a
// role outside allowed, is Forbidden. The role checked is
// the one the token was issued with, and the returned identity carries it
// for the rest of the request.
func (g *Guard) Authorize(ctx context.Context, raw string, allowed RoleSet) (*User, error) {
	claims, err := g.tokens.Verify(raw, TokenKindAccess)
	if err != nil {
		reason := TextCodeInvalidToken
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			reason = richErr.TextCode
		}
		return nil, wrapError(ErrUnauthenticated, err, map[string]any{"reason": reason})
	}

	role := claims.Role()
	if !role.IsValid() {
		return nil, newError(ErrUnauthenticated, "", map[string]any{"reason": "token has no valid role"})
	}

	user, err := g.resolver.ResolveIdentity(ctx, claims.UserID())
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return nil, wrapError(ErrIdentityNotFound, err)
		}
		g.logger.Error("guard: resolve identity error: %v", err)
		return nil, storeError(err, "failed to resolve identity")
	}

	if user.IsDeleted() {
		return nil, newError(ErrIdentityNotFound, "")
	}

	if user.Status == UserStatusBlocked {
		g.denied(ctx, user, role, "blocked")
		return nil, newError(ErrAccountBlocked, "")
	}

	if !allowed.Allows(role) {
		g.denied(ctx, user, role, "role")
		return nil, newError(ErrForbidden, "", map[string]any{
			"role":    role,
			"allowed": allowed.Strings(),
		})
	}

	user.Role = role
	return user, nil
}

func (g *Guard) denied(ctx context.Context, user *User, role Role, reason string) {
	recordActivity(ctx, g.activity, g.logger, ActivityEvent{
		EventType: ActivityEventAuthorizationDenied,
		Actor:     ActorFromUser(user),
		UserID:    user.GetID(),
		Metadata: map[string]any{
			"role":   role,
			"reason": reason,
		},
	})
}
