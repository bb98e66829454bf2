package academy

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// DefaultContextKey is the router locals key holding the request identity
const DefaultContextKey = "user"

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// FromRouterContext finds the user stored by the guard middleware, first in
// the router locals and then in the request context.
func FromRouterContext(ctx router.Context, key string) (*User, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	if user, ok := ctx.Locals(key).(*User); ok && user != nil {
		return user, true
	}
	return FromContext(ctx.Context())
}
