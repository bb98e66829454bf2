package jwtware_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-academy/middleware/jwtware"
)

type principal struct {
	id   string
	role string
}

func (p principal) GetID() string   { return p.id }
func (p principal) GetRole() string { return p.role }

var errDenied = errors.New("denied")

func authorizer(valid string) jwtware.Authorizer {
	return func(_ context.Context, raw string) (jwtware.Principal, error) {
		if raw != valid {
			return nil, errDenied
		}
		return principal{id: "u-1", role: "user"}, nil
	}
}

func passthrough(_ router.Context, err error) error {
	return err
}

func newMockContext() *router.MockContext {
	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background()).Maybe()
	return ctx
}

func noop(router.Context) error { return nil }

func TestJWTWare_BearerHeader(t *testing.T) {
	handler := jwtware.New(jwtware.Config{
		Authorizer:   authorizer("good-token"),
		ErrorHandler: passthrough,
	})(noop)

	ctx := newMockContext()
	ctx.HeadersM["Authorization"] = "Bearer good-token"
	ctx.On("GetString", "Authorization", "").Return("Bearer good-token")
	ctx.On("Locals", "user", mock.Anything).Return(nil)

	require.NoError(t, handler(ctx))
	assert.True(t, ctx.NextCalled)
}

func TestJWTWare_MissingHeader(t *testing.T) {
	handler := jwtware.New(jwtware.Config{
		Authorizer:   authorizer("good-token"),
		ErrorHandler: passthrough,
	})(noop)

	ctx := newMockContext()
	ctx.On("GetString", "Authorization", "").Return("")

	err := handler(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwtware.ErrJWTMissingOrMalformed)
	assert.False(t, ctx.NextCalled)
}

func TestJWTWare_WrongScheme(t *testing.T) {
	handler := jwtware.New(jwtware.Config{
		Authorizer:   authorizer("good-token"),
		ErrorHandler: passthrough,
	})(noop)

	for _, header := range []string{"Basic good-token", "Bearer", "Bearergood-token", "Bearer   "} {
		ctx := newMockContext()
		ctx.On("GetString", "Authorization", "").Return(header)

		err := handler(ctx)
		assert.ErrorIs(t, err, jwtware.ErrJWTMissingOrMalformed, header)
	}
}

func TestJWTWare_AuthorizerFailure(t *testing.T) {
	handler := jwtware.New(jwtware.Config{
		Authorizer:   authorizer("good-token"),
		ErrorHandler: passthrough,
	})(noop)

	ctx := newMockContext()
	ctx.On("GetString", "Authorization", "").Return("Bearer other-token")

	err := handler(ctx)
	assert.ErrorIs(t, err, errDenied)
	assert.False(t, ctx.NextCalled)
}

func TestJWTWare_CookieLookup(t *testing.T) {
	handler := jwtware.New(jwtware.Config{
		Authorizer:   authorizer("cookie-token"),
		ErrorHandler: passthrough,
		TokenLookup:  "header:Authorization,cookie:access_token",
	})(noop)

	ctx := newMockContext()
	ctx.On("GetString", "Authorization", "").Return("")
	ctx.CookiesM["access_token"] = "cookie-token"
	ctx.On("Cookies", "access_token").Return("cookie-token").Maybe()
	ctx.On("Locals", "user", mock.Anything).Return(nil)

	require.NoError(t, handler(ctx))
	assert.True(t, ctx.NextCalled)
}

func TestJWTWare_ValidationListenerCanReject(t *testing.T) {
	listenerErr := errors.New("listener")
	handler := jwtware.New(jwtware.Config{
		Authorizer:   authorizer("good-token"),
		ErrorHandler: passthrough,
		ValidationListeners: []jwtware.ValidationListener{
			func(_ router.Context, p jwtware.Principal) error {
				if p.GetRole() == "user" {
					return listenerErr
				}
				return nil
			},
		},
	})(noop)

	ctx := newMockContext()
	ctx.On("GetString", "Authorization", "").Return("Bearer good-token")

	assert.ErrorIs(t, handler(ctx), listenerErr)
}

type customPathMock struct {
	*router.MockContext
	pathOverride string
}

func (m *customPathMock) Path() string {
	return m.pathOverride
}

func TestJWTWare_FilterFunction(t *testing.T) {
	handler := jwtware.New(jwtware.Config{
		Authorizer: authorizer("good-token"),
		Filter: func(ctx router.Context) bool {
			return ctx.Path() == "/public"
		},
	})(noop)

	ctx := &customPathMock{
		MockContext:  router.NewMockContext(),
		pathOverride: "/public",
	}

	require.NoError(t, handler(ctx))
	assert.True(t, ctx.NextCalled)
}

func TestGetDefaultConfigRequiresAuthorizer(t *testing.T) {
	assert.Panics(t, func() {
		jwtware.GetDefaultConfig(jwtware.Config{})
	})

	cfg := jwtware.GetDefaultConfig(jwtware.Config{Authorizer: authorizer("x")})
	assert.Equal(t, "user", cfg.ContextKey)
	assert.Equal(t, "Bearer", cfg.AuthScheme)
	assert.Equal(t, "header:Authorization", cfg.TokenLookup)
}

func TestGetExtractorsSkipsUnknownSources(t *testing.T) {
	extractors := jwtware.GetExtractors("header:Authorization, bogus, cookie:jwt, form:x", "Bearer")
	assert.Len(t, extractors, 2)
}
