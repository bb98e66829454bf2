package academy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goliatone/go-academy/middleware/jwtware"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteAuthenticator protects routes with the guard and owns the refresh
// cookie.
type RouteAuthenticator struct {
	guard        *Guard
	cfg          Config
	Debug        bool
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewRouteAuthenticator(guard *Guard, cfg Config) *RouteAuthenticator {
	a := &RouteAuthenticator{
		guard:  guard,
		cfg:    cfg,
		Logger: defLogger{},
	}
	a.ErrorHandler = a.defaultErrHandler
	return a
}

// ProtectedRoute returns a middleware that lets through requests whose
// access token resolves to a live identity with a role in allowed. Use
// AnyRole for routes open to every role.
func (a *RouteAuthenticator) ProtectedRoute(allowed RoleSet, listeners ...ValidationListener) router.MiddlewareFunc {
	cfg := jwtware.Config{
		ErrorHandler: a.authErrHandler,
		AuthScheme:   a.cfg.GetAuthScheme(),
		ContextKey:   a.contextKey(),
		TokenLookup:  a.cfg.GetTokenLookup(),
		Authorizer: func(ctx context.Context, raw string) (jwtware.Principal, error) {
			user, err := a.guard.Authorize(ctx, raw, allowed)
			if err != nil {
				return nil, err
			}
			return user, nil
		},
		ContextEnricher: ContextEnricherAdapter,
	}
	RegisterValidationListeners(&cfg, listeners...)
	return jwtware.New(cfg)
}

func (a *RouteAuthenticator) contextKey() string {
	if key := a.cfg.GetContextKey(); key != "" {
		return key
	}
	return DefaultContextKey
}

// SetRefreshCookie stores the refresh token in an http only cookie
func (a *RouteAuthenticator) SetRefreshCookie(c router.Context, token IssuedToken) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetRefreshCookieName(),
		Value:    token.Token,
		Expires:  token.ExpiresAt,
		HTTPOnly: true,
		Secure:   a.cfg.GetSecureCookies(),
		SameSite: "Strict",
	})
}

// RefreshCookie returns the refresh token sent as a cookie, if any
func (a *RouteAuthenticator) RefreshCookie(c router.Context) string {
	return c.Cookies(a.cfg.GetRefreshCookieName())
}

// ClearRefreshCookie expires the refresh cookie
func (a *RouteAuthenticator) ClearRefreshCookie(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetRefreshCookieName(),
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cfg.GetSecureCookies(),
		SameSite: "Strict",
	})
}

// authErrHandler maps the middleware errors to the guard taxonomy.
func (a *RouteAuthenticator) authErrHandler(c router.Context, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		err = wrapError(ErrUnauthenticated, err, map[string]any{"reason": "missing or malformed credential"})
	}
	return a.ErrorHandler(c, err)
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	richErr := AsRichError(err)
	status := StatusFromError(richErr)

	if status >= http.StatusInternalServerError {
		a.Logger.Error("request %s %s failed: %v", c.Method(), c.Path(), err)
	} else if a.Debug {
		a.Logger.Debug("request %s %s rejected: %s %s", c.Method(), c.Path(), richErr.Message, print.MaybePrettyJSON(richErr.Metadata))
	}

	return SendError(c, richErr)
}

// HandleError writes err as a failure envelope. It is the error handler
// of every route in the controller.
func (a *RouteAuthenticator) HandleError(c router.Context, err error) error {
	return a.ErrorHandler(c, err)
}
