// Package jwtware is a go-router middleware that pulls a bearer credential
// out of the request and hands it to an Authorizer. It knows nothing about
// token formats; signature checks and identity lookups live in the
// Authorizer.
package jwtware

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-router"
)

var ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")

// Principal is the identity an Authorizer resolves. It mirrors the methods
// of the academy User so this package does not import it.
type Principal interface {
	GetID() string
	GetRole() string
}

// Authorizer turns a raw token into a Principal or fails.
type Authorizer func(ctx context.Context, raw string) (Principal, error)

// ValidationListener is invoked after a token has been authorized.
type ValidationListener func(ctx router.Context, principal Principal) error

type Config struct {
	// Filter skips the middleware when it returns true
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler
	ContextKey     string
	// TokenLookup is a comma separated list of source:name pairs, e.g.
	// "header:Authorization,cookie:access_token". Sources are tried in order.
	TokenLookup string
	AuthScheme  string
	// Authorizer is required
	Authorizer Authorizer

	// ContextEnricher propagates the principal to the standard Go context.
	ContextEnricher func(c context.Context, principal Principal) context.Context

	ValidationListeners []ValidationListener
}

func New(config ...Config) router.MiddlewareFunc {
	cfg := GetDefaultConfig(config...)
	extractors := GetExtractors(cfg.TokenLookup, cfg.AuthScheme)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			principal, err := cfg.authorize(ctx, extractors)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, principal)
			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), principal))
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

func (cfg Config) authorize(ctx router.Context, extractors []JWTExtractor) (Principal, error) {
	raw := ""
	for _, extract := range extractors {
		if raw = extract(ctx); raw != "" {
			break
		}
	}
	if raw == "" {
		return nil, ErrJWTMissingOrMalformed
	}

	principal, err := cfg.Authorizer(ctx.Context(), raw)
	if err != nil {
		return nil, err
	}

	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(ctx, principal); err != nil {
			return nil, err
		}
	}
	return principal, nil
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Authorizer == nil {
		panic("ACADEMY: JWT middleware configuration: Authorizer is required.")
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			return c.Status(router.StatusUnauthorized).SendString("Invalid or expired token")
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = "header:" + router.HeaderAuthorization
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

// JWTExtractor returns the raw token found in one request source, or "".
type JWTExtractor func(c router.Context) string

// GetExtractors parses a TokenLookup string. Unknown sources are skipped.
func GetExtractors(tokenLookup string, authScheme string) []JWTExtractor {
	var extractors []JWTExtractor
	for _, pair := range strings.Split(tokenLookup, ",") {
		source, name, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)

		switch strings.TrimSpace(source) {
		case "header":
			extractors = append(extractors, fromHeader(name, strings.TrimSpace(authScheme)))
		case "query":
			extractors = append(extractors, func(c router.Context) string { return c.Query(name, "") })
		case "param":
			extractors = append(extractors, func(c router.Context) string { return c.Param(name) })
		case "cookie":
			extractors = append(extractors, func(c router.Context) string { return c.Cookies(name) })
		}
	}
	return extractors
}

// fromHeader accepts "<scheme> <token>" only, the scheme match is case
// insensitive.
func fromHeader(header, scheme string) JWTExtractor {
	return func(c router.Context) string {
		value := c.GetString(header, "")
		if scheme == "" || len(value) <= len(scheme)+1 {
			return ""
		}
		if !strings.EqualFold(value[:len(scheme)], scheme) || value[len(scheme)] != ' ' {
			return ""
		}
		return strings.TrimSpace(value[len(scheme):])
	}
}
