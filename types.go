package academy

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// IdentityResolver loads the current state of an identity. Implementations
// must return a NotFound error for missing or soft deleted identities.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, identifier string) (*User, error)
}

// Config holds the settings the HTTP layer and token service need.
type Config interface {
	GetIssuer() string
	GetAccessSecret() string
	GetRefreshSecret() string
	GetSetupSecret() string
	GetResetSecret() string
	GetAccessTTL() time.Duration
	GetRefreshTTL() time.Duration
	GetSetupTTL() time.Duration
	GetResetTTL() time.Duration
	GetTokenLookup() string
	GetAuthScheme() string
	GetContextKey() string
	GetRefreshCookieName() string
	GetSecureCookies() bool
	GetPublicURL() string
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACADEMY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACADEMY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACADEMY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACADEMY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
