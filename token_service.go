package academy

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// TokenConfig is the immutable key and lifetime configuration of the
// token service. Every kind has its own secret.
type TokenConfig struct {
	Issuer        string
	AccessSecret  string
	RefreshSecret string
	SetupSecret   string
	ResetSecret   string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SetupTTL      time.Duration
	ResetTTL      time.Duration
}

// Validate checks that every kind has a key and a positive lifetime.
func (c TokenConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.AccessSecret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.RefreshSecret, validation.Required, validation.Length(16, 0),
			validation.NotIn(c.AccessSecret).Error("must differ from the access secret")),
		validation.Field(&c.SetupSecret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.ResetSecret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.AccessTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.RefreshTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.SetupTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.ResetTTL, validation.Required, validation.Min(time.Second)),
	)
}

// TokenConfigFromConfig builds a TokenConfig from the application config.
func TokenConfigFromConfig(cfg Config) TokenConfig {
	return TokenConfig{
		Issuer:        cfg.GetIssuer(),
		AccessSecret:  cfg.GetAccessSecret(),
		RefreshSecret: cfg.GetRefreshSecret(),
		SetupSecret:   cfg.GetSetupSecret(),
		ResetSecret:   cfg.GetResetSecret(),
		AccessTTL:     cfg.GetAccessTTL(),
		RefreshTTL:    cfg.GetRefreshTTL(),
		SetupTTL:      cfg.GetSetupTTL(),
		ResetTTL:      cfg.GetResetTTL(),
	}
}

func (c TokenConfig) secret(kind TokenKind) []byte {
	switch kind {
	case TokenKindAccess:
		return []byte(c.AccessSecret)
	case TokenKindRefresh:
		return []byte(c.RefreshSecret)
	case TokenKindPasswordSetup:
		return []byte(c.SetupSecret)
	case TokenKindPasswordReset:
		return []byte(c.ResetSecret)
	default:
		return nil
	}
}

// TTL returns the configured lifetime for kind.
func (c TokenConfig) TTL(kind TokenKind) time.Duration {
	switch kind {
	case TokenKindAccess:
		return c.AccessTTL
	case TokenKindRefresh:
		return c.RefreshTTL
	case TokenKindPasswordSetup:
		return c.SetupTTL
	case TokenKindPasswordReset:
		return c.ResetTTL
	default:
		return 0
	}
}

// IssuedToken is a signed token plus the facts callers persist or return.
type IssuedToken struct {
	Token     string    `json:"token"`
	Kind      TokenKind `json:"kind"`
	ID        string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenService issues and verifies the signed credentials of every kind.
type TokenService interface {
	Issue(subject string, kind TokenKind, claims TokenClaims, ttl time.Duration) (IssuedToken, error)
	Verify(token string, expected TokenKind) (*JWTClaims, error)
	Refresh(ctx context.Context, refreshToken string) (IssuedToken, error)
}

// TokenServiceOption customizes the token service.
type TokenServiceOption func(*TokenServiceImpl)

// WithClock injects the time source used for iat, exp and verification.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger overrides the logger.
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	cfg        TokenConfig
	resolver   IdentityResolver
	now        func() time.Time
	logger     Logger
	decorators []ClaimsDecorator
}

var _ TokenService = (*TokenServiceImpl)(nil)

// NewTokenService creates a new TokenService instance. The resolver is
// used by Refresh to load the current role of the identity.
func NewTokenService(cfg TokenConfig, resolver IdentityResolver, opts ...TokenServiceOption) *TokenServiceImpl {
	ts := &TokenServiceImpl{
		cfg:      cfg,
		resolver: resolver,
		now:      time.Now,
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

// Config returns a copy of the token configuration.
func (ts *TokenServiceImpl) Config() TokenConfig {
	return ts.cfg
}

// Issue signs a token of the given kind. A zero ttl uses the configured
// lifetime of the kind. Only access tokens may carry a role.
func (ts *TokenServiceImpl) Issue(subject string, kind TokenKind, claims TokenClaims, ttl time.Duration) (IssuedToken, error) {
	if !kind.IsValid() {
		return IssuedToken{}, newError(ErrValidation, "unknown token kind", map[string]any{"kind": kind})
	}

	if strings.TrimSpace(subject) == "" {
		return IssuedToken{}, newError(ErrValidation, "token subject is required")
	}

	if claims.Role != "" {
		if kind != TokenKindAccess {
			return IssuedToken{}, newError(ErrValidation, "role claim is only allowed on access tokens", map[string]any{
				"kind": kind,
			})
		}
		if !claims.Role.IsValid() {
			return IssuedToken{}, newError(ErrValidation, "unknown role", map[string]any{"role": claims.Role})
		}
	}

	if ttl < 0 {
		return IssuedToken{}, newError(ErrValidation, "token ttl must not be negative")
	}
	if ttl == 0 {
		ttl = ts.cfg.TTL(kind)
	}

	now := ts.now()
	jwtClaims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.cfg.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:      claims.UserID,
		Kind:     kind,
		UserRole: string(claims.Role),
		Metadata: claims.Metadata,
	}

	ensureTokenID(&jwtClaims.RegisteredClaims, claims)

	if err := ts.decorate(kind, jwtClaims); err != nil {
		return IssuedToken{}, err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims)
	signed, err := token.SignedString(ts.cfg.secret(kind))
	if err != nil {
		return IssuedToken{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT").
			WithTextCode(TextCodeInternal).
			WithCode(goerrors.CodeInternal)
	}

	return IssuedToken{
		Token:     signed,
		Kind:      kind,
		ID:        jwtClaims.RegisteredClaims.ID,
		ExpiresAt: jwtClaims.Expires(),
	}, nil
}

// Verify parses a token with the key of the expected kind. Any failure is
// an InvalidToken error, expiry and kind mismatch carry their own text code.
func (ts *TokenServiceImpl) Verify(tokenString string, expected TokenKind) (*JWTClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, newError(ErrInvalidToken, "token is empty")
	}

	key := ts.cfg.secret(expected)
	if len(key) == 0 {
		return nil, newError(ErrInvalidToken, "unknown token kind", map[string]any{"kind": expected})
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.cfg.Issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Debug("token service: unexpected signing method %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, wrapError(ErrTokenExpired, err, map[string]any{"kind": expected})
		}
		return nil, wrapError(ErrInvalidToken, err, map[string]any{"kind": expected})
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, newError(ErrInvalidToken, "unable to decode token claims")
	}

	if claims.Kind != expected {
		return nil, newError(ErrTokenKindMismatch, "", map[string]any{
			"expected": expected,
			"actual":   claims.Kind,
		})
	}

	return claims, nil
}

// Refresh verifies a refresh token, loads the identity again and issues a
// new access token with the identity's current role.
func (ts *TokenServiceImpl) Refresh(ctx context.Context, refreshToken string) (IssuedToken, error) {
	claims, err := ts.Verify(refreshToken, TokenKindRefresh)
	if err != nil {
		return IssuedToken{}, err
	}

	if ts.resolver == nil {
		return IssuedToken{}, newError(ErrInternal, "token service has no identity resolver")
	}

	user, err := ts.resolver.ResolveIdentity(ctx, claims.UserID())
	if err != nil {
		if goerrors.IsNotFound(err) || repository.IsRecordNotFound(err) {
			return IssuedToken{}, wrapError(ErrIdentityNotFound, err, map[string]any{"subject": claims.Subject()})
		}
		return IssuedToken{}, err
	}

	if err := loginAllowed(user); err != nil {
		return IssuedToken{}, err
	}

	return ts.IssueAccess(user)
}

// IssueAccess issues an access token for user with its stored role.
func (ts *TokenServiceImpl) IssueAccess(user *User) (IssuedToken, error) {
	return ts.Issue(user.Email, TokenKindAccess, TokenClaims{
		UserID: user.ID.String(),
		Role:   user.Role,
	}, 0)
}

// IssueRefresh issues a refresh token for user. Refresh tokens carry no role.
func (ts *TokenServiceImpl) IssueRefresh(user *User) (IssuedToken, error) {
	return ts.Issue(user.Email, TokenKindRefresh, TokenClaims{
		UserID: user.ID.String(),
	}, 0)
}

func ensureTokenID(claims *jwt.RegisteredClaims, in TokenClaims) {
	if claims.ID != "" {
		return
	}
	if in.TokenID != "" {
		claims.ID = in.TokenID
		return
	}
	claims.ID = uuid.NewString()
}
