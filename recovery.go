package academy

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	PasswordMinLength = 8
	PasswordMaxLength = 100
)

// passwordRules is the policy every new password must satisfy
var passwordRules = []validation.Rule{
	validation.Required,
	validation.Length(PasswordMinLength, PasswordMaxLength),
}

// RecoveryResult reports what a recovery operation did besides succeeding.
type RecoveryResult struct {
	Token    IssuedToken `json:"-"`
	Warnings []string    `json:"warnings,omitempty"`
}

// credentialIssuer creates the row backing a single use token and signs
// the token with the row id as jti.
type credentialIssuer struct {
	repo   RepositoryManager
	tokens *TokenServiceImpl
}

func (c credentialIssuer) issueTx(ctx context.Context, tx bun.IDB, user *User, kind TokenKind) (IssuedToken, error) {
	if !kind.IsSingleUse() {
		return IssuedToken{}, newError(ErrValidation, "token kind is not single use", map[string]any{"kind": kind})
	}

	if _, err := c.repo.CredentialTokens().SupersedeTx(ctx, tx, user.ID, kind); err != nil {
		return IssuedToken{}, storeError(err, "failed to supersede credential tokens")
	}

	id := uuid.New()
	issued, err := c.tokens.Issue(user.Email, kind, TokenClaims{
		UserID:  user.GetID(),
		TokenID: id.String(),
	}, 0)
	if err != nil {
		return IssuedToken{}, err
	}

	_, err = c.repo.CredentialTokens().CreateTx(ctx, tx, &CredentialToken{
		ID:        id,
		UserID:    user.ID,
		Email:     user.Email,
		Kind:      kind,
		Status:    CredentialTokenIssued,
		ExpiresAt: issued.ExpiresAt,
	})
	if err != nil {
		return IssuedToken{}, storeError(err, "failed to store credential token")
	}

	return issued, nil
}

// RecoveryFlow groups the password lifecycle operations behind one value.
type RecoveryFlow struct {
	initialize *InitializePasswordResetHandler
	finalize   *FinalizePasswordResetHandler
	change     *ChangePasswordHandler
	verify     *AccountVerificationHandler
}

// RecoveryOption customizes every handler of the flow.
type RecoveryOption func(*recoveryOptions)

type recoveryOptions struct {
	notifier Notifier
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

func WithRecoveryNotifier(n Notifier) RecoveryOption {
	return func(o *recoveryOptions) {
		o.notifier = n
	}
}

func WithRecoveryActivitySink(sink ActivitySink) RecoveryOption {
	return func(o *recoveryOptions) {
		o.activity = sink
	}
}

func WithRecoveryLogger(logger Logger) RecoveryOption {
	return func(o *recoveryOptions) {
		o.logger = logger
	}
}

func WithRecoveryClock(now func() time.Time) RecoveryOption {
	return func(o *recoveryOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func NewRecoveryFlow(repo RepositoryManager, tokens *TokenServiceImpl, cfg RecoveryConfig, opts ...RecoveryOption) *RecoveryFlow {
	o := &recoveryOptions{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	return &RecoveryFlow{
		initialize: NewInitializePasswordResetHandler(repo, tokens, cfg).
			WithNotifier(o.notifier).
			WithActivitySink(o.activity).
			WithLogger(o.logger),
		finalize: NewFinalizePasswordResetHandler(repo, tokens).
			WithActivitySink(o.activity).
			WithLogger(o.logger).
			WithClock(o.now),
		change: NewChangePasswordHandler(repo).
			WithActivitySink(o.activity).
			WithLogger(o.logger),
		verify: NewAccountVerificationHandler(repo, tokens).
			WithClock(o.now),
	}
}

// RequestReset issues a reset token for email and notifies the identity.
func (f *RecoveryFlow) RequestReset(ctx context.Context, email string) (RecoveryResult, error) {
	var result RecoveryResult
	err := f.initialize.Execute(ctx, InitializePasswordResetMessage{
		Email: email,
		Kind:  TokenKindPasswordReset,
		OnResponse: func(resp *InitializePasswordResetResponse) {
			result = resp.Result
		},
	})
	return result, err
}

// IssueSetupToken issues a setup token for a pending identity.
func (f *RecoveryFlow) IssueSetupToken(ctx context.Context, email string) (RecoveryResult, error) {
	var result RecoveryResult
	err := f.initialize.Execute(ctx, InitializePasswordResetMessage{
		Email: email,
		Kind:  TokenKindPasswordSetup,
		OnResponse: func(resp *InitializePasswordResetResponse) {
			result = resp.Result
		},
	})
	return result, err
}

// CreateInitialPassword consumes a setup token and activates the identity.
func (f *RecoveryFlow) CreateInitialPassword(ctx context.Context, token, password string) error {
	return f.finalize.Execute(ctx, FinalizePasswordResetMesasge{
		Kind:     TokenKindPasswordSetup,
		Token:    token,
		Password: password,
	})
}

// CompleteReset consumes a reset token and stores the new password.
func (f *RecoveryFlow) CompleteReset(ctx context.Context, token, password string) error {
	return f.finalize.Execute(ctx, FinalizePasswordResetMesasge{
		Kind:     TokenKindPasswordReset,
		Token:    token,
		Password: password,
	})
}

// ChangePassword replaces the password of an authenticated identity.
func (f *RecoveryFlow) ChangePassword(ctx context.Context, user *User, oldPassword, newPassword string) error {
	if user == nil {
		return newError(ErrUnauthenticated, "")
	}
	return f.change.Execute(ctx, ChangePasswordMessage{
		UserID:      user.ID,
		OldPassword: oldPassword,
		NewPassword: newPassword,
	})
}

// VerifyToken reports whether a single use token can still be consumed.
func (f *RecoveryFlow) VerifyToken(ctx context.Context, kind TokenKind, token string) (*AccountVerificationResponse, error) {
	var resp *AccountVerificationResponse
	err := f.verify.Execute(ctx, AccountVerificationMesage{
		Kind:  kind,
		Token: token,
		OnResponse: func(r *AccountVerificationResponse) {
			resp = r
		},
	})
	return resp, err
}

// asRichError passes rich errors through and wraps anything else as internal.
func asRichError(err error, message string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithTextCode(TextCodeInternal).
		WithCode(goerrors.CodeInternal)
}
