package academy

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMesasge struct {
	Kind     TokenKind `json:"-"`
	Token    string    `json:"token" doc:"Single use setup or reset token"`
	Password string    `json:"password" example:"some_secret_word" doc:"Password"`
}

func (m FinalizePasswordResetMesasge) Type() string { return "user.password_finalize" }

func (m FinalizePasswordResetMesasge) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Kind, validation.Required, validation.In(TokenKindPasswordReset, TokenKindPasswordSetup)),
		validation.Field(&m.Token, validation.Required),
		validation.Field(&m.Password, passwordRules...),
	)
}

// FinalizePasswordResetHandler consumes a setup or reset token and writes
// the new password in the same transaction.
type FinalizePasswordResetHandler struct {
	repo      RepositoryManager
	tokens    *TokenServiceImpl
	passwords PasswordAuthenticator
	activity  ActivitySink
	logger    Logger
	now       func() time.Time
}

func NewFinalizePasswordResetHandler(repo RepositoryManager, tokens *TokenServiceImpl) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:      repo,
		tokens:    tokens,
		passwords: NewPasswordAuthenticator(),
		activity:  noopActivitySink{},
		logger:    defLogger{},
		now:       time.Now,
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) WithClock(now func() time.Time) *FinalizePasswordResetHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMesasge) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMesasge) error {
	if err := event.Validate(); err != nil {
		return validationError(err, "invalid password request")
	}

	claims, err := h.tokens.Verify(event.Token, event.Kind)
	if err != nil {
		return err
	}

	tokenID, err := uuid.Parse(claims.TokenID())
	if err != nil {
		return wrapError(ErrInvalidToken, err, map[string]any{"reason": "token id"})
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return wrapError(ErrInvalidToken, err, map[string]any{"reason": "user id"})
	}

	passwordHash, err := h.passwords.HashPassword(event.Password)
	if err != nil {
		return asRichError(err, "failed to hash password")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var user *User
	pending := &pendingActivity{}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := h.repo.CredentialTokens().ConsumeTx(ctx, tx, tokenID, event.Kind)
		if err != nil {
			return err
		}

		if record.UserID != userID {
			return newError(ErrInvalidToken, "token does not belong to identity")
		}

		if !record.ExpiresAt.After(h.now()) {
			return newError(ErrTokenExpired, "")
		}

		user, err = h.repo.Users().ResolveIdentityTx(ctx, tx, userID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return wrapError(ErrIdentityNotFound, err)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve identity")
		}

		if err := h.repo.Users().ResetPasswordTx(ctx, tx, user.ID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
		}

		if event.Kind == TokenKindPasswordSetup && user.Status == UserStatusPending {
			sm := NewUserStateMachine(h.repo.Users(),
				WithStateMachineActivitySink(pending),
				WithStateMachineLogger(h.logger),
				WithStateMachineClock(h.now),
			)
			if _, err := sm.Transition(ctx, ActorFromUser(user), user, UserStatusActive,
				WithTransitionTx(tx),
				WithTransitionReason("initial password created"),
			); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return asRichError(err, "failed to finalize password reset")
	}

	pending.flush(ctx, h.activity, h.logger)
	h.recordActivity(ctx, event.Kind, user, tokenID)

	return nil
}

func (h *FinalizePasswordResetHandler) recordActivity(ctx context.Context, kind TokenKind, user *User, tokenID uuid.UUID) {
	if user == nil {
		return
	}

	eventType := ActivityEventPasswordResetSuccess
	if kind == TokenKindPasswordSetup {
		eventType = ActivityEventPasswordSetupSuccess
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: eventType,
		Actor:     ActorFromUser(user),
		UserID:    user.GetID(),
		Metadata: map[string]any{
			"token_id": tokenID.String(),
		},
		OccurredAt: h.now(),
	})
}
