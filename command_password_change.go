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

type ChangePasswordMessage struct {
	UserID      uuid.UUID `json:"-"`
	OldPassword string    `json:"oldPassword"`
	NewPassword string    `json:"newPassword"`
}

func (m ChangePasswordMessage) Type() string { return "user.password_change" }

func (m ChangePasswordMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.OldPassword, validation.Required),
		validation.Field(&m.NewPassword, append(passwordRules,
			validation.NotIn(m.OldPassword).Error("must differ from the current password"))...),
	)
}

type ChangePasswordHandler struct {
	repo      RepositoryManager
	passwords PasswordAuthenticator
	activity  ActivitySink
	logger    Logger
}

func NewChangePasswordHandler(repo RepositoryManager) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		repo:      repo,
		passwords: NewPasswordAuthenticator(),
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

func (h *ChangePasswordHandler) WithActivitySink(sink ActivitySink) *ChangePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *ChangePasswordHandler) WithLogger(logger Logger) *ChangePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	if err := event.Validate(); err != nil {
		return validationError(err, "invalid password change request")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().ResolveIdentity(ctx, event.UserID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return wrapError(ErrIdentityNotFound, err)
		}
		return asRichError(err, "could not retrieve identity")
	}

	if err := h.passwords.ComparePasswordAndHash(event.OldPassword, user.PasswordHash); err != nil {
		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Actor:     ActorFromUser(user),
			UserID:    user.GetID(),
			Metadata:  map[string]any{"reason": "wrong current password"},
		})
		return newError(ErrWrongPassword, "")
	}

	hash, err := h.passwords.HashPassword(event.NewPassword)
	if err != nil {
		return asRichError(err, "failed to hash password")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return h.repo.Users().ResetPasswordTx(ctx, tx, user.ID, hash)
	})
	if err != nil {
		return asRichError(err, "failed to change password")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor:     ActorFromUser(user),
		UserID:    user.GetID(),
	})

	return nil
}
