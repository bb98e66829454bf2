package academy

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type UpdateUserStatusMessage struct {
	Actor      *User      `json:"-"`
	UserID     string     `json:"-"`
	Status     UserStatus `json:"status"`
	Reason     string     `json:"reason"`
	OnResponse func(user *User)
}

func (m UpdateUserStatusMessage) Type() string { return "user.status_update" }

func (m UpdateUserStatusMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.UserID, validation.Required, is.UUID),
		validation.Field(&m.Status, validation.Required,
			validation.In(UserStatusActive, UserStatusInProgress, UserStatusBlocked)),
		validation.Field(&m.Reason, validation.Length(0, 500)),
	)
}

// UpdateUserStatusHandler lets an administrator move an identity through
// its lifecycle. Pending identities only leave that state by setting their
// password, so pending is never a valid target here.
type UpdateUserStatusHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewUpdateUserStatusHandler(repo RepositoryManager) *UpdateUserStatusHandler {
	return &UpdateUserStatusHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *UpdateUserStatusHandler) WithActivitySink(sink ActivitySink) *UpdateUserStatusHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *UpdateUserStatusHandler) WithLogger(logger Logger) *UpdateUserStatusHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateUserStatusHandler) Execute(ctx context.Context, event UpdateUserStatusMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during status update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateUserStatusHandler) execute(ctx context.Context, event UpdateUserStatusMessage) error {
	if event.Actor == nil {
		return newError(ErrUnauthenticated, "")
	}

	event.UserID = strings.TrimSpace(event.UserID)
	if err := event.Validate(); err != nil {
		return validationError(err, "invalid status update")
	}

	if event.Actor.GetID() == event.UserID {
		return newError(ErrForbidden, "can not change your own status")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var updated *User
	pending := &pendingActivity{}
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().ResolveIdentityTx(ctx, tx, event.UserID)
		if err != nil {
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				return wrapError(ErrIdentityNotFound, err)
			}
			return storeError(err, "failed to load identity")
		}

		if !event.Actor.Role.CanManage(user.Role) {
			return newError(ErrForbidden, "", map[string]any{
				"role":   event.Actor.Role,
				"target": user.Role,
			})
		}

		sm := NewUserStateMachine(h.repo.Users(),
			WithStateMachineActivitySink(pending),
			WithStateMachineLogger(h.logger),
		)

		opts := []TransitionOption{WithTransitionTx(tx)}
		if event.Reason != "" {
			opts = append(opts, WithTransitionReason(event.Reason))
		}

		updated, err = sm.Transition(ctx, ActorFromUser(event.Actor), user, event.Status, opts...)
		return err
	})

	if err != nil {
		return asRichError(err, "failed to update status")
	}

	pending.flush(ctx, h.activity, h.logger)

	if event.OnResponse != nil {
		event.OnResponse(updated)
	}

	return nil
}
