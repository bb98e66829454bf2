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

type InitializePasswordResetMessage struct {
	Email      string    `json:"email" example:"pepe.rone@example.com" doc:"Identity email."`
	Kind       TokenKind `json:"-"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

func (p InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.EmailFormat),
		validation.Field(&p.Kind, validation.In(TokenKindPasswordReset, TokenKindPasswordSetup)),
	)
}

type InitializePasswordResetResponse struct {
	User    *User
	Result  RecoveryResult
	Success bool
}

type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	issuer   credentialIssuer
	links    RecoveryConfig
	notifier Notifier
	activity ActivitySink
	logger   Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, tokens *TokenServiceImpl, links RecoveryConfig) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		issuer:   credentialIssuer{repo: repo, tokens: tokens},
		links:    links,
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithNotifier(n Notifier) *InitializePasswordResetHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	if event.Kind == "" {
		event.Kind = TokenKindPasswordReset
	}
	event.Email = strings.ToLower(strings.TrimSpace(event.Email))

	if err := event.Validate(); err != nil {
		return validationError(err, "invalid password reset request")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var (
		user   *User
		issued IssuedToken
	)

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().ResolveIdentityTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return newError(ErrIdentityNotFound, "no identity with that email", map[string]any{
					"email": event.Email,
				})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		if event.Kind == TokenKindPasswordSetup && user.Status != UserStatusPending {
			return newError(ErrConflict, "identity already has a password", map[string]any{
				"status": user.Status,
			})
		}

		issued, err = h.issuer.issueTx(ctx, tx, user, event.Kind)
		return err
	})

	if err != nil {
		return asRichError(err, "failed to initialize password reset")
	}

	resp := &InitializePasswordResetResponse{
		User:    user,
		Success: true,
		Result: RecoveryResult{
			Token: issued,
		},
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		Actor:     ActorFromUser(user),
		UserID:    user.GetID(),
		Metadata: map[string]any{
			"kind":     event.Kind,
			"token_id": issued.ID,
		},
	})

	dispatcher := notificationDispatcher{
		notifier: h.notifier,
		links:    h.links,
		activity: h.activity,
		logger:   h.logger,
	}
	resp.Result.Warnings = dispatcher.dispatch(ctx, user, issued)

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
