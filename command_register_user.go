package academy

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is used to parse numbers without a country prefix
const DefaultPhoneRegion = "US"

type RegisterUserMessage struct {
	Actor      *User  `json:"-"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phoneNumber"`
	Role       string `json:"role"`
	UseHashid  bool   `json:"-"`
	OnResponse func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&e.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&e.Email, validation.Required, is.EmailFormat),
		validation.Field(&e.Role, validation.In(roleStrings()...)),
		validation.Field(&e.Phone, validation.By(validPhone)),
	)
}

type RegisterUserResponse struct {
	User   *User
	Result RecoveryResult
}

// RegisterUserHandler creates a pending identity and sends it a password
// setup token.
type RegisterUserHandler struct {
	repo     RepositoryManager
	issuer   credentialIssuer
	links    RecoveryConfig
	notifier Notifier
	activity ActivitySink
	logger   Logger
}

func NewRegisterUserHandler(repo RepositoryManager, tokens *TokenServiceImpl, links RecoveryConfig) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:     repo,
		issuer:   credentialIssuer{repo: repo, tokens: tokens},
		links:    links,
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *RegisterUserHandler) WithNotifier(n Notifier) *RegisterUserHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	event.Email = strings.ToLower(strings.TrimSpace(event.Email))
	if event.Role == "" {
		event.Role = string(RoleUser)
	}

	if err := event.Validate(); err != nil {
		return validationError(err, "invalid user registration")
	}

	role := Role(event.Role)
	if event.Actor == nil || !event.Actor.Role.CanManage(role) {
		return newError(ErrForbidden, "role can not create this identity", map[string]any{
			"role": role,
		})
	}

	phone, err := normalizePhone(event.Phone)
	if err != nil {
		return validationError(validation.Errors{"phoneNumber": err}, "invalid user registration")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user := &User{
		FirstName:    strings.TrimSpace(event.FirstName),
		LastName:     strings.TrimSpace(event.LastName),
		Email:        event.Email,
		Phone:        phone,
		Role:         role,
		Status:       UserStatusPending,
		PasswordHash: RandomPasswordHash(),
	}
	if event.UseHashid {
		if id, err := hashid.NewUUID(event.Email); err == nil {
			user.ID = id
		}
	}

	var issued IssuedToken

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*User)(nil)).
			WhereAllWithDeleted().
			Where("?TableAlias.email = ?", user.Email).
			Exists(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not check email")
		}
		if exists {
			return newError(ErrConflict, "email is already registered", map[string]any{
				"email": user.Email,
			})
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user").
				WithTextCode(TextCodeConflict).
				WithCode(goerrors.CodeConflict)
		}

		issued, err = h.issuer.issueTx(ctx, tx, user, TokenKindPasswordSetup)
		return err
	})

	if err != nil {
		return asRichError(err, "user registration transaction failed")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventUserCreated,
		Actor:     ActorFromUser(event.Actor),
		UserID:    user.GetID(),
		ToStatus:  user.Status,
		Metadata:  map[string]any{"role": user.Role},
	})

	dispatcher := notificationDispatcher{
		notifier: h.notifier,
		links:    h.links,
		activity: h.activity,
		logger:   h.logger,
	}

	resp := &RegisterUserResponse{
		User: user,
		Result: RecoveryResult{
			Token:    issued,
			Warnings: dispatcher.dispatch(ctx, user, issued),
		},
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func roleStrings() []any {
	roles := GetAllRoles()
	out := make([]any, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

func validPhone(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	_, err := normalizePhone(s)
	return err
}

// normalizePhone returns the E.164 form of raw, empty stays empty.
func normalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil {
		return "", validation.NewError("validation_phone_invalid", "must be a valid phone number")
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", validation.NewError("validation_phone_invalid", "must be a valid phone number")
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
