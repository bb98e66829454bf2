package academy

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type Auther struct {
	users        Users
	tokens       *TokenServiceImpl
	passwords    PasswordAuthenticator
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(users Users, tokens *TokenServiceImpl) *Auther {
	return &Auther{
		users:        users,
		tokens:       tokens,
		passwords:    NewPasswordAuthenticator(),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

func (s *Auther) WithPasswordAuthenticator(passwords PasswordAuthenticator) *Auther {
	if passwords != nil {
		s.passwords = passwords
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() *TokenServiceImpl {
	return s.tokens
}

// Login checks the password of identifier and issues an access and a
// refresh token. Unknown identifiers and bad passwords look the same to
// the caller.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*Session, error) {
	identifier = strings.TrimSpace(identifier)

	user, err := s.users.ResolveIdentity(ctx, identifier)
	if err != nil {
		if !repository.IsRecordNotFound(err) && !goerrors.IsNotFound(err) {
			s.logger.Error("Login resolve identity error: %v", err)
			return nil, storeError(err, "failed to resolve identity")
		}
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      "identity not found",
		})
		return nil, newError(ErrInvalidCredentials, "")
	}

	if err := s.passwords.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if terr := s.users.TrackAttemptedLogin(ctx, user); terr != nil {
			s.logger.Warn("Login track attempt error: %v", terr)
		}
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorFromUser(user), user.GetID(), map[string]any{
			"identifier": identifier,
			"error":      "password mismatch",
		})
		return nil, newError(ErrInvalidCredentials, "")
	}

	if err := loginAllowed(user); err != nil {
		s.logger.Warn("Login blocked due to user status %s", user.Status)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorFromUser(user), user.GetID(), map[string]any{
			"identifier": identifier,
			"status":     user.Status,
		})
		return nil, err
	}

	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, err
	}

	refresh, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return nil, err
	}

	if err := s.users.TrackSucccessfulLogin(ctx, user); err != nil {
		s.logger.Warn("Login track success error: %v", err)
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, ActorFromUser(user), user.GetID(), map[string]any{
		"identifier": identifier,
	})

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	}, nil
}

// Refresh exchanges a refresh token for a new access token
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (IssuedToken, error) {
	token, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		return IssuedToken{}, err
	}

	s.emitAuthEvent(ctx, ActivityEventAccessTokenRefreshed, SystemActor, "", map[string]any{
		"token_id": token.ID,
	})

	return token, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	})
}

// loginAllowed rejects identities that may not hold live credentials.
func loginAllowed(user *User) error {
	if user == nil || user.IsDeleted() {
		return newError(ErrIdentityNotFound, "")
	}

	switch user.Status {
	case UserStatusBlocked:
		return newError(ErrAccountBlocked, "", map[string]any{"status": user.Status})
	case UserStatusPending, "":
		return newError(ErrAccountPending, "", map[string]any{"status": UserStatusPending})
	default:
		return nil
	}
}
