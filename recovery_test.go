package academy_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	academy "github.com/goliatone/go-academy"
)

type recoveryFixture struct {
	db       *bun.DB
	repo     academy.RepositoryManager
	tokens   *academy.TokenServiceImpl
	notifier *recordingNotifier
	sink     *recordingSink
	clock    *testClock
	flow     *academy.RecoveryFlow
	auther   *academy.Auther
}

func newRecoveryFixture(t *testing.T) *recoveryFixture {
	t.Helper()

	repo, db := newTestRepo(t)
	f := &recoveryFixture{
		db:       db,
		repo:     repo,
		notifier: &recordingNotifier{},
		sink:     &recordingSink{},
		clock:    newTestClock(),
	}
	f.tokens = academy.NewTokenService(testTokenConfig(), repo.Users(), academy.WithClock(f.clock.Now))
	f.flow = academy.NewRecoveryFlow(repo, f.tokens, academy.DefaultRecoveryConfig("https://academy.test"),
		academy.WithRecoveryNotifier(f.notifier),
		academy.WithRecoveryActivitySink(f.sink),
		academy.WithRecoveryClock(f.clock.Now),
	)
	f.auther = academy.NewAuthenticator(repo.Users(), f.tokens)
	return f
}

func TestRecovery_RequestResetUnknownEmail(t *testing.T) {
	f := newRecoveryFixture(t)

	_, err := f.flow.RequestReset(context.Background(), "nobody@example.com")
	require.Error(t, err)
	assert.Equal(t, 404, statusOf(err))
	assert.Empty(t, f.notifier.Sent())

	n, err := f.db.NewSelect().Model((*academy.CredentialToken)(nil)).Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "no token may be issued for an unknown email")
}

func TestRecovery_RequestResetInvalidEmail(t *testing.T) {
	f := newRecoveryFixture(t)

	_, err := f.flow.RequestReset(context.Background(), "not-an-email")
	require.Error(t, err)
	assert.Equal(t, 400, statusOf(err))
}

func TestRecovery_ResetRoundTrip(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()
	user := seedUser(t, f.repo, academy.RoleUser, academy.UserStatusActive)

	result, err := f.flow.RequestReset(ctx, strings.ToUpper(user.Email))
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, academy.TokenKindPasswordReset, result.Token.Kind)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, user.Email, sent[0].Email)
	link, err := url.Parse(sent[0].Link)
	require.NoError(t, err)
	assert.Equal(t, "/password/reset", link.Path)
	assert.Equal(t, result.Token.Token, link.Query().Get("token"))

	verified, err := f.flow.VerifyToken(ctx, academy.TokenKindPasswordReset, result.Token.Token)
	require.NoError(t, err)
	assert.True(t, verified.Valid())
	assert.Equal(t, user.Email, verified.Email)

	require.NoError(t, f.flow.CompleteReset(ctx, result.Token.Token, "a-brand-new-secret"))

	_, err = f.auther.Login(ctx, user.Email, testPassword)
	assert.Error(t, err, "old password must stop working")

	session, err := f.auther.Login(ctx, user.Email, "a-brand-new-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)

	verified, err = f.flow.VerifyToken(ctx, academy.TokenKindPasswordReset, result.Token.Token)
	require.NoError(t, err)
	assert.True(t, verified.Consumed)
	assert.False(t, verified.Valid())

	assert.Contains(t, f.sink.Types(), academy.ActivityEventPasswordResetRequest)
	assert.Contains(t, f.sink.Types(), academy.ActivityEventPasswordResetSuccess)
}

func TestRecovery_ReplayIsInvalidToken(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()
	user := seedUser(t, f.repo, academy.RoleUser, academy.UserStatusActive)

	result, err := f.flow.RequestReset(ctx, user.Email)
	require.NoError(t, err)

	require.NoError(t, f.flow.CompleteReset(ctx, result.Token.Token, "first-new-secret"))

	err = f.flow.CompleteReset(ctx, result.Token.Token, "second-new-secret")
	require.Error(t, err)
	assert.True(t, academy.HasTextCode(err, academy.TextCodeInvalidToken))
	assert.Equal(t, 400, statusOf(err))

	_, err = f.auther.Login(ctx, user.Email, "first-new-secret")
	assert.NoError(t, err, "replay must not overwrite the password")
}

func TestRecovery_NewRequestSupersedesOldToken(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()
	user := seedUser(t, f.repo, academy.RoleUser, academy.UserStatusActive)

	first, err := f.flow.RequestReset(ctx, user.Email)
	require.NoError(t, err)
	second, err := f.flow.RequestReset(ctx, user.Email)
	require.NoError(t, err)

	err = f.flow.CompleteReset(ctx, first.Token.Token, "first-new-secret")
	require.Error(t, err)
	assert.True(t, academy.HasTextCode(err, academy.TextCodeInvalidToken))

	assert.NoError(t, f.flow.CompleteReset(ctx, second.Token.Token, "second-new-secret"))
}

func TestRecovery_ConcurrentConsumeSucceedsOnce(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()
	user := seedUser(t, f.repo, academy.RoleUser, academy.UserStatusActive)

	result, err := f.flow.RequestReset(ctx, user.Email)
	require.NoError(t, err)

	const workers = 4
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.flow.CompleteReset(ctx, result.Token.Token, "concurrent-secret")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, academy.HasTextCode(err, academy.TextCodeInvalidToken), err.Error())
	}
	assert.Equal(t, 1, succeeded)
}

func TestRecovery_ExpiredToken(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()
	user := seedUser(t, f.repo, academy.RoleUser, academy.UserStatusActive)

	result, err := f.flow.RequestReset(ctx, user.Email)
	require.NoError(t, err)

	f.clock.Advance(testTokenConfig().ResetTTL + time.Minute)

	verified, err := f.flow.VerifyToken(ctx, academy.TokenKindPasswordReset, result.Token.Token)
	require.NoError(t, err)
	assert.True(t, verified.Expired)

	err = f.flow.CompleteReset(ctx, result.Token.Token, "too-late-secret")
	require.Error(t, err)
	assert.True(t, academy.HasTextCode(err, academy.TextCodeTokenExpired))
}

func TestRecovery_ResetTokenIsNotASetupToken(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()
	user := seedUser(t, f.repo, academy.RoleUser, academy.UserStatusActive)

	result, err := f.flow.RequestReset(ctx, user.Email)
	require.NoError(t, err)

	err = f.flow.CreateInitialPassword(ctx, result.Token.Token, "some-new-secret")
	require.Error(t, err)
	assert.Equal(t, 400, statusOf(err))
}

func TestRecovery_NotifierFailureIsWarning(t *testing.T) {
	f := newRecoveryFixture(t)
	f.notifier.err = errors.New("smtp down")
	ctx := context.Background()
	user := seedUser(t, f.repo, academy.RoleUser, academy.UserStatusActive)

	result, err := f.flow.RequestReset(ctx, user.Email)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "smtp down")
	assert.Contains(t, f.sink.Types(), academy.ActivityEventNotificationFailed)

	assert.NoError(t, f.flow.CompleteReset(ctx, result.Token.Token, "still-works-secret"))
}

func TestRecovery_ChangePassword(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()
	user := seedUser(t, f.repo, academy.RoleUser, academy.UserStatusActive)

	err := f.flow.ChangePassword(ctx, user, "wrong-old-password", "whatever-new-1")
	require.Error(t, err)
	assert.Equal(t, 403, statusOf(err))
	assert.True(t, academy.HasTextCode(err, academy.TextCodeWrongPassword))

	err = f.flow.ChangePassword(ctx, user, testPassword, "short")
	require.Error(t, err)
	assert.Equal(t, 400, statusOf(err))

	err = f.flow.ChangePassword(ctx, user, testPassword, testPassword)
	require.Error(t, err)
	assert.Equal(t, 400, statusOf(err))

	require.NoError(t, f.flow.ChangePassword(ctx, user, testPassword, "whatever-new-1"))

	_, err = f.auther.Login(ctx, user.Email, "whatever-new-1")
	assert.NoError(t, err)

	err = f.flow.ChangePassword(ctx, nil, testPassword, "whatever-new-2")
	assert.Equal(t, 401, statusOf(err))
}

func TestRegister_SetupFlowActivatesIdentity(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()
	admin := seedUser(t, f.repo, academy.RoleAdmin, academy.UserStatusActive)

	register := academy.NewRegisterUserHandler(f.repo, f.tokens, academy.DefaultRecoveryConfig("https://academy.test")).
		WithNotifier(f.notifier).
		WithActivitySink(f.sink)

	var resp *academy.RegisterUserResponse
	err := register.Execute(ctx, academy.RegisterUserMessage{
		Actor:     admin,
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "Grace@Example.com",
		Role:      string(academy.RoleUser),
		OnResponse: func(r *academy.RegisterUserResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "grace@example.com", resp.User.Email)
	assert.Equal(t, academy.UserStatusPending, resp.User.Status)
	assert.Equal(t, academy.TokenKindPasswordSetup, resp.Result.Token.Kind)

	_, err = f.auther.Login(ctx, "grace@example.com", "anything-at-all")
	require.Error(t, err)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Link, "/password/setup?token=")

	require.NoError(t, f.flow.CreateInitialPassword(ctx, resp.Result.Token.Token, "graces-first-secret"))

	session, err := f.auther.Login(ctx, "grace@example.com", "graces-first-secret")
	require.NoError(t, err)
	assert.Equal(t, academy.UserStatusActive, session.User.Status)
	assert.Equal(t, academy.RoleUser, session.User.Role)

	_, err = f.flow.IssueSetupToken(ctx, "grace@example.com")
	require.Error(t, err)
	assert.Equal(t, 409, statusOf(err))
}

func TestRegister_RejectsDuplicateAndEscalation(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()
	admin := seedUser(t, f.repo, academy.RoleAdmin, academy.UserStatusActive)
	register := academy.NewRegisterUserHandler(f.repo, f.tokens, academy.DefaultRecoveryConfig("https://academy.test"))

	err := register.Execute(ctx, academy.RegisterUserMessage{
		Actor:     admin,
		FirstName: "Dup",
		LastName:  "Licate",
		Email:     admin.Email,
	})
	require.Error(t, err)
	assert.Equal(t, 409, statusOf(err))

	err = register.Execute(ctx, academy.RegisterUserMessage{
		Actor:     admin,
		FirstName: "New",
		LastName:  "Admin",
		Email:     "new-admin@example.com",
		Role:      string(academy.RoleAdmin),
	})
	require.Error(t, err)
	assert.Equal(t, 403, statusOf(err))
}
