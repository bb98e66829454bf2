package academy_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	academy "github.com/goliatone/go-academy"
	"github.com/goliatone/go-academy/database"
)

const testPassword = "correct-horse-battery"

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	client, err := database.Open(ctx, database.FromDSN(dsn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = database.Migrate(ctx, client)
	require.NoError(t, err)
	return client.DB()
}

func newTestRepo(t *testing.T) (academy.RepositoryManager, *bun.DB) {
	t.Helper()
	db := newTestDB(t)
	return academy.NewRepositoryManager(db), db
}

func testTokenConfig() academy.TokenConfig {
	return academy.TokenConfig{
		Issuer:        "academy-test",
		AccessSecret:  strings.Repeat("a", 32),
		RefreshSecret: strings.Repeat("r", 32),
		SetupSecret:   strings.Repeat("s", 32),
		ResetSecret:   strings.Repeat("x", 32),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		SetupTTL:      72 * time.Hour,
		ResetTTL:      time.Hour,
	}
}

// testClock is a settable time source shared by services under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func seedUser(t *testing.T, repo academy.RepositoryManager, role academy.Role, status academy.UserStatus) *academy.User {
	t.Helper()

	hash, err := academy.HashPassword(testPassword)
	require.NoError(t, err)

	id := uuid.New()
	user, err := repo.Users().Create(context.Background(), &academy.User{
		ID:           id,
		Role:         role,
		Status:       status,
		FirstName:    "Test",
		LastName:     string(role),
		Email:        id.String()[:8] + "@example.com",
		PasswordHash: hash,
	})
	require.NoError(t, err)
	return user
}

func softDelete(t *testing.T, db *bun.DB, user *academy.User) {
	t.Helper()
	_, err := db.NewDelete().Model(user).WherePK().Exec(context.Background())
	require.NoError(t, err)
}

func setRole(t *testing.T, db *bun.DB, user *academy.User, role academy.Role) {
	t.Helper()
	_, err := db.NewUpdate().
		Model((*academy.User)(nil)).
		Set("user_role = ?", role).
		Where("id = ?", user.ID).
		Exec(context.Background())
	require.NoError(t, err)
}

func statusOf(err error) int {
	return academy.StatusFromError(academy.AsRichError(err))
}

// recordingSink collects activity events.
type recordingSink struct {
	mu     sync.Mutex
	events []academy.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event academy.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Types() []academy.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]academy.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// recordingNotifier keeps every notification and fails when err is set.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []academy.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg academy.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) Sent() []academy.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]academy.Notification(nil), n.sent...)
}
