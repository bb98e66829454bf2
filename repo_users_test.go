package academy_test

import (
	"context"
	"sync"
	"testing"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	academy "github.com/goliatone/go-academy"
)

func TestUsers_ResolveIdentity(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, academy.RoleUser, academy.UserStatusActive)

	byID, err := repo.Users().ResolveIdentity(ctx, user.GetID())
	require.NoError(t, err)
	assert.Equal(t, user.Email, byID.Email)
	assert.NotNil(t, byID.CompletedTasks)

	byEmail, err := repo.Users().ResolveIdentity(ctx, "  "+user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	_, err = repo.Users().ResolveIdentity(ctx, "missing@example.com")
	assert.True(t, repository.IsRecordNotFound(err))

	_, err = repo.Users().ResolveIdentity(ctx, "")
	assert.Error(t, err)

	softDelete(t, db, user)
	_, err = repo.Users().ResolveIdentity(ctx, user.GetID())
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestUsers_AddCompletedTaskIsIdempotent(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, academy.RoleUser, academy.UserStatusActive)

	added, err := repo.Users().AddCompletedTask(ctx, user.ID, "item-1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.Users().AddCompletedTask(ctx, user.ID, "item-1")
	require.NoError(t, err)
	assert.False(t, added)

	added, err = repo.Users().AddCompletedTask(ctx, user.ID, "item-2")
	require.NoError(t, err)
	assert.True(t, added)

	tasks, err := repo.Users().CompletedTasks(ctx, user.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"item-1", "item-2"}, tasks)
}

func TestUsers_ConcurrentCompletedTasksUnion(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, academy.RoleUser, academy.UserStatusActive)

	ids := []string{"a", "b", "c", "d", "e"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	addedCount := 0
	for round := 0; round < 3; round++ {
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				added, err := repo.Users().AddCompletedTask(ctx, user.ID, id)
				assert.NoError(t, err)
				if added {
					mu.Lock()
					addedCount++
					mu.Unlock()
				}
			}(id)
		}
	}
	wg.Wait()

	tasks, err := repo.Users().CompletedTasks(ctx, user.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, tasks)
	assert.Equal(t, len(ids), addedCount, "each id is reported as added exactly once")
}

func TestUsers_UpdateStatusStampsBlockedAt(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, academy.RoleUser, academy.UserStatusActive)

	now := newTestClock().Now()
	_, err := repo.Users().UpdateStatus(ctx, user.ID, academy.UserStatusBlocked, academy.WithBlockedAt(&now))
	require.NoError(t, err)

	got, err := repo.Users().ResolveIdentity(ctx, user.GetID())
	require.NoError(t, err)
	assert.Equal(t, academy.UserStatusBlocked, got.Status)
	require.NotNil(t, got.BlockedAt)
	assert.True(t, got.BlockedAt.Equal(now))
}

func TestUsers_UpdateStatusExpectedStatus(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, academy.RoleUser, academy.UserStatusBlocked)

	_, err := repo.Users().UpdateStatus(ctx, user.ID, academy.UserStatusInProgress,
		academy.WithExpectedStatus(academy.UserStatusActive))
	require.Error(t, err)
	assert.Equal(t, 400, statusOf(err))
	assert.True(t, academy.HasTextCode(err, "INVALID_USER_STATE_TRANSITION"))

	got, err := repo.Users().ResolveIdentity(ctx, user.GetID())
	require.NoError(t, err)
	assert.Equal(t, academy.UserStatusBlocked, got.Status)

	_, err = repo.Users().UpdateStatus(ctx, user.ID, academy.UserStatusActive,
		academy.WithExpectedStatus(academy.UserStatusBlocked))
	require.NoError(t, err)

	_, err = repo.Users().UpdateStatus(ctx, uuid.New(), academy.UserStatusActive,
		academy.WithExpectedStatus(academy.UserStatusBlocked))
	require.Error(t, err)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestRepositoryManager_Validate(t *testing.T) {
	repo, _ := newTestRepo(t)
	assert.NoError(t, repo.Validate())
}
