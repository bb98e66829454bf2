package academy_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	academy "github.com/goliatone/go-academy"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := academy.HashPassword("securePassword123!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"), "bcrypt hash expected, got %q", hash)

	assert.NoError(t, academy.ComparePasswordAndHash("securePassword123!", hash))

	err = academy.ComparePasswordAndHash("securePassword123?", hash)
	assert.ErrorIs(t, err, academy.ErrMismatchedHashAndPassword)

	err = academy.ComparePasswordAndHash("securePassword123!", "not-a-hash")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, academy.ErrMismatchedHashAndPassword)
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := academy.HashPassword("")
	require.Error(t, err)
	assert.True(t, academy.HasTextCode(err, academy.TextCodeEmptyPassword))
}

func TestRandomPasswordHashIsUnguessable(t *testing.T) {
	first, second := academy.RandomPasswordHash(), academy.RandomPasswordHash()
	require.NotEmpty(t, first)
	assert.NotEqual(t, first, second)

	for _, guess := range []string{"", "password", "00000000-0000-0000-0000-000000000000"} {
		assert.Error(t, academy.ComparePasswordAndHash(guess, first))
	}
}

func TestPasswordAuthenticator(t *testing.T) {
	pa := academy.NewPasswordAuthenticator()

	hash, err := pa.HashPassword(testPassword)
	require.NoError(t, err)
	assert.NoError(t, pa.ComparePasswordAndHash(testPassword, hash))
	assert.Error(t, pa.ComparePasswordAndHash("nope", hash))
}
