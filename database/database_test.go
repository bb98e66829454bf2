package database_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	academy "github.com/goliatone/go-academy"
	"github.com/goliatone/go-academy/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func memoryDSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, database.DialectPostgres, database.DialectFor("postgres://u:p@localhost/academy"))
	assert.Equal(t, database.DialectPostgres, database.DialectFor("PostgreSQL://localhost/academy"))
	assert.Equal(t, database.DialectSQLite, database.DialectFor("file:academy.db?cache=shared"))
	assert.Equal(t, database.DialectSQLite, database.DialectFor(":memory:"))
}

func TestSettings(t *testing.T) {
	s := database.FromDSN("postgres://u:p@localhost/academy")
	assert.Equal(t, "pgx", s.GetDriver())
	assert.Equal(t, "postgres://u:p@localhost/academy", s.GetServer())
	assert.Equal(t, 5*time.Second, s.GetPingTimeout())
	assert.True(t, s.GetMigrationsEnabled())

	s = database.Settings{DSN: ":memory:", PingTimeout: time.Second}
	assert.Equal(t, sqliteshim.ShimName, s.GetDriver())
	assert.Equal(t, time.Second, s.GetPingTimeout())
	assert.False(t, s.GetMigrationsEnabled())
}

func TestMigrate_SQLite(t *testing.T) {
	ctx := context.Background()
	client, err := database.Open(ctx, database.FromDSN(memoryDSN()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	applied, err := database.Migrate(ctx, client)
	require.NoError(t, err)
	assert.Len(t, applied, 2)

	again, err := database.Migrate(ctx, client)
	require.NoError(t, err)
	assert.Empty(t, again)

	db := client.DB()
	for _, model := range []any{
		(*academy.User)(nil),
		(*academy.UserCompletedTask)(nil),
		(*academy.CredentialToken)(nil),
		(*academy.Program)(nil),
		(*academy.Module)(nil),
		(*academy.ContentItem)(nil),
	} {
		n, err := db.NewSelect().Model(model).Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
}

func TestMigrate_Disabled(t *testing.T) {
	ctx := context.Background()
	client, err := database.Open(ctx, database.Settings{DSN: memoryDSN()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	applied, err := database.Migrate(ctx, client)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestModuleKindIsConstrained(t *testing.T) {
	ctx := context.Background()
	client, err := database.Open(ctx, database.FromDSN(memoryDSN()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = database.Migrate(ctx, client)
	require.NoError(t, err)

	db := client.DB()
	program := &academy.Program{ID: uuid.New(), Name: "Go"}
	_, err = db.NewInsert().Model(program).Exec(ctx)
	require.NoError(t, err)

	module := &academy.Module{ID: uuid.New(), ProgramID: program.ID, Name: "Quizzes", Kind: "quiz"}
	_, err = db.NewInsert().Model(module).Exec(ctx)
	assert.Error(t, err)

	module.Kind = "material"
	_, err = db.NewInsert().Model(module).Exec(ctx)
	assert.NoError(t, err)
}
