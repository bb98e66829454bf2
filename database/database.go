// Package database opens the persistence client and applies the embedded
// migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	academy "github.com/goliatone/go-academy"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

const migrationsLabel = "data/sql/migrations"

// DialectFor picks the dialect from the DSN scheme. Anything that is not a
// postgres URL is handed to sqlite.
func DialectFor(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// Settings is the persistence configuration. config.Config provides one
// through Persistence.
type Settings struct {
	DSN            string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
	// AutoMigrate off turns Migrate into a logged no-op
	AutoMigrate bool
}

// FromDSN returns settings for dsn with migrations enabled.
func FromDSN(dsn string) Settings {
	return Settings{DSN: dsn, AutoMigrate: true}
}

func (s Settings) GetDebug() bool            { return s.Debug }
func (s Settings) GetServer() string         { return s.DSN }
func (s Settings) GetOtelIdentifier() string { return s.OtelIdentifier }
func (s Settings) GetMigrationsEnabled() bool {
	return s.AutoMigrate
}

func (s Settings) GetDriver() string {
	if DialectFor(s.DSN) == DialectPostgres {
		return "pgx"
	}
	return sqliteshim.ShimName
}

func (s Settings) GetPingTimeout() time.Duration {
	if s.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return s.PingTimeout
}

type Option func(*options)

type options struct {
	logger academy.Logger
}

// WithLogger routes the persistence client logs to logger.
func WithLogger(logger academy.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open connects with cfg and registers the models and the dialect
// migrations on the returned client. Sqlite connections are limited to one
// open connection so transactions serialize.
func Open(ctx context.Context, cfg persistence.Config, opts ...Option) (*persistence.Client, error) {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	sqldb, err := sql.Open(cfg.GetDriver(), cfg.GetServer())
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", cfg.GetDriver(), err)
	}

	var dialect schema.Dialect
	switch DialectFor(cfg.GetServer()) {
	case DialectPostgres:
		dialect = pgdialect.New()
	default:
		sqldb.SetMaxOpenConns(1)
		dialect = sqlitedialect.New()
	}

	persistence.RegisterModel(
		(*academy.User)(nil),
		(*academy.UserCompletedTask)(nil),
		(*academy.CredentialToken)(nil),
		(*academy.Program)(nil),
		(*academy.Module)(nil),
		(*academy.ContentItem)(nil),
	)

	client, err := persistence.New(cfg, sqldb, dialect)
	if err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	if o.logger != nil {
		client.SetLogger(clientLogger{o.logger})
	}

	migrations, err := academy.MigrationsRoot()
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel(migrationsLabel),
		persistence.WithValidationTargets(DialectPostgres, DialectSQLite),
	)

	if err := ctx.Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Migrate checks that every dialect carries the same migrations, applies
// the pending ones for the connected dialect and returns their names.
func Migrate(ctx context.Context, client *persistence.Client) ([]string, error) {
	if err := client.ValidateDialects(ctx); err != nil {
		return nil, fmt.Errorf("database: validate dialects: %w", err)
	}

	if err := client.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("database: migrate: %w", err)
	}

	applied := []string{}
	if report := client.Report(); report != nil {
		for _, m := range report.Migrations {
			applied = append(applied, m.Name)
		}
	}
	return applied, nil
}

type clientLogger struct {
	academy.Logger
}

func (l clientLogger) Fatal(format string, args ...any) {
	l.Error(format, args...)
}
