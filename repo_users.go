package academy

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ResetUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"reseted_at" = ?,
	"updated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

type Users interface {
	repository.Repository[*User]
	IdentityResolver

	ResolveIdentityTx(ctx context.Context, tx bun.IDB, identifier string) (*User, error)

	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error
	TrackSucccessfulLogin(ctx context.Context, user *User) error
	TrackSucccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error

	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error)

	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	CompletedTasks(ctx context.Context, id uuid.UUID) ([]string, error)
	CompletedTasksTx(ctx context.Context, tx bun.IDB, id uuid.UUID) ([]string, error)
	AddCompletedTask(ctx context.Context, id uuid.UUID, contentID string) (bool, error)
	AddCompletedTaskTx(ctx context.Context, tx bun.IDB, id uuid.UUID, contentID string) (bool, error)
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

type UsersOption func(*users)

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

// WithUsersClock overrides the time source for login and status stamps.
func WithUsersClock(now func() time.Time) UsersOption {
	return func(u *users) {
		if now != nil {
			u.now = now
		}
	}
}

// ResolveIdentity loads a live identity by id or email together with its
// completed tasks. Soft deleted rows are never returned.
func (a *users) ResolveIdentity(ctx context.Context, identifier string) (*User, error) {
	return a.ResolveIdentityTx(ctx, a.db, identifier)
}

func (a *users) ResolveIdentityTx(ctx context.Context, tx bun.IDB, identifier string) (*User, error) {
	user, err := a.GetByIdentifierTx(ctx, tx, identifier)
	if err != nil {
		return nil, err
	}

	tasks, err := a.CompletedTasksTx(ctx, tx, user.ID)
	if err != nil {
		return nil, err
	}
	user.CompletedTasks = tasks

	return user, nil
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	for _, column := range identifierColumns(identifier) {
		record := &User{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where("?TableAlias.? = ?", bun.Ident(column[0]), column[1]).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	now := a.now()
	res, err := a.Repository.RawTx(ctx, tx, ResetUserPasswordSQL, passwordHash, now, now, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) TrackSucccessfulLogin(ctx context.Context, user *User) error {
	return a.TrackSucccessfulLoginTx(ctx, a.db, user)
}

func (a *users) TrackSucccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	loggedInAt := a.now()
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, loggedInAt, user.ID).Exec(ctx)

	if err == nil {
		user.LoggedInAt = &loggedInAt
		user.LoginAttempts = 0
		user.LoginAttemptAt = nil
	}

	return err
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *User) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, user)
}

func (a *users) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	now := a.now()
	_, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("login_attempts = login_attempts + 1").
		Set("login_attempt_at = ?", now).
		Where("id = ?", user.ID).
		Exec(ctx)
	return err
}

func (a *users) UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status, opts...)
}

func (a *users) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error) {
	now := a.now()
	update := &statusUpdate{record: &User{
		ID:        id,
		Status:    status,
		UpdatedAt: &now,
	}}

	for _, opt := range opts {
		if opt != nil {
			opt(update)
		}
	}

	q := tx.NewUpdate().
		Model(update.record).
		Column("status", "blocked_at", "updated_at").
		Where("?TableAlias.id = ?", id)
	if update.expected != "" {
		q = q.Where("?TableAlias.status = ?", update.expected)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, a.missedStatusUpdate(ctx, tx, id, update.expected)
	}

	record := &User{}
	if err := tx.NewSelect().Model(record).Where("?TableAlias.id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// missedStatusUpdate explains an update that touched no row: either the
// identity is gone or its status moved away from the expected one.
func (a *users) missedStatusUpdate(ctx context.Context, tx bun.IDB, id uuid.UUID, expected UserStatus) error {
	notFound := repository.NewRecordNotFound().WithMetadata(map[string]any{"id": id.String()})
	if expected == "" {
		return notFound
	}

	current := &User{}
	if err := tx.NewSelect().Model(current).Column("status").Where("?TableAlias.id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound
		}
		return err
	}
	return newError(ErrInvalidTransition, "status changed concurrently", map[string]any{
		"expected": expected,
		"current":  current.Status,
	})
}

func (a *users) CompletedTasks(ctx context.Context, id uuid.UUID) ([]string, error) {
	return a.CompletedTasksTx(ctx, a.db, id)
}

func (a *users) CompletedTasksTx(ctx context.Context, tx bun.IDB, id uuid.UUID) ([]string, error) {
	var rows []UserCompletedTask
	err := tx.NewSelect().
		Model(&rows).
		Where("?TableAlias.user_id = ?", id).
		OrderExpr("?TableAlias.created_at ASC, ?TableAlias.content_id ASC").
		Scan(ctx)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, err
	}

	tasks := make([]string, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.ContentID)
	}
	return tasks, nil
}

func (a *users) AddCompletedTask(ctx context.Context, id uuid.UUID, contentID string) (bool, error) {
	return a.AddCompletedTaskTx(ctx, a.db, id, contentID)
}

// AddCompletedTaskTx inserts the pair and reports whether it was new. The
// primary key turns concurrent or repeated inserts into a set union.
func (a *users) AddCompletedTaskTx(ctx context.Context, tx bun.IDB, id uuid.UUID, contentID string) (bool, error) {
	now := a.now()
	res, err := tx.NewInsert().
		Model(&UserCompletedTask{
			UserID:    id,
			ContentID: contentID,
			CreatedAt: &now,
		}).
		On("CONFLICT (user_id, content_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type statusUpdate struct {
	record   *User
	expected UserStatus
}

// StatusUpdateOption adjusts a status update before it is stored.
type StatusUpdateOption func(*statusUpdate)

// WithBlockedAt sets the BlockedAt timestamp during a status transition.
func WithBlockedAt(at *time.Time) StatusUpdateOption {
	return func(u *statusUpdate) {
		u.record.BlockedAt = at
	}
}

// WithExpectedStatus only updates a row still holding status. A row that
// moved on is left alone and the update fails with ErrInvalidTransition.
func WithExpectedStatus(status UserStatus) StatusUpdateOption {
	return func(u *statusUpdate) {
		u.expected = status
	}
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	record.Email = strings.ToLower(strings.TrimSpace(record.Email))
	record.EnsureStatus()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

// identifierColumns maps an identifier to the columns it may match, in
// lookup order.
func identifierColumns(identifier string) [][2]string {
	identifier = strings.TrimSpace(identifier)
	var columns [][2]string
	if _, err := uuid.Parse(identifier); err == nil {
		columns = append(columns, [2]string{"id", identifier})
	}
	if _, err := mail.ParseAddress(identifier); err == nil {
		columns = append(columns, [2]string{"email", strings.ToLower(identifier)})
	}
	return columns
}
