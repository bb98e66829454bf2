package academy

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	CredentialTokens() CredentialTokens
	Catalogs() Catalogs
}

type mngr struct {
	db               *bun.DB
	users            Users
	credentialTokens CredentialTokens
	catalogs         Catalogs
}

func NewRepositoryManager(db *bun.DB, opts ...UsersOption) RepositoryManager {
	return &mngr{
		db:               db,
		users:            NewUsersRepository(db, opts...),
		credentialTokens: NewCredentialTokensRepository(db),
		catalogs:         NewCatalogsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.credentialTokens == nil {
		return errors.New("repository credentialTokens should be initialized")
	}

	if m.catalogs == nil {
		return errors.New("repository catalogs should be initialized")
	}

	return nil
}

// MustValidate satisfies repository.Validator
func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) CredentialTokens() CredentialTokens {
	return m.credentialTokens
}

func (m mngr) Catalogs() Catalogs {
	return m.catalogs
}
