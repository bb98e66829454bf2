package academy

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CredentialTokens stores the single use setup and reset tokens.
type CredentialTokens interface {
	repository.Repository[*CredentialToken]
	// ConsumeTx flips an issued token to consumed. It fails with an
	// InvalidToken error when the token was already used, superseded or
	// belongs to another kind.
	ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, kind TokenKind) (*CredentialToken, error)
	// SupersedeTx consumes every outstanding token of kind for the user.
	SupersedeTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, kind TokenKind) (int64, error)
}

type credentialTokens struct {
	repository.Repository[*CredentialToken]
	now func() time.Time
}

var _ CredentialTokens = (*credentialTokens)(nil)

func NewCredentialTokensRepository(db *bun.DB) CredentialTokens {
	handlers := repository.ModelHandlers[*CredentialToken]{
		NewRecord: func() *CredentialToken {
			return &CredentialToken{}
		},
		GetID: func(record *CredentialToken) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *CredentialToken, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	}
	return &credentialTokens{
		Repository: repository.NewRepository(db, handlers),
		now:        time.Now,
	}
}

func (r *credentialTokens) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, kind TokenKind) (*CredentialToken, error) {
	now := r.now()
	res, err := tx.NewUpdate().
		Model((*CredentialToken)(nil)).
		Set("status = ?", CredentialTokenConsumed).
		Set("consumed_at = ?", now).
		Where("id = ?", id).
		Where("kind = ?", kind).
		Where("status = ?", CredentialTokenIssued).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if n == 0 {
		return nil, newError(ErrInvalidToken, "token was already used", map[string]any{
			"token_id": id.String(),
			"kind":     kind,
		})
	}

	record := &CredentialToken{}
	if err := tx.NewSelect().Model(record).Where("?TableAlias.id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *credentialTokens) SupersedeTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, kind TokenKind) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*CredentialToken)(nil)).
		Set("status = ?", CredentialTokenConsumed).
		Set("consumed_at = ?", r.now()).
		Where("user_id = ?", userID).
		Where("kind = ?", kind).
		Where("status = ?", CredentialTokenIssued).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
