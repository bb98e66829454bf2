package academy

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// AccountVerificationMesage asks whether a single use token is still
// usable, without consuming it.
type AccountVerificationMesage struct {
	Kind       TokenKind `json:"kind"`
	Token      string    `json:"token"`
	OnResponse func(a *AccountVerificationResponse)
}

type AccountVerificationResponse struct {
	Kind      TokenKind `json:"kind"`
	Email     string    `json:"email,omitempty"`
	Found     bool      `json:"found" doc:"Has the request been found?"`
	Expired   bool      `json:"expired" doc:"Has the request expired?"`
	Consumed  bool      `json:"consumed" doc:"Was the token already used?"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

// Valid reports whether the token can still be consumed
func (r *AccountVerificationResponse) Valid() bool {
	return r != nil && r.Found && !r.Expired && !r.Consumed
}

type AccountVerificationHandler struct {
	repo   RepositoryManager
	tokens *TokenServiceImpl
	now    func() time.Time
}

func NewAccountVerificationHandler(repo RepositoryManager, tokens *TokenServiceImpl) *AccountVerificationHandler {
	return &AccountVerificationHandler{
		repo:   repo,
		tokens: tokens,
		now:    time.Now,
	}
}

func (h *AccountVerificationHandler) WithClock(now func() time.Time) *AccountVerificationHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *AccountVerificationHandler) Execute(ctx context.Context, event AccountVerificationMesage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *AccountVerificationHandler) execute(ctx context.Context, event AccountVerificationMesage) error {
	if !event.Kind.IsSingleUse() {
		return newError(ErrValidation, "token kind is not single use", map[string]any{"kind": event.Kind})
	}

	resp := &AccountVerificationResponse{Kind: event.Kind}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	claims, err := h.tokens.Verify(event.Token, event.Kind)
	switch {
	case HasTextCode(err, TextCodeTokenExpired):
		resp.Expired = true
		h.respond(event, resp)
		return nil
	case err != nil:
		return err
	}

	tokenID, err := uuid.Parse(claims.TokenID())
	if err != nil {
		return wrapError(ErrInvalidToken, err)
	}

	record, err := h.repo.CredentialTokens().GetByID(ctx, tokenID.String())
	if err != nil {
		// an unknown token is part of the expected flow, not an application error
		if repository.IsRecordNotFound(err) {
			h.respond(event, resp)
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve verification request")
	}

	resp.Found = true
	resp.Email = record.Email
	resp.ExpiresAt = record.ExpiresAt
	resp.Consumed = record.Status != CredentialTokenIssued
	resp.Expired = !record.ExpiresAt.After(h.now())

	h.respond(event, resp)
	return nil
}

func (h *AccountVerificationHandler) respond(event AccountVerificationMesage, resp *AccountVerificationResponse) {
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
}
