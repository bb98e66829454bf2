package academy

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
)

// EnsureSuperAdmin creates an active superAdmin with the given credentials
// unless an identity with that email already exists. The existing identity
// is returned untouched and created is false.
func EnsureSuperAdmin(ctx context.Context, users Users, email, password string) (user *User, created bool, err error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, false, newError(ErrValidation, "bootstrap email and password are required")
	}

	existing, err := users.GetByIdentifier(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !repository.IsRecordNotFound(err) {
		return nil, false, storeError(err, "failed to look up bootstrap identity")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, false, wrapError(ErrInternal, err)
	}

	user, err = users.Create(ctx, &User{
		Role:         RoleSuperAdmin,
		Status:       UserStatusActive,
		FirstName:    "Super",
		LastName:     "Admin",
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, false, storeError(err, "failed to create bootstrap identity")
	}
	return user, true, nil
}
