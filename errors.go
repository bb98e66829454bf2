package academy

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	TextCodeUnauthenticated   = "UNAUTHENTICATED"
	TextCodeForbidden         = "FORBIDDEN"
	TextCodeWrongPassword     = "WRONG_PASSWORD"
	TextCodeInvalidToken      = "INVALID_TOKEN"
	TextCodeTokenExpired      = goerrors.TextCodeTokenExpired
	TextCodeTokenKindMismatch = "TOKEN_KIND_MISMATCH"
	TextCodeNotFound          = "NOT_FOUND"
	TextCodeValidation        = "VALIDATION_ERROR"
	TextCodeConflict          = "CONFLICT"
	TextCodeInternal          = "INTERNAL_ERROR"
	TextCodeAccountBlocked    = "ACCOUNT_BLOCKED"
	TextCodeAccountPending    = goerrors.TextCodeAccountPending
	TextCodeEmptyPassword     = goerrors.TextCodeEmptyPassword
)

// ErrUnauthenticated is returned when a request carries no usable credential.
var ErrUnauthenticated = goerrors.New("missing or invalid credential", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when the identity role is not allowed.
var ErrForbidden = goerrors.New("access denied", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

var ErrWrongPassword = goerrors.New("current password does not match", goerrors.CategoryAuthz).
	WithTextCode(TextCodeWrongPassword).
	WithCode(goerrors.CodeForbidden)

var ErrAccountBlocked = goerrors.New("account is blocked", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAccountBlocked).
	WithCode(goerrors.CodeForbidden)

var ErrAccountPending = goerrors.New("account has no password yet", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAccountPending).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidCredentials covers unknown identifier and bad password on login.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(goerrors.TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

var ErrInvalidToken = goerrors.New("invalid token", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeBadRequest)

var ErrTokenExpired = goerrors.New("token expired", goerrors.CategoryBadInput).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeBadRequest)

var ErrTokenKindMismatch = goerrors.New("token kind mismatch", goerrors.CategoryBadInput).
	WithTextCode(TextCodeTokenKindMismatch).
	WithCode(goerrors.CodeBadRequest)

var ErrNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(goerrors.CodeNotFound)

var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(goerrors.CodeNotFound)

var ErrValidation = goerrors.New("validation failed", goerrors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(goerrors.CodeBadRequest)

var ErrConflict = goerrors.New("record already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeConflict).
	WithCode(goerrors.CodeConflict)

var ErrInternal = goerrors.New("internal error", goerrors.CategoryInternal).
	WithTextCode(TextCodeInternal).
	WithCode(goerrors.CodeInternal)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when password and hash do not match
var ErrMismatchedHashAndPassword = goerrors.New("password does not match hash", goerrors.CategoryAuth).
	WithTextCode(goerrors.TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// newError clones a sentinel so metadata never leaks into the shared value.
func newError(base *goerrors.Error, message string, meta ...map[string]any) *goerrors.Error {
	clone := base.Clone()
	if message != "" {
		clone.Message = message
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta...)
	}
	return clone
}

// wrapError clones a sentinel and attaches source as the cause.
func wrapError(base *goerrors.Error, source error, meta ...map[string]any) *goerrors.Error {
	clone := newError(base, "", meta...)
	clone.Source = source
	return clone
}

// validationError converts ozzo validation errors into a rich error whose
// field messages end up in the envelope details.
func validationError(err error, message string) *goerrors.Error {
	if err == nil {
		return nil
	}
	verr := goerrors.FromOzzoValidation(err, message)
	verr.TextCode = TextCodeValidation
	verr.Code = goerrors.CodeBadRequest
	return verr
}

// HasTextCode reports whether err is a rich error carrying code.
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// storeError maps repository errors to the public taxonomy, missing records
// become NotFound and everything else is internal.
func storeError(err error, message string, meta ...map[string]any) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code != 0 && !repository.IsRecordNotFound(err) {
		return richErr
	}

	if repository.IsRecordNotFound(err) {
		return wrapError(ErrNotFound, err, meta...)
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithTextCode(TextCodeInternal).
		WithCode(goerrors.CodeInternal)
}
