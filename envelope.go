package academy

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Envelope is the body of every API response
type Envelope struct {
	Success    bool       `json:"success"`
	StatusCode int        `json:"statusCode"`
	Message    string     `json:"message"`
	Data       any        `json:"data,omitempty"`
	Error      *ErrorBody `json:"error,omitempty"`
}

// ErrorBody carries the machine readable part of a failure
type ErrorBody struct {
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// Success wraps data in a success envelope
func Success(status int, message string, data any) Envelope {
	if message == "" {
		message = http.StatusText(status)
	}
	return Envelope{
		Success:    true,
		StatusCode: status,
		Message:    message,
		Data:       data,
	}
}

// Failure maps err to a failure envelope. Errors that are not rich errors
// are reported as internal without leaking their text.
func Failure(err error) Envelope {
	richErr := AsRichError(err)
	status := StatusFromError(richErr)

	message := richErr.Message
	details := map[string]any{}
	if status >= http.StatusInternalServerError {
		message = ErrInternal.Message
	} else {
		for k, v := range richErr.Metadata {
			details[k] = v
		}
		if len(richErr.ValidationErrors) > 0 {
			details["fields"] = richErr.ValidationErrors
		}
	}

	if len(details) == 0 {
		details = nil
	}

	return Envelope{
		Success:    false,
		StatusCode: status,
		Message:    message,
		Error: &ErrorBody{
			Code:    TextCodeFromError(richErr),
			Details: details,
		},
	}
}

// AsRichError returns the rich error inside err, or wraps err as internal.
func AsRichError(err error) *goerrors.Error {
	if err == nil {
		return newError(ErrInternal, "")
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return wrapError(ErrInternal, err)
}

// StatusFromError returns the HTTP status for a rich error. An error
// without a code gets the status of its category.
func StatusFromError(err *goerrors.Error) int {
	if err.Code >= 400 && err.Code < 600 {
		return err.Code
	}

	switch err.Category {
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// TextCodeFromError returns the text code of err, derived from its status
// when it has none.
func TextCodeFromError(err *goerrors.Error) string {
	if err.TextCode != "" {
		return err.TextCode
	}

	switch StatusFromError(err) {
	case http.StatusUnauthorized:
		return TextCodeUnauthenticated
	case http.StatusForbidden:
		return TextCodeForbidden
	case http.StatusBadRequest:
		return TextCodeValidation
	case http.StatusNotFound:
		return TextCodeNotFound
	case http.StatusConflict:
		return TextCodeConflict
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		return TextCodeInternal
	}
}

// SendSuccess writes a success envelope
func SendSuccess(c router.Context, status int, message string, data any) error {
	return c.JSON(status, Success(status, message, data))
}

// SendError writes a failure envelope for err
func SendError(c router.Context, err error) error {
	env := Failure(err)
	return c.JSON(env.StatusCode, env)
}
