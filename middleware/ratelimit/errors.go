package ratelimit

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// ErrLimitExceeded is handed to the error handler of a throttled request
var ErrLimitExceeded = goerrors.New("too many requests, retry later", goerrors.CategoryRateLimit).
	WithTextCode("RATE_LIMITED").
	WithCode(http.StatusTooManyRequests)
