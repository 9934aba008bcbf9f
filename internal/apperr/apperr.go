package apperr

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrUpstream     = errors.New("upstream error")
	ErrNoInvoice    = errors.New("no invoice id returned by payment gateway")
)

func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"

	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"

	case errors.Is(err, ErrNotFound):
		return "not_found"

	case errors.Is(err, ErrNoInvoice):
		return "no_invoice"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	case errors.Is(err, ErrUpstream):
		return "upstream"

	default:
		return "internal"
	}
}

// HTTPStatus maps err to the status returned to external callers. Upstream
// failures and timeouts are reported as 500; the detail stays in the logs.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest

	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}
