package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindAndStatus(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		kind   string
		status int
	}{
		{name: "nil", err: nil, kind: "", status: http.StatusOK},
		{name: "invalid input", err: fmt.Errorf("sessionId: %w", ErrInvalidInput), kind: "invalid_input", status: http.StatusBadRequest},
		{name: "unauthorized", err: ErrUnauthorized, kind: "unauthorized", status: http.StatusUnauthorized},
		{name: "not found", err: ErrNotFound, kind: "not_found", status: http.StatusNotFound},
		{name: "no invoice", err: ErrNoInvoice, kind: "no_invoice", status: http.StatusInternalServerError},
		{name: "timeout", err: fmt.Errorf("gateway: %w", context.DeadlineExceeded), kind: "timeout", status: http.StatusInternalServerError},
		{name: "canceled", err: context.Canceled, kind: "canceled", status: http.StatusInternalServerError},
		{name: "upstream", err: fmt.Errorf("status 502: %w", ErrUpstream), kind: "upstream", status: http.StatusInternalServerError},
		{name: "other", err: errors.New("boom"), kind: "internal", status: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, Kind(tc.err))
			assert.Equal(t, tc.status, HTTPStatus(tc.err))
		})
	}
}
