// Package inventory calls the flight inventory service that turns a priced
// offer and a traveler list into a reservation.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Domenick1991/airsettle/config"
	"github.com/Domenick1991/airsettle/internal/domain"
)

const bookingPath = "/flights/flight-booking"

type FailureKind string

const (
	// FailureRejected means the service answered but did not create a booking.
	FailureRejected FailureKind = "rejected"
	// FailureTimeout means no answer arrived within the deadline.
	FailureTimeout FailureKind = "timeout"
	// FailureTransport covers connection errors.
	FailureTransport FailureKind = "transport"
	// FailureMalformed means a 201 whose body held no usable order.
	FailureMalformed FailureKind = "malformed"
)

// Error describes why a booking was not created.
type Error struct {
	Kind       FailureKind
	StatusCode int
	// Body is the response body, when the service sent one.
	Body json.RawMessage
	Err  error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("inventory booking %s: status %d", e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("inventory booking %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("inventory booking %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.InventoryConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout()},
	}
}

// Book asks the inventory service to create the reservation. It returns the
// order on HTTP 201 and an *Error in every other case.
func (c *Client) Book(ctx context.Context, payload domain.BookingPayload) (*domain.Order, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal booking payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+bookingPath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build booking request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode != http.StatusCreated {
		return nil, &Error{Kind: FailureRejected, StatusCode: resp.StatusCode, Body: jsonBody(body)}
	}

	var envelope struct {
		Order *domain.Order `json:"order"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &Error{Kind: FailureMalformed, StatusCode: resp.StatusCode, Body: jsonBody(body), Err: err}
	}
	if envelope.Order == nil {
		return nil, &Error{Kind: FailureMalformed, StatusCode: resp.StatusCode, Body: jsonBody(body)}
	}
	return envelope.Order, nil
}

func transportError(err error) *Error {
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: FailureTimeout, Err: err}
	}
	return &Error{Kind: FailureTransport, Err: err}
}

// jsonBody keeps body only if it is valid JSON, so it can be stored as is.
func jsonBody(body []byte) json.RawMessage {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !json.Valid(body) {
		return nil
	}
	return json.RawMessage(body)
}
