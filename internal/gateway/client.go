// Package gateway talks to the payment gateway's REST API: sessions,
// deferred-capture payments, status lookups and capture/release of held
// amounts.
package gateway

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
	"github.com/Domenick1991/airsettle/internal/apperr"
	"github.com/Domenick1991/airsettle/internal/domain"
)

const (
	OperationCapture = "capture"
	OperationRelease = "release"
)

// Error is a non-2xx answer from the gateway.
type Error struct {
	Op         string
	StatusCode int
	Body       []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s: status %d", e.Op, e.StatusCode)
}

func (e *Error) Unwrap() error { return apperr.ErrUpstream }

// Response is a gateway answer passed through to callers unchanged.
type Response struct {
	StatusCode int             `json:"status"`
	Body       json.RawMessage `json:"data"`
}

type ProcessingDetails struct {
	AutoCapture bool `json:"AutoCapture"`
}

type ExecutePaymentRequest struct {
	SessionID         string            `json:"SessionId"`
	InvoiceValue      float64           `json:"InvoiceValue"`
	ProcessingDetails ProcessingDetails `json:"ProcessingDetails"`
	CallBackURL       string            `json:"CallBackUrl"`
	ErrorURL          string            `json:"ErrorUrl"`
}

type ExecutePaymentResult struct {
	InvoiceID  domain.FlexString `json:"InvoiceId"`
	PaymentURL string            `json:"PaymentURL"`
}

type InvoiceTransaction struct {
	TransactionStatus string            `json:"TransactionStatus"`
	PaymentID         domain.FlexString `json:"PaymentId"`
}

type PaymentStatus struct {
	InvoiceID           domain.FlexString    `json:"InvoiceId"`
	InvoiceStatus       string               `json:"InvoiceStatus"`
	InvoiceValue        float64              `json:"InvoiceValue"`
	InvoiceTransactions []InvoiceTransaction `json:"InvoiceTransactions"`
	// Raw is the full gateway answer.
	Raw json.RawMessage `json:"-"`
}

type UpdatePaymentStatusRequest struct {
	Operation string         `json:"Operation"`
	Amount    float64        `json:"Amount,omitempty"`
	Key       string         `json:"Key"`
	KeyType   domain.KeyType `json:"KeyType"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func NewClient(cfg config.GatewayConfig, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout()},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) InitiateSession(ctx context.Context) (*Response, error) {
	status, body, err := c.post(ctx, "InitiateSession", "/v2/InitiateSession", struct{}{})
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: status, Body: body}, nil
}

func (c *Client) ExecutePayment(ctx context.Context, req ExecutePaymentRequest) (*ExecutePaymentResult, error) {
	_, body, err := c.post(ctx, "ExecutePayment", "/v2/ExecutePayment", req)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data *ExecutePaymentResult `json:"Data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode ExecutePayment response: %w", err)
	}
	if envelope.Data == nil {
		return &ExecutePaymentResult{}, nil
	}
	return envelope.Data, nil
}

func (c *Client) GetPaymentStatus(ctx context.Context, key domain.PaymentKey) (*PaymentStatus, error) {
	_, body, err := c.post(ctx, "GetPaymentStatus", "/v2/GetPaymentStatus", key)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data *PaymentStatus `json:"Data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode GetPaymentStatus response: %w", err)
	}
	status := envelope.Data
	if status == nil {
		status = &PaymentStatus{}
	}
	status.Raw = body
	return status, nil
}

func (c *Client) UpdatePaymentStatus(ctx context.Context, req UpdatePaymentStatusRequest) (json.RawMessage, error) {
	_, body, err := c.post(ctx, "UpdatePaymentStatus", "/v2/UpdatePaymentStatus", req)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Capture turns the hold on key into a transfer.
func (c *Client) Capture(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error) {
	return c.UpdatePaymentStatus(ctx, UpdatePaymentStatusRequest{
		Operation: OperationCapture,
		Amount:    amount,
		Key:       key.Key,
		KeyType:   key.KeyType,
	})
}

// Release cancels the hold on key.
func (c *Client) Release(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error) {
	return c.UpdatePaymentStatus(ctx, UpdatePaymentStatusRequest{
		Operation: OperationRelease,
		Amount:    amount,
		Key:       key.Key,
		KeyType:   key.KeyType,
	})
}

func (c *Client) post(ctx context.Context, op, path string, payload interface{}) (int, json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("gateway %s: %w", op, errors.Join(apperr.ErrUpstream, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, nil, &Error{Op: op, StatusCode: resp.StatusCode, Body: body}
	}
	if len(body) == 0 {
		body = []byte("null")
	}
	return resp.StatusCode, body, nil
}
