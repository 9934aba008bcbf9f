// Package payment exposes the caller-facing payment operations: starting a
// gateway session, placing a deferred-capture payment that stages the
// booking, and the read-only status queries.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/airsettle/config"
	"github.com/Domenick1991/airsettle/internal/apperr"
	"github.com/Domenick1991/airsettle/internal/domain"
	"github.com/Domenick1991/airsettle/internal/gateway"
	"github.com/Domenick1991/airsettle/internal/repository"
	"go.uber.org/zap"
)

type PaymentUseCase interface {
	InitiateSession(ctx context.Context) (*gateway.Response, error)
	ExecutePayment(ctx context.Context, input ExecutePaymentInput) (*ExecutePaymentResult, error)
	PaymentStatus(ctx context.Context, key domain.PaymentKey) (json.RawMessage, error)
	BookingStatus(ctx context.Context, paymentID string) (*BookingStatusResult, error)
	Capture(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error)
	Release(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error)
}

type Gateway interface {
	InitiateSession(ctx context.Context) (*gateway.Response, error)
	ExecutePayment(ctx context.Context, req gateway.ExecutePaymentRequest) (*gateway.ExecutePaymentResult, error)
	GetPaymentStatus(ctx context.Context, key domain.PaymentKey) (*gateway.PaymentStatus, error)
	Capture(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error)
	Release(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error)
}

type Stager interface {
	StageBooking(ctx context.Context, b *domain.StagedBooking) error
}

// Settler drives an authorized invoice to its terminal state.
type Settler interface {
	Settle(ctx context.Context, invoiceID, paymentID string) (*domain.SettlementRecord, error)
}

type ExecutePaymentInput struct {
	SessionID          string            `json:"sessionId"`
	InvoiceValue       float64           `json:"invoiceValue"`
	FlightData         json.RawMessage   `json:"flightData"`
	Travelers          []domain.Traveler `json:"travelers"`
	TicketingAgreement json.RawMessage   `json:"ticketingAgreement,omitempty"`
}

func (in ExecutePaymentInput) Validate() error {
	if in.SessionID == "" || in.InvoiceValue <= 0 || isEmptyJSON(in.FlightData) || len(in.Travelers) == 0 {
		return fmt.Errorf("%w: sessionId, invoiceValue, flightData and travelers are required", apperr.ErrInvalidInput)
	}
	return nil
}

type ExecutePaymentResult struct {
	Success    bool   `json:"success"`
	PaymentURL string `json:"paymentUrl"`
	InvoiceID  string `json:"invoiceId"`
}

type BookingStatusResult struct {
	Status domain.BookingStatus `json:"status"`
	Order  json.RawMessage      `json:"order,omitempty"`
}

type PaymentService struct {
	gateway  Gateway
	staging  Stager
	records  repository.SettlementRepository
	frontend config.FrontendConfig

	settler         Settler
	reconcileOnPoll bool
	log             *zap.Logger
}

type PaymentServiceOption func(*PaymentService)

// WithReconciliation lets BookingStatus settle an authorized invoice that
// has no record yet, covering a webhook that never arrived.
func WithReconciliation(settler Settler) PaymentServiceOption {
	return func(s *PaymentService) {
		s.settler = settler
		s.reconcileOnPoll = settler != nil
	}
}

func WithLogger(log *zap.Logger) PaymentServiceOption {
	return func(s *PaymentService) {
		s.log = log
	}
}

func NewPaymentService(
	gw Gateway,
	staging Stager,
	records repository.SettlementRepository,
	frontend config.FrontendConfig,
	opts ...PaymentServiceOption,
) *PaymentService {
	s := &PaymentService{
		gateway:  gw,
		staging:  staging,
		records:  records,
		frontend: frontend,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PaymentService) InitiateSession(ctx context.Context) (*gateway.Response, error) {
	return s.gateway.InitiateSession(ctx)
}

// ExecutePayment places a hold for the invoice value and stages the booking
// under the invoice id the gateway assigns.
func (s *PaymentService) ExecutePayment(ctx context.Context, input ExecutePaymentInput) (*ExecutePaymentResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	res, err := s.gateway.ExecutePayment(ctx, gateway.ExecutePaymentRequest{
		SessionID:         input.SessionID,
		InvoiceValue:      input.InvoiceValue,
		ProcessingDetails: gateway.ProcessingDetails{AutoCapture: false},
		CallBackURL:       s.frontend.SuccessURL(),
		ErrorURL:          s.frontend.ErrorURL(),
	})
	if err != nil {
		return nil, err
	}
	invoiceID := res.InvoiceID.String()
	if invoiceID == "" {
		return nil, apperr.ErrNoInvoice
	}

	staged := &domain.StagedBooking{
		InvoiceID:          invoiceID,
		InvoiceValue:       input.InvoiceValue,
		FlightOffer:        input.FlightData,
		Travelers:          input.Travelers,
		TicketingAgreement: input.TicketingAgreement,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.staging.StageBooking(ctx, staged); err != nil {
		return nil, fmt.Errorf("stage booking for invoice %s: %w", invoiceID, err)
	}
	s.log.Info("booking staged", zap.String("invoice_id", invoiceID), zap.Float64("invoice_value", input.InvoiceValue))

	return &ExecutePaymentResult{Success: true, PaymentURL: res.PaymentURL, InvoiceID: invoiceID}, nil
}

func (s *PaymentService) PaymentStatus(ctx context.Context, key domain.PaymentKey) (json.RawMessage, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	status, err := s.gateway.GetPaymentStatus(ctx, key)
	if err != nil {
		return nil, err
	}
	return status.Raw, nil
}

// BookingStatus reports the settlement status for a payment. A stored
// record always wins over the gateway's view.
func (s *PaymentService) BookingStatus(ctx context.Context, paymentID string) (*BookingStatusResult, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("%w: paymentId is required", apperr.ErrInvalidInput)
	}

	status, err := s.gateway.GetPaymentStatus(ctx, domain.PaymentKey{Key: paymentID, KeyType: domain.KeyTypePaymentID})
	if err != nil {
		return nil, err
	}
	invoiceID := status.InvoiceID.String()
	if invoiceID == "" {
		return &BookingStatusResult{Status: domain.BookingStatusPending}, nil
	}

	if result, err := s.recordStatus(ctx, invoiceID); result != nil || err != nil {
		return result, err
	}

	derived := DeriveStatus(status.InvoiceTransactions)
	if derived == domain.BookingStatusAuthorized && s.reconcileOnPoll {
		return s.reconcile(ctx, invoiceID, paymentID), nil
	}
	return &BookingStatusResult{Status: derived}, nil
}

func (s *PaymentService) recordStatus(ctx context.Context, invoiceID string) (*BookingStatusResult, error) {
	rec, err := s.records.GetByInvoiceID(ctx, invoiceID)
	if errors.Is(err, repository.ErrSettlementNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settlement %s: %w", invoiceID, err)
	}
	return resultFromRecord(rec)
}

func (s *PaymentService) reconcile(ctx context.Context, invoiceID, paymentID string) *BookingStatusResult {
	log := s.log.With(zap.String("invoice_id", invoiceID))
	log.Info("authorized invoice without settlement, reconciling")

	rec, err := s.settler.Settle(ctx, invoiceID, paymentID)
	if err != nil {
		log.Warn("reconciliation failed", zap.Error(err))
		return &BookingStatusResult{Status: domain.BookingStatusAuthorized}
	}
	if rec == nil {
		return &BookingStatusResult{Status: domain.BookingStatusAuthorized}
	}
	result, err := resultFromRecord(rec)
	if err != nil {
		log.Warn("failed to render reconciled order", zap.Error(err))
		return &BookingStatusResult{Status: domain.BookingStatus(rec.Status)}
	}
	return result
}

func (s *PaymentService) Capture(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	return s.gateway.Capture(ctx, key, amount)
}

func (s *PaymentService) Release(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	return s.gateway.Release(ctx, key, amount)
}

// DeriveStatus maps gateway transaction statuses to a booking status. The
// first matching rule wins: any failure, then any completed payment, then
// an open authorization.
func DeriveStatus(transactions []gateway.InvoiceTransaction) domain.BookingStatus {
	seen := make(map[string]bool, len(transactions))
	for _, t := range transactions {
		seen[t.TransactionStatus] = true
	}
	switch {
	case seen["Failed"] || seen["Canceled"] || seen["Expired"]:
		return domain.BookingStatusFailed
	case seen["Paid"] || seen["Captured"]:
		return domain.BookingStatusConfirmed
	case seen["Authorize"]:
		return domain.BookingStatusAuthorized
	default:
		return domain.BookingStatusPending
	}
}

func resultFromRecord(rec *domain.SettlementRecord) (*BookingStatusResult, error) {
	order, err := rec.OrderJSON()
	if err != nil {
		return nil, fmt.Errorf("render order for %s: %w", rec.InvoiceID, err)
	}
	return &BookingStatusResult{Status: domain.BookingStatus(rec.Status), Order: order}, nil
}

func validateKey(key domain.PaymentKey) error {
	if key.Key == "" {
		return fmt.Errorf("%w: key is required", apperr.ErrInvalidInput)
	}
	switch key.KeyType {
	case domain.KeyTypeInvoiceID, domain.KeyTypePaymentID:
		return nil
	default:
		return fmt.Errorf("%w: keyType must be %s or %s", apperr.ErrInvalidInput, domain.KeyTypeInvoiceID, domain.KeyTypePaymentID)
	}
}

func isEmptyJSON(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

var _ PaymentUseCase = (*PaymentService)(nil)
