package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Domenick1991/airsettle/config"
	"github.com/Domenick1991/airsettle/internal/apperr"
	"github.com/Domenick1991/airsettle/internal/domain"
	"github.com/Domenick1991/airsettle/internal/gateway"
	"github.com/Domenick1991/airsettle/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) InitiateSession(ctx context.Context) (*gateway.Response, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Response), args.Error(1)
}

func (m *MockGateway) ExecutePayment(ctx context.Context, req gateway.ExecutePaymentRequest) (*gateway.ExecutePaymentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ExecutePaymentResult), args.Error(1)
}

func (m *MockGateway) GetPaymentStatus(ctx context.Context, key domain.PaymentKey) (*gateway.PaymentStatus, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PaymentStatus), args.Error(1)
}

func (m *MockGateway) Capture(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error) {
	args := m.Called(ctx, key, amount)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

func (m *MockGateway) Release(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error) {
	args := m.Called(ctx, key, amount)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

type MockStager struct {
	mock.Mock
}

func (m *MockStager) StageBooking(ctx context.Context, b *domain.StagedBooking) error {
	return m.Called(ctx, b).Error(0)
}

type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) Create(ctx context.Context, record *domain.SettlementRecord) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockSettlementRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*domain.SettlementRecord, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettlementRecord), args.Error(1)
}

type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) Settle(ctx context.Context, invoiceID, paymentID string) (*domain.SettlementRecord, error) {
	args := m.Called(ctx, invoiceID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettlementRecord), args.Error(1)
}

var frontend = config.FrontendConfig{BaseURL: "https://shop.example.com"}

func validInput() ExecutePaymentInput {
	return ExecutePaymentInput{
		SessionID:    "sess-1",
		InvoiceValue: 250,
		FlightData:   json.RawMessage(`{"id":"1"}`),
		Travelers:    []domain.Traveler{{FirstName: "A", LastName: "B"}},
	}
}

func TestPaymentService_ExecutePayment_Success(t *testing.T) {
	gw := &MockGateway{}
	staging := &MockStager{}
	service := NewPaymentService(gw, staging, &MockSettlementRepository{}, frontend)
	ctx := context.Background()

	gw.On("ExecutePayment", ctx, gateway.ExecutePaymentRequest{
		SessionID:         "sess-1",
		InvoiceValue:      250,
		ProcessingDetails: gateway.ProcessingDetails{AutoCapture: false},
		CallBackURL:       "https://shop.example.com/thank-you",
		ErrorURL:          "https://shop.example.com/payment-failed",
	}).Return(&gateway.ExecutePaymentResult{InvoiceID: "INV1", PaymentURL: "https://pay.example.com/INV1"}, nil).Once()
	staging.On("StageBooking", ctx, mock.MatchedBy(func(b *domain.StagedBooking) bool {
		return b.InvoiceID == "INV1" && b.InvoiceValue == 250 && string(b.FlightOffer) == `{"id":"1"}` && len(b.Travelers) == 1
	})).Return(nil).Once()

	res, err := service.ExecutePayment(ctx, validInput())

	require.NoError(t, err)
	assert.Equal(t, &ExecutePaymentResult{Success: true, PaymentURL: "https://pay.example.com/INV1", InvoiceID: "INV1"}, res)
	gw.AssertExpectations(t)
	staging.AssertExpectations(t)
}

func TestPaymentService_ExecutePayment_MissingFields(t *testing.T) {
	gw := &MockGateway{}
	service := NewPaymentService(gw, &MockStager{}, &MockSettlementRepository{}, frontend)

	cases := map[string]func(*ExecutePaymentInput){
		"session":   func(in *ExecutePaymentInput) { in.SessionID = "" },
		"value":     func(in *ExecutePaymentInput) { in.InvoiceValue = 0 },
		"flight":    func(in *ExecutePaymentInput) { in.FlightData = nil },
		"null":      func(in *ExecutePaymentInput) { in.FlightData = json.RawMessage("null") },
		"travelers": func(in *ExecutePaymentInput) { in.Travelers = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)

			res, err := service.ExecutePayment(context.Background(), in)

			assert.Nil(t, res)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}
	gw.AssertNotCalled(t, "ExecutePayment", mock.Anything, mock.Anything)
}

func TestPaymentService_ExecutePayment_NoInvoiceID(t *testing.T) {
	gw := &MockGateway{}
	staging := &MockStager{}
	service := NewPaymentService(gw, staging, &MockSettlementRepository{}, frontend)

	gw.On("ExecutePayment", mock.Anything, mock.Anything).Return(&gateway.ExecutePaymentResult{}, nil).Once()

	res, err := service.ExecutePayment(context.Background(), validInput())

	assert.Nil(t, res)
	assert.ErrorIs(t, err, apperr.ErrNoInvoice)
	staging.AssertNotCalled(t, "StageBooking", mock.Anything, mock.Anything)
}

func TestPaymentService_ExecutePayment_StagingError(t *testing.T) {
	gw := &MockGateway{}
	staging := &MockStager{}
	service := NewPaymentService(gw, staging, &MockSettlementRepository{}, frontend)

	gw.On("ExecutePayment", mock.Anything, mock.Anything).Return(&gateway.ExecutePaymentResult{InvoiceID: "INV1"}, nil).Once()
	staging.On("StageBooking", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()

	res, err := service.ExecutePayment(context.Background(), validInput())

	assert.Nil(t, res)
	assert.ErrorContains(t, err, "INV1")
}

func TestPaymentService_BookingStatus_Authorized(t *testing.T) {
	gw := &MockGateway{}
	records := &MockSettlementRepository{}
	service := NewPaymentService(gw, &MockStager{}, records, frontend)
	ctx := context.Background()

	gw.On("GetPaymentStatus", ctx, domain.PaymentKey{Key: "PAY1", KeyType: domain.KeyTypePaymentID}).Return(&gateway.PaymentStatus{
		InvoiceID:           "INV1",
		InvoiceTransactions: []gateway.InvoiceTransaction{{TransactionStatus: "Authorize", PaymentID: "PAY1"}},
	}, nil).Once()
	records.On("GetByInvoiceID", ctx, "INV1").Return(nil, repository.ErrSettlementNotFound).Once()

	res, err := service.BookingStatus(ctx, "PAY1")

	require.NoError(t, err)
	assert.Equal(t, &BookingStatusResult{Status: domain.BookingStatusAuthorized}, res)
}

func TestPaymentService_BookingStatus_RecordWins(t *testing.T) {
	gw := &MockGateway{}
	records := &MockSettlementRepository{}
	service := NewPaymentService(gw, &MockStager{}, records, frontend)
	ctx := context.Background()

	rec := &domain.SettlementRecord{
		InvoiceID: "INV1",
		Status:    domain.SettlementConfirmed,
		Order: &domain.OrderData{
			Order:    domain.Order{Data: domain.OrderBody{ID: "ORD1"}},
			Airlines: map[string]domain.Airline{},
			Airports: map[string]domain.Airport{},
		},
	}
	gw.On("GetPaymentStatus", ctx, mock.Anything).Return(&gateway.PaymentStatus{
		InvoiceID:           "INV1",
		InvoiceTransactions: []gateway.InvoiceTransaction{{TransactionStatus: "Failed"}},
	}, nil).Once()
	records.On("GetByInvoiceID", ctx, "INV1").Return(rec, nil).Once()

	res, err := service.BookingStatus(ctx, "PAY1")

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, res.Status)
	assert.Contains(t, string(res.Order), `"ORD1"`)
}

func TestPaymentService_BookingStatus_NoInvoice(t *testing.T) {
	gw := &MockGateway{}
	records := &MockSettlementRepository{}
	service := NewPaymentService(gw, &MockStager{}, records, frontend)

	gw.On("GetPaymentStatus", mock.Anything, mock.Anything).Return(&gateway.PaymentStatus{}, nil).Once()

	res, err := service.BookingStatus(context.Background(), "PAY1")

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPending, res.Status)
	records.AssertNotCalled(t, "GetByInvoiceID", mock.Anything, mock.Anything)
}

func TestPaymentService_BookingStatus_GatewayError(t *testing.T) {
	gw := &MockGateway{}
	service := NewPaymentService(gw, &MockStager{}, &MockSettlementRepository{}, frontend)

	gw.On("GetPaymentStatus", mock.Anything, mock.Anything).Return(nil, &gateway.Error{Op: "GetPaymentStatus", StatusCode: 503}).Once()

	res, err := service.BookingStatus(context.Background(), "PAY1")

	assert.Nil(t, res)
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}

func TestPaymentService_BookingStatus_MissingPaymentID(t *testing.T) {
	service := NewPaymentService(&MockGateway{}, &MockStager{}, &MockSettlementRepository{}, frontend)

	_, err := service.BookingStatus(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestPaymentService_BookingStatus_ReconcileOnPoll(t *testing.T) {
	gw := &MockGateway{}
	records := &MockSettlementRepository{}
	settler := &MockSettler{}
	service := NewPaymentService(gw, &MockStager{}, records, frontend, WithReconciliation(settler))
	ctx := context.Background()

	gw.On("GetPaymentStatus", ctx, mock.Anything).Return(&gateway.PaymentStatus{
		InvoiceID:           "INV1",
		InvoiceTransactions: []gateway.InvoiceTransaction{{TransactionStatus: "Authorize"}},
	}, nil).Once()
	records.On("GetByInvoiceID", ctx, "INV1").Return(nil, repository.ErrSettlementNotFound).Once()
	settler.On("Settle", ctx, "INV1", "PAY1").Return(&domain.SettlementRecord{
		InvoiceID:   "INV1",
		Status:      domain.SettlementFailed,
		FailureBody: json.RawMessage(`{"errors":[]}`),
	}, nil).Once()

	res, err := service.BookingStatus(ctx, "PAY1")

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusFailed, res.Status)
	assert.JSONEq(t, `{"errors":[]}`, string(res.Order))
	settler.AssertExpectations(t)
}

func TestPaymentService_BookingStatus_ReconcileFailureReportsAuthorized(t *testing.T) {
	gw := &MockGateway{}
	records := &MockSettlementRepository{}
	settler := &MockSettler{}
	service := NewPaymentService(gw, &MockStager{}, records, frontend, WithReconciliation(settler))

	gw.On("GetPaymentStatus", mock.Anything, mock.Anything).Return(&gateway.PaymentStatus{
		InvoiceID:           "INV1",
		InvoiceTransactions: []gateway.InvoiceTransaction{{TransactionStatus: "Authorize"}},
	}, nil).Once()
	records.On("GetByInvoiceID", mock.Anything, "INV1").Return(nil, repository.ErrSettlementNotFound).Once()
	settler.On("Settle", mock.Anything, "INV1", "PAY1").Return(nil, errors.New("database down")).Once()

	res, err := service.BookingStatus(context.Background(), "PAY1")

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusAuthorized, res.Status)
}

func TestPaymentService_PaymentStatus(t *testing.T) {
	gw := &MockGateway{}
	service := NewPaymentService(gw, &MockStager{}, &MockSettlementRepository{}, frontend)
	ctx := context.Background()

	raw := json.RawMessage(`{"IsSuccess":true,"Data":{"InvoiceId":1}}`)
	gw.On("GetPaymentStatus", ctx, domain.InvoiceKey("INV1")).Return(&gateway.PaymentStatus{Raw: raw}, nil).Once()

	got, err := service.PaymentStatus(ctx, domain.InvoiceKey("INV1"))
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(got))

	_, err = service.PaymentStatus(ctx, domain.PaymentKey{Key: "INV1", KeyType: "Bogus"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestPaymentService_CaptureAndRelease(t *testing.T) {
	gw := &MockGateway{}
	service := NewPaymentService(gw, &MockStager{}, &MockSettlementRepository{}, frontend)
	ctx := context.Background()
	key := domain.PaymentKey{Key: "PAY1", KeyType: domain.KeyTypePaymentID}

	gw.On("Capture", ctx, key, 0.0).Return(json.RawMessage(`{"captured":true}`), nil).Once()
	gw.On("Release", ctx, key, 12.5).Return(json.RawMessage(`{"released":true}`), nil).Once()

	captured, err := service.Capture(ctx, key, 0)
	require.NoError(t, err)
	assert.JSONEq(t, `{"captured":true}`, string(captured))

	released, err := service.Release(ctx, key, 12.5)
	require.NoError(t, err)
	assert.JSONEq(t, `{"released":true}`, string(released))

	_, err = service.Capture(ctx, domain.PaymentKey{}, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	gw.AssertExpectations(t)
}

func TestDeriveStatus(t *testing.T) {
	tx := func(statuses ...string) []gateway.InvoiceTransaction {
		out := make([]gateway.InvoiceTransaction, len(statuses))
		for i, s := range statuses {
			out[i] = gateway.InvoiceTransaction{TransactionStatus: s}
		}
		return out
	}

	assert.Equal(t, domain.BookingStatusPending, DeriveStatus(nil))
	assert.Equal(t, domain.BookingStatusPending, DeriveStatus(tx("InProgress")))
	assert.Equal(t, domain.BookingStatusAuthorized, DeriveStatus(tx("Authorize")))
	assert.Equal(t, domain.BookingStatusConfirmed, DeriveStatus(tx("Authorize", "Captured")))
	assert.Equal(t, domain.BookingStatusConfirmed, DeriveStatus(tx("Paid")))
	assert.Equal(t, domain.BookingStatusFailed, DeriveStatus(tx("Paid", "Canceled")))
	assert.Equal(t, domain.BookingStatusFailed, DeriveStatus(tx("Authorize", "Expired")))
	assert.Equal(t, domain.BookingStatusFailed, DeriveStatus(tx("Failed")))
}
