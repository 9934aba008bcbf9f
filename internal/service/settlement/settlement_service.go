// Package settlement drives an authorized invoice to its terminal state:
// it books the staged offer with the inventory service, records the outcome
// and then captures or releases the held amount.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/airsettle/internal/domain"
	"github.com/Domenick1991/airsettle/internal/gateway"
	"github.com/Domenick1991/airsettle/internal/kafka"
	"github.com/Domenick1991/airsettle/internal/repository"
	"github.com/Domenick1991/airsettle/internal/tasks"
	"github.com/Domenick1991/airsettle/internal/webhook"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type SettlementUseCase interface {
	HandleNotification(ctx context.Context, n webhook.Notification) error
	Settle(ctx context.Context, invoiceID, paymentID string) (*domain.SettlementRecord, error)
}

type StagingStore interface {
	ClaimStagedBooking(ctx context.Context, invoiceID string) (*domain.StagedBooking, error)
}

type Inventory interface {
	Book(ctx context.Context, payload domain.BookingPayload) (*domain.Order, error)
}

type PaymentGateway interface {
	Capture(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error)
	Release(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error)
}

type ReferenceLookup interface {
	Airlines(ctx context.Context, codes []string) (map[string]domain.Airline, error)
	Airports(ctx context.Context, codes []string) (map[string]domain.Airport, error)
}

// CompensationQueue takes the work the saga could not finish inline: a
// capture or release the gateway refused, or a record the store refused.
type CompensationQueue interface {
	EnqueueCompensation(ctx context.Context, p tasks.CompensationPayload) error
	EnqueueSettlement(ctx context.Context, p tasks.SettlementPayload) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Service struct {
	staging   StagingStore
	records   repository.SettlementRepository
	inventory Inventory
	gateway   PaymentGateway
	reference ReferenceLookup

	queue              CompensationQueue
	producer           Producer
	settlementTopic    string
	notificationsTopic string
	inventoryTimeout   time.Duration
	gatewayTimeout     time.Duration
	log                *zap.Logger
}

type Option func(*Service)

func WithCompensationQueue(q CompensationQueue) Option {
	return func(s *Service) {
		s.queue = q
	}
}

func WithProducer(p Producer, settlementTopic, notificationsTopic string) Option {
	return func(s *Service) {
		s.producer = p
		s.settlementTopic = settlementTopic
		s.notificationsTopic = notificationsTopic
	}
}

func WithTimeouts(inventoryTimeout, gatewayTimeout time.Duration) Option {
	return func(s *Service) {
		s.inventoryTimeout = inventoryTimeout
		s.gatewayTimeout = gatewayTimeout
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

func NewService(
	staging StagingStore,
	records repository.SettlementRepository,
	inv Inventory,
	gw PaymentGateway,
	reference ReferenceLookup,
	opts ...Option,
) *Service {
	s := &Service{
		staging:   staging,
		records:   records,
		inventory: inv,
		gateway:   gw,
		reference: reference,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleNotification acts on an authenticated webhook. Only AUTHORIZE moves
// the saga; FAILED is recorded in the log since nothing is held.
func (s *Service) HandleNotification(ctx context.Context, n webhook.Notification) error {
	log := s.log.With(zap.String("invoice_id", n.InvoiceID), zap.String("transaction_status", n.TransactionStatus))

	switch n.TransactionStatus {
	case webhook.TransactionAuthorize:
		_, err := s.Settle(ctx, n.InvoiceID, n.PaymentID)
		return err
	case webhook.TransactionFailed:
		log.Info("payment failed at gateway", zap.String("payment_id", n.PaymentID), zap.String("event", n.Event))
		return nil
	default:
		log.Debug("notification ignored", zap.String("event", n.Event))
		return nil
	}
}

// Settle books the staged offer for an authorized invoice and writes its
// terminal record. It returns the existing record when the invoice was
// already settled, and nil when there is nothing staged to settle.
func (s *Service) Settle(ctx context.Context, invoiceID, paymentID string) (*domain.SettlementRecord, error) {
	// The saga must finish once the booking has been claimed, even if the
	// caller goes away.
	ctx = context.WithoutCancel(ctx)
	log := s.log.With(zap.String("invoice_id", invoiceID))

	existing, err := s.records.GetByInvoiceID(ctx, invoiceID)
	switch {
	case err == nil:
		log.Info("invoice already settled", zap.String("status", string(existing.Status)))
		return existing, nil
	case !errors.Is(err, repository.ErrSettlementNotFound):
		return nil, fmt.Errorf("load settlement %s: %w", invoiceID, err)
	}

	staged, err := s.staging.ClaimStagedBooking(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("claim staged booking %s: %w", invoiceID, err)
	}
	if staged == nil {
		log.Warn("no staged booking for authorized invoice, treating as settled or expired")
		return nil, nil
	}

	payload := BuildPayload(staged)
	order, bookErr := s.book(ctx, payload)
	out := decide(order, bookErr)

	record := &domain.SettlementRecord{
		InvoiceID:    invoiceID,
		PaymentID:    paymentID,
		Status:       out.status,
		InvoiceValue: staged.InvoiceValue,
		BookingType:  domain.BookingTypeFlight,
	}
	if out.status == domain.SettlementConfirmed {
		record.Order = s.enrich(ctx, out.order)
	} else {
		log.Warn("inventory booking failed", zap.String("reason", out.reason), zap.Error(bookErr), zap.ByteString("body", out.failureBody))
		record.FailureBody = out.failureBody
		record.BookingPayload = &payload
	}

	event := outcomeEvent(record, staged)
	inserted, err := s.records.Create(ctx, record)
	if err != nil {
		return s.deferRecord(ctx, log, record, out.operation, event, err)
	}
	if !inserted {
		log.Warn("settlement recorded concurrently, skipping compensation")
		return s.records.GetByInvoiceID(ctx, invoiceID)
	}
	log.Info("settlement recorded", zap.String("status", string(record.Status)), zap.Int64("id", record.ID))

	s.compensate(ctx, log, record, out.operation)
	s.publishOutcome(ctx, log, event)
	return record, nil
}

// deferRecord hands a decided outcome whose write failed to the worker,
// which retries the write and then runs the capture or release. The staged
// booking is already claimed, so without the queue the outcome is lost and
// the caller gets an error.
func (s *Service) deferRecord(
	ctx context.Context,
	log *zap.Logger,
	record *domain.SettlementRecord,
	operation string,
	event kafka.SettlementEvent,
	writeErr error,
) (*domain.SettlementRecord, error) {
	if s.queue == nil {
		log.Error("failed to record settlement, no capture or release issued",
			zap.String("status", string(record.Status)), zap.Error(writeErr))
		return nil, fmt.Errorf("record settlement %s: %w", record.InvoiceID, writeErr)
	}

	p := tasks.SettlementPayload{Record: *record, Operation: operation, Event: event}
	if err := s.queue.EnqueueSettlement(ctx, p); err != nil {
		log.Error("settlement neither recorded nor queued",
			zap.String("status", string(record.Status)), zap.NamedError("write_error", writeErr), zap.Error(err))
		return nil, fmt.Errorf("record settlement %s: %w", record.InvoiceID, errors.Join(writeErr, err))
	}
	log.Warn("settlement write failed, handed to worker",
		zap.String("status", string(record.Status)), zap.String("operation", operation), zap.Error(writeErr))
	return record, nil
}

func (s *Service) book(ctx context.Context, payload domain.BookingPayload) (*domain.Order, error) {
	if s.inventoryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.inventoryTimeout)
		defer cancel()
	}
	return s.inventory.Book(ctx, payload)
}

// enrich attaches display records for every carrier and airport in order.
// Lookup failures leave the corresponding map empty.
func (s *Service) enrich(ctx context.Context, order *domain.Order) *domain.OrderData {
	data := &domain.OrderData{
		Order:    *order,
		Airlines: map[string]domain.Airline{},
		Airports: map[string]domain.Airport{},
	}
	if s.reference == nil {
		return data
	}
	carriers, airports := order.ReferenceCodes()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := s.reference.Airlines(gctx, carriers)
		if err != nil {
			s.log.Warn("airline lookup failed", zap.Strings("codes", carriers), zap.Error(err))
			return nil
		}
		for code, a := range found {
			data.Airlines[code] = a
		}
		return nil
	})
	g.Go(func() error {
		found, err := s.reference.Airports(gctx, airports)
		if err != nil {
			s.log.Warn("airport lookup failed", zap.Strings("codes", airports), zap.Error(err))
			return nil
		}
		for code, a := range found {
			data.Airports[code] = a
		}
		return nil
	})
	_ = g.Wait()
	return data
}

// compensate issues the capture or release that follows a written record.
// A failed call is handed to the retry queue; the record stays as written.
func (s *Service) compensate(ctx context.Context, log *zap.Logger, record *domain.SettlementRecord, operation string) {
	callCtx := ctx
	if s.gatewayTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.gatewayTimeout)
		defer cancel()
	}

	key := domain.InvoiceKey(record.InvoiceID)
	var err error
	if operation == gateway.OperationCapture {
		_, err = s.gateway.Capture(callCtx, key, record.InvoiceValue)
	} else {
		_, err = s.gateway.Release(callCtx, key, record.InvoiceValue)
	}
	if err == nil {
		log.Info("gateway operation succeeded", zap.String("operation", operation), zap.Float64("amount", record.InvoiceValue))
		return
	}

	log.Error("gateway operation failed", zap.String("operation", operation), zap.Error(err))
	if s.queue != nil {
		p := tasks.CompensationPayload{
			InvoiceID: record.InvoiceID,
			Operation: operation,
			Amount:    record.InvoiceValue,
			Reason:    err.Error(),
		}
		if qerr := s.queue.EnqueueCompensation(ctx, p); qerr != nil {
			log.Error("failed to queue compensation", zap.Error(qerr))
		}
	}
	if s.producer != nil && s.settlementTopic != "" {
		event := kafka.NewSettlementEvent(kafka.EventCompensationFailed, record.InvoiceID)
		event.PaymentID = record.PaymentID
		event.Status = string(record.Status)
		event.InvoiceValue = record.InvoiceValue
		event.Operation = operation
		event.Error = err.Error()
		if perr := s.producer.Publish(ctx, s.settlementTopic, record.InvoiceID, event); perr != nil {
			log.Warn("failed to publish compensation event", zap.Error(perr))
		}
	}
}

func outcomeEvent(record *domain.SettlementRecord, staged *domain.StagedBooking) kafka.SettlementEvent {
	eventType := kafka.EventSettlementFailed
	if record.Status == domain.SettlementConfirmed {
		eventType = kafka.EventSettlementConfirmed
	}
	event := kafka.NewSettlementEvent(eventType, record.InvoiceID)
	event.PaymentID = record.PaymentID
	event.Status = string(record.Status)
	event.InvoiceValue = record.InvoiceValue
	if record.Order != nil {
		event.OrderID = record.Order.Data.ID
	}
	if len(staged.Travelers) > 0 {
		lead := staged.Travelers[0]
		event.Email = lead.Email
		event.FirstName = lead.FirstName
		event.LastName = lead.LastName
	}
	return event
}

func (s *Service) publishOutcome(ctx context.Context, log *zap.Logger, event kafka.SettlementEvent) {
	if s.producer == nil {
		return
	}
	for _, topic := range []string{s.settlementTopic, s.notificationsTopic} {
		if topic == "" {
			continue
		}
		if err := s.producer.Publish(ctx, topic, event.InvoiceID, event); err != nil {
			log.Warn("failed to publish settlement event", zap.String("topic", topic), zap.Error(err))
		}
	}
}

var _ SettlementUseCase = (*Service)(nil)
