package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Domenick1991/airsettle/internal/domain"
	"github.com/Domenick1991/airsettle/internal/gateway"
	"github.com/Domenick1991/airsettle/internal/kafka"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeRecordSettlement = "settlement:record"

// SettlementPayload is a decided outcome whose record could not be written
// when it was decided. The worker writes the record, then runs Operation
// and publishes Event.
type SettlementPayload struct {
	Record    domain.SettlementRecord `json:"record"`
	Operation string                  `json:"operation"`
	Event     kafka.SettlementEvent   `json:"event"`
}

func (p SettlementPayload) TaskID() string {
	return "record:" + p.Record.InvoiceID
}

func NewSettlementTask(p SettlementPayload, maxRetry int) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeRecordSettlement, b)
	opts := []asynq.Option{
		asynq.TaskID(p.TaskID()),
		asynq.MaxRetry(maxRetry),
		asynq.Queue(QueueCritical),
	}
	return task, opts, nil
}

func (q *Queue) EnqueueSettlement(ctx context.Context, p SettlementPayload) error {
	task, opts, err := NewSettlementTask(p, q.maxRetry)
	if err != nil {
		return err
	}
	return q.enqueue(ctx, task, p.TaskID(), opts)
}

type RecordWriter interface {
	Create(ctx context.Context, record *domain.SettlementRecord) (bool, error)
}

type CompensationEnqueuer interface {
	EnqueueCompensation(ctx context.Context, p CompensationPayload) error
}

// SettlementHandler finishes a settlement the API process could not record.
// The write is retried until it lands; the capture or release runs only for
// the delivery that inserted the record.
type SettlementHandler struct {
	records            RecordWriter
	gateway            Compensator
	queue              CompensationEnqueuer
	producer           Producer
	settlementTopic    string
	notificationsTopic string
	log                *zap.Logger
}

func NewSettlementHandler(
	records RecordWriter,
	gw Compensator,
	queue CompensationEnqueuer,
	producer Producer,
	settlementTopic, notificationsTopic string,
	log *zap.Logger,
) *SettlementHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SettlementHandler{
		records:            records,
		gateway:            gw,
		queue:              queue,
		producer:           producer,
		settlementTopic:    settlementTopic,
		notificationsTopic: notificationsTopic,
		log:                log,
	}
}

func (h *SettlementHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p SettlementPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid settlement payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.Record.InvoiceID == "" {
		return fmt.Errorf("settlement without invoice id: %w", asynq.SkipRetry)
	}
	if p.Operation != gateway.OperationCapture && p.Operation != gateway.OperationRelease {
		return fmt.Errorf("unknown settlement operation %q: %w", p.Operation, asynq.SkipRetry)
	}

	log := h.log.With(zap.String("invoice_id", p.Record.InvoiceID), zap.String("status", string(p.Record.Status)))
	record := p.Record

	inserted, err := h.records.Create(ctx, &record)
	if err != nil {
		log.Warn("settlement write failed again", zap.Error(err))
		return fmt.Errorf("record settlement %s: %w", record.InvoiceID, err)
	}
	if !inserted {
		log.Info("settlement already recorded, nothing to do")
		return nil
	}
	log.Info("deferred settlement recorded", zap.Int64("id", record.ID))

	h.compensate(ctx, log, &record, p.Operation)
	h.publish(ctx, log, p.Event)
	return nil
}

// compensate runs once per inserted record. A failure is handed to the
// compensation queue since a retry of this task would find the record and
// stop.
func (h *SettlementHandler) compensate(ctx context.Context, log *zap.Logger, record *domain.SettlementRecord, operation string) {
	key := domain.InvoiceKey(record.InvoiceID)
	var err error
	if operation == gateway.OperationCapture {
		_, err = h.gateway.Capture(ctx, key, record.InvoiceValue)
	} else {
		_, err = h.gateway.Release(ctx, key, record.InvoiceValue)
	}
	if err == nil {
		log.Info("gateway operation succeeded", zap.String("operation", operation))
		return
	}

	log.Error("gateway operation failed", zap.String("operation", operation), zap.Error(err))
	p := CompensationPayload{
		InvoiceID: record.InvoiceID,
		Operation: operation,
		Amount:    record.InvoiceValue,
		Reason:    err.Error(),
	}
	if qerr := h.queue.EnqueueCompensation(ctx, p); qerr != nil {
		log.Error("failed to queue compensation", zap.Error(qerr))
	}
	if h.producer != nil && h.settlementTopic != "" {
		event := kafka.NewSettlementEvent(kafka.EventCompensationFailed, record.InvoiceID)
		event.PaymentID = record.PaymentID
		event.Status = string(record.Status)
		event.InvoiceValue = record.InvoiceValue
		event.Operation = operation
		event.Error = err.Error()
		if perr := h.producer.Publish(ctx, h.settlementTopic, record.InvoiceID, event); perr != nil {
			log.Warn("failed to publish compensation event", zap.Error(perr))
		}
	}
}

func (h *SettlementHandler) publish(ctx context.Context, log *zap.Logger, event kafka.SettlementEvent) {
	if h.producer == nil || event.Type == "" {
		return
	}
	for _, topic := range []string{h.settlementTopic, h.notificationsTopic} {
		if topic == "" {
			continue
		}
		if err := h.producer.Publish(ctx, topic, event.InvoiceID, event); err != nil {
			log.Warn("failed to publish settlement event", zap.String("topic", topic), zap.Error(err))
		}
	}
}

var _ asynq.Handler = (*SettlementHandler)(nil)
