// Package tasks holds the background jobs run by the worker process.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Domenick1991/airsettle/config"
	"github.com/Domenick1991/airsettle/internal/domain"
	"github.com/Domenick1991/airsettle/internal/gateway"
	"github.com/Domenick1991/airsettle/internal/kafka"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypeCompensate = "settlement:compensate"
	QueueCritical  = "critical"
)

// CompensationPayload is a capture or release that did not go through when
// the settlement was recorded.
type CompensationPayload struct {
	InvoiceID string  `json:"invoice_id"`
	Operation string  `json:"operation"`
	Amount    float64 `json:"amount"`
	Reason    string  `json:"reason,omitempty"`
}

// TaskID makes a second enqueue for the same invoice and operation a no-op.
func (p CompensationPayload) TaskID() string {
	return fmt.Sprintf("%s:%s", p.Operation, p.InvoiceID)
}

func NewCompensationTask(p CompensationPayload, maxRetry int) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeCompensate, b)
	opts := []asynq.Option{
		asynq.TaskID(p.TaskID()),
		asynq.MaxRetry(maxRetry),
		asynq.Queue(QueueCritical),
	}
	return task, opts, nil
}

type Queue struct {
	client   *asynq.Client
	maxRetry int
	log      *zap.Logger
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.QueueDB,
	}
}

func NewQueue(cfg config.RedisConfig, maxRetry int, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{client: asynq.NewClient(RedisOpt(cfg)), maxRetry: maxRetry, log: log}
}

func (q *Queue) EnqueueCompensation(ctx context.Context, p CompensationPayload) error {
	task, opts, err := NewCompensationTask(p, q.maxRetry)
	if err != nil {
		return err
	}
	return q.enqueue(ctx, task, p.TaskID(), opts)
}

// enqueue treats a task id that is already queued as success.
func (q *Queue) enqueue(ctx context.Context, task *asynq.Task, taskID string, opts []asynq.Option) error {
	info, err := q.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		q.log.Info("task already queued", zap.String("task_id", taskID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskID, err)
	}
	q.log.Info("task queued", zap.String("type", task.Type()), zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

type Compensator interface {
	Capture(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error)
	Release(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// CompensationHandler retries capture/release calls at the gateway.
type CompensationHandler struct {
	gateway  Compensator
	producer Producer
	topic    string
	log      *zap.Logger
}

func NewCompensationHandler(gw Compensator, producer Producer, topic string, log *zap.Logger) *CompensationHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CompensationHandler{gateway: gw, producer: producer, topic: topic, log: log}
}

func (h *CompensationHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p CompensationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid compensation payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.InvoiceID == "" {
		return fmt.Errorf("compensation without invoice id: %w", asynq.SkipRetry)
	}

	log := h.log.With(zap.String("invoice_id", p.InvoiceID), zap.String("operation", p.Operation))
	key := domain.InvoiceKey(p.InvoiceID)

	var err error
	switch p.Operation {
	case gateway.OperationCapture:
		_, err = h.gateway.Capture(ctx, key, p.Amount)
	case gateway.OperationRelease:
		_, err = h.gateway.Release(ctx, key, p.Amount)
	default:
		return fmt.Errorf("unknown compensation operation %q: %w", p.Operation, asynq.SkipRetry)
	}

	if err != nil {
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) && gwErr.StatusCode >= http.StatusBadRequest && gwErr.StatusCode < http.StatusInternalServerError {
			log.Error("gateway refused compensation", zap.Int("status", gwErr.StatusCode), zap.ByteString("body", gwErr.Body))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		log.Warn("compensation attempt failed", zap.Error(err))
		return err
	}

	log.Info("compensation completed")
	if h.producer != nil && h.topic != "" {
		event := kafka.NewSettlementEvent(kafka.EventCompensationRecovered, p.InvoiceID)
		event.Operation = p.Operation
		event.InvoiceValue = p.Amount
		if err := h.producer.Publish(ctx, h.topic, p.InvoiceID, event); err != nil {
			log.Warn("failed to publish compensation event", zap.Error(err))
		}
	}
	return nil
}

var _ asynq.Handler = (*CompensationHandler)(nil)
