package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	EventSettlementConfirmed   = "settlement_confirmed"
	EventSettlementFailed      = "settlement_failed"
	EventCompensationFailed    = "compensation_failed"
	EventCompensationRecovered = "compensation_recovered"
)

// SettlementEvent reports what happened to one invoice.
type SettlementEvent struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	InvoiceID    string    `json:"invoice_id"`
	PaymentID    string    `json:"payment_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	InvoiceValue float64   `json:"invoice_value,omitempty"`
	OrderID      string    `json:"order_id,omitempty"`
	Email        string    `json:"email,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Operation    string    `json:"operation,omitempty"`
	Error        string    `json:"error,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func NewSettlementEvent(eventType, invoiceID string) SettlementEvent {
	return SettlementEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		InvoiceID:  invoiceID,
		OccurredAt: time.Now().UTC(),
	}
}

func DecodeSettlementEvent(msg kafka.Message) (SettlementEvent, error) {
	var event SettlementEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return SettlementEvent{}, fmt.Errorf("decode settlement event at offset %d: %w", msg.Offset, err)
	}
	return event, nil
}
