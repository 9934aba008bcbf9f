package domain

import (
	"encoding/json"
	"time"
)

type SettlementStatus string

const (
	SettlementConfirmed SettlementStatus = "CONFIRMED"
	SettlementFailed    SettlementStatus = "FAILED"
)

// BookingStatus is the coarse status reported to a polling caller.
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "PENDING"
	BookingStatusAuthorized BookingStatus = "AUTHORIZED"
	BookingStatusConfirmed  BookingStatus = "CONFIRMED"
	BookingStatusFailed     BookingStatus = "FAILED"
)

// SettlementRecord is the terminal outcome for one invoice. It is written
// once and never updated.
type SettlementRecord struct {
	ID           int64            `json:"id,omitempty"`
	InvoiceID    string           `json:"invoice_id"`
	PaymentID    string           `json:"payment_id,omitempty"`
	Status       SettlementStatus `json:"status"`
	InvoiceValue float64          `json:"invoice_value"`
	BookingType  BookingType      `json:"booking_type"`
	// Order is set on CONFIRMED records.
	Order *OrderData `json:"order,omitempty"`
	// FailureBody is the inventory service's response body on FAILED
	// records, when it sent one.
	FailureBody json.RawMessage `json:"failure_body,omitempty"`
	// BookingPayload is the request that was attempted, kept on FAILED
	// records for diagnosis.
	BookingPayload *BookingPayload `json:"booking_payload,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// OrderJSON returns what callers see as the record's order data.
func (r *SettlementRecord) OrderJSON() (json.RawMessage, error) {
	switch {
	case r.Status == SettlementConfirmed && r.Order != nil:
		return json.Marshal(r.Order)
	case r.Status == SettlementFailed && len(r.FailureBody) > 0:
		return r.FailureBody, nil
	default:
		return nil, nil
	}
}

type KeyType string

const (
	KeyTypeInvoiceID KeyType = "InvoiceId"
	KeyTypePaymentID KeyType = "PaymentId"
)

// PaymentKey addresses an invoice or a payment at the gateway.
type PaymentKey struct {
	Key     string  `json:"Key"`
	KeyType KeyType `json:"KeyType"`
}

func InvoiceKey(invoiceID string) PaymentKey {
	return PaymentKey{Key: invoiceID, KeyType: KeyTypeInvoiceID}
}
