package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Domenick1991/airsettle/internal/apperr"
	"github.com/Domenick1991/airsettle/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSettlementNotFound = fmt.Errorf("settlement record %w", apperr.ErrNotFound)

type SettlementRepository interface {
	// Create inserts record unless one already exists for its invoice. It
	// reports whether this call wrote the row.
	Create(ctx context.Context, record *domain.SettlementRecord) (bool, error)
	GetByInvoiceID(ctx context.Context, invoiceID string) (*domain.SettlementRecord, error)
}

type PGSettlementRepository struct {
	db *pgxpool.Pool
}

func NewSettlementRepository(db *pgxpool.Pool) SettlementRepository {
	return &PGSettlementRepository{db: db}
}

func (r *PGSettlementRepository) Create(ctx context.Context, record *domain.SettlementRecord) (bool, error) {
	orderData, bookingPayload, err := encodePayloads(record)
	if err != nil {
		return false, err
	}

	err = r.db.QueryRow(ctx, `INSERT INTO settlements (invoice_id, payment_id, status, invoice_value, booking_type, order_data, booking_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (invoice_id) DO NOTHING
		RETURNING id, created_at`,
		record.InvoiceID, record.PaymentID, record.Status, record.InvoiceValue, record.BookingType, orderData, bookingPayload).
		Scan(&record.ID, &record.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert settlement %s: %w", record.InvoiceID, err)
	}
	return true, nil
}

func (r *PGSettlementRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*domain.SettlementRecord, error) {
	row := r.db.QueryRow(ctx, `SELECT id, invoice_id, payment_id, status, invoice_value, booking_type, order_data, booking_payload, created_at
		FROM settlements WHERE invoice_id=$1`, invoiceID)

	var (
		rec            domain.SettlementRecord
		orderData      []byte
		bookingPayload []byte
	)
	if err := row.Scan(&rec.ID, &rec.InvoiceID, &rec.PaymentID, &rec.Status, &rec.InvoiceValue, &rec.BookingType, &orderData, &bookingPayload, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettlementNotFound
		}
		return nil, err
	}

	if err := decodePayloads(&rec, orderData, bookingPayload); err != nil {
		return nil, err
	}
	return &rec, nil
}

// encodePayloads maps the record's variant fields onto the order_data and
// booking_payload columns.
func encodePayloads(record *domain.SettlementRecord) (orderData, bookingPayload []byte, err error) {
	switch record.Status {
	case domain.SettlementConfirmed:
		if record.Order != nil {
			if orderData, err = json.Marshal(record.Order); err != nil {
				return nil, nil, fmt.Errorf("marshal order data: %w", err)
			}
		}
	case domain.SettlementFailed:
		if len(record.FailureBody) > 0 {
			orderData = []byte(record.FailureBody)
		}
	default:
		return nil, nil, fmt.Errorf("settlement status %q: %w", record.Status, apperr.ErrInvalidInput)
	}

	if record.BookingPayload != nil {
		if bookingPayload, err = json.Marshal(record.BookingPayload); err != nil {
			return nil, nil, fmt.Errorf("marshal booking payload: %w", err)
		}
	}
	return orderData, bookingPayload, nil
}

func decodePayloads(rec *domain.SettlementRecord, orderData, bookingPayload []byte) error {
	if len(orderData) > 0 {
		if rec.Status == domain.SettlementConfirmed {
			var data domain.OrderData
			if err := json.Unmarshal(orderData, &data); err != nil {
				return fmt.Errorf("decode order data for %s: %w", rec.InvoiceID, err)
			}
			rec.Order = &data
		} else {
			rec.FailureBody = json.RawMessage(orderData)
		}
	}
	if len(bookingPayload) > 0 {
		var payload domain.BookingPayload
		if err := json.Unmarshal(bookingPayload, &payload); err != nil {
			return fmt.Errorf("decode booking payload for %s: %w", rec.InvoiceID, err)
		}
		rec.BookingPayload = &payload
	}
	return nil
}

var _ SettlementRepository = (*PGSettlementRepository)(nil)
