package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The UNIQUE constraint on settlements.invoice_id is what keeps a second
// delivery of the same invoice from writing another outcome.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS settlements (
		id              BIGSERIAL PRIMARY KEY,
		invoice_id      TEXT NOT NULL,
		payment_id      TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL CHECK (status IN ('CONFIRMED', 'FAILED')),
		invoice_value   NUMERIC(14, 3) NOT NULL DEFAULT 0,
		booking_type    TEXT NOT NULL,
		order_data      JSONB,
		booking_payload JSONB,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT settlements_invoice_id_key UNIQUE (invoice_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_settlements_payment_id ON settlements (payment_id) WHERE payment_id <> ''`,
	`CREATE TABLE IF NOT EXISTS airlines (
		id      BIGSERIAL PRIMARY KEY,
		code    TEXT NOT NULL UNIQUE,
		name_en TEXT NOT NULL DEFAULT '',
		name_ar TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS airports (
		id         BIGSERIAL PRIMARY KEY,
		code       TEXT NOT NULL UNIQUE,
		name_en    TEXT NOT NULL DEFAULT '',
		name_ar    TEXT NOT NULL DEFAULT '',
		city_en    TEXT NOT NULL DEFAULT '',
		city_ar    TEXT NOT NULL DEFAULT '',
		country_en TEXT NOT NULL DEFAULT '',
		country_ar TEXT NOT NULL DEFAULT ''
	)`,
}

func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
