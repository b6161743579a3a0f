package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"confreg/pkg/platform/sentinel"
)

const schema = `
CREATE TABLE IF NOT EXISTS payment_records (
	id                  TEXT PRIMARY KEY,
	registration_id     TEXT NOT NULL,
	registration_doc_id TEXT NOT NULL DEFAULT '',
	transaction_id      TEXT NOT NULL UNIQUE,
	order_id            TEXT NOT NULL DEFAULT '',
	method              TEXT NOT NULL,
	amount              TEXT NOT NULL,
	currency            TEXT NOT NULL,
	status              TEXT NOT NULL,
	email_sent          BOOLEAN NOT NULL DEFAULT FALSE,
	email_recipient     TEXT NOT NULL DEFAULT '',
	receipt_generated   BOOLEAN NOT NULL DEFAULT FALSE,
	pdf_asset_id        TEXT NOT NULL DEFAULT '',
	processing_attempts INTEGER NOT NULL DEFAULT 1,
	captured_at         TIMESTAMPTZ NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS payment_records_registration_idx ON payment_records (registration_id);
`

const upsertQuery = `
INSERT INTO payment_records (
	id, registration_id, registration_doc_id, transaction_id, order_id, method,
	amount, currency, status, email_sent, email_recipient, receipt_generated,
	pdf_asset_id, processing_attempts, captured_at, created_at, updated_at
) VALUES (
	:id, :registration_id, :registration_doc_id, :transaction_id, :order_id, :method,
	:amount, :currency, :status, :email_sent, :email_recipient, :receipt_generated,
	:pdf_asset_id, :processing_attempts, :captured_at, :created_at, :updated_at
)
ON CONFLICT (transaction_id) DO UPDATE SET
	registration_id     = EXCLUDED.registration_id,
	registration_doc_id = EXCLUDED.registration_doc_id,
	order_id            = EXCLUDED.order_id,
	method              = EXCLUDED.method,
	amount              = EXCLUDED.amount,
	currency            = EXCLUDED.currency,
	status              = EXCLUDED.status,
	email_sent          = payment_records.email_sent OR EXCLUDED.email_sent,
	email_recipient     = COALESCE(NULLIF(EXCLUDED.email_recipient, ''), payment_records.email_recipient),
	receipt_generated   = payment_records.receipt_generated OR EXCLUDED.receipt_generated,
	pdf_asset_id        = COALESCE(NULLIF(EXCLUDED.pdf_asset_id, ''), payment_records.pdf_asset_id),
	processing_attempts = payment_records.processing_attempts + 1,
	captured_at         = GREATEST(EXCLUDED.captured_at, payment_records.captured_at),
	updated_at          = EXCLUDED.updated_at
RETURNING *`

const selectColumns = `id, registration_id, registration_doc_id, transaction_id, order_id, method,
	amount, currency, status, email_sent, email_recipient, receipt_generated,
	pdf_asset_id, processing_attempts, captured_at, created_at, updated_at`

// PostgresStore keeps records in the payment_records table.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure payment_records schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, r Record) (Record, error) {
	stmt, err := s.db.PrepareNamedContext(ctx, upsertQuery)
	if err != nil {
		return Record{}, fmt.Errorf("prepare upsert payment record: %w", err)
	}
	defer stmt.Close()

	var out Record
	if err := stmt.GetContext(ctx, &out, r); err != nil {
		return Record{}, fmt.Errorf("upsert payment record %s: %w", r.TransactionID, err)
	}
	return out, nil
}

func (s *PostgresStore) FindByTransactionID(ctx context.Context, transactionID string) (Record, error) {
	var out Record
	err := s.db.GetContext(ctx, &out,
		`SELECT `+selectColumns+` FROM payment_records WHERE transaction_id = $1`, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("find payment record %s: %w", transactionID, err)
	}
	return out, nil
}

func (s *PostgresStore) ListByRegistration(ctx context.Context, registrationID string) ([]Record, error) {
	var out []Record
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+selectColumns+` FROM payment_records WHERE registration_id = $1 ORDER BY created_at`, registrationID)
	if err != nil {
		return nil, fmt.Errorf("list payment records for %s: %w", registrationID, err)
	}
	return out, nil
}
