// Package records mirrors each processed payment into an audit store.
// Writes are best effort; the registration document remains the source of
// truth.
package records

import (
	"context"
	"time"

	"github.com/google/uuid"

	payment "confreg/internal/payment/models"
)

// Record is one payment as processed by the receipt pipeline.
type Record struct {
	ID                 string    `db:"id" json:"id"`
	RegistrationID     string    `db:"registration_id" json:"registrationId"`
	RegistrationDocID  string    `db:"registration_doc_id" json:"registrationDocId,omitempty"`
	TransactionID      string    `db:"transaction_id" json:"transactionId"`
	OrderID            string    `db:"order_id" json:"orderId,omitempty"`
	Method             string    `db:"method" json:"paymentMethod"`
	Amount             string    `db:"amount" json:"amount"`
	Currency           string    `db:"currency" json:"currency"`
	Status             string    `db:"status" json:"status"`
	EmailSent          bool      `db:"email_sent" json:"emailSent"`
	EmailRecipient     string    `db:"email_recipient" json:"emailRecipient,omitempty"`
	ReceiptGenerated   bool      `db:"receipt_generated" json:"receiptGenerated"`
	PDFAssetID         string    `db:"pdf_asset_id" json:"pdfAssetId,omitempty"`
	ProcessingAttempts int       `db:"processing_attempts" json:"processingAttempts"`
	CapturedAt         time.Time `db:"captured_at" json:"capturedAt"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`
}

// New seeds a record from a normalized payment.
func New(registrationID, documentID string, ev payment.PaymentEvent, now time.Time) Record {
	return Record{
		ID:                 uuid.NewString(),
		RegistrationID:     registrationID,
		RegistrationDocID:  documentID,
		TransactionID:      ev.TransactionID,
		OrderID:            ev.OrderID,
		Method:             ev.Method.String(),
		Amount:             ev.Amount,
		Currency:           ev.Currency,
		Status:             ev.Status,
		ProcessingAttempts: 1,
		CapturedAt:         ev.CapturedAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Store persists records keyed by transaction id. Upsert on an existing
// transaction keeps the original ID and CreatedAt, bumps
// ProcessingAttempts and never clears EmailSent or ReceiptGenerated.
type Store interface {
	Upsert(ctx context.Context, r Record) (Record, error)
	FindByTransactionID(ctx context.Context, transactionID string) (Record, error)
	ListByRegistration(ctx context.Context, registrationID string) ([]Record, error)
}

func merge(existing, next Record) Record {
	next.ID = existing.ID
	next.CreatedAt = existing.CreatedAt
	next.ProcessingAttempts = existing.ProcessingAttempts + 1
	next.EmailSent = next.EmailSent || existing.EmailSent
	next.ReceiptGenerated = next.ReceiptGenerated || existing.ReceiptGenerated
	if next.EmailRecipient == "" {
		next.EmailRecipient = existing.EmailRecipient
	}
	if next.PDFAssetID == "" {
		next.PDFAssetID = existing.PDFAssetID
	}
	if next.CapturedAt.IsZero() {
		next.CapturedAt = existing.CapturedAt
	}
	return next
}
