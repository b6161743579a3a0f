package records

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"confreg/internal/platform/sanity"
	"confreg/pkg/platform/sentinel"
)

// DocumentType is the CMS type of mirrored payment records.
const DocumentType = "paymentRecord"

// CMS is the subset of the Sanity client SanityStore needs.
type CMS interface {
	Query(ctx context.Context, groq string, params map[string]any, out any) error
	Mutate(ctx context.Context, mutations ...sanity.Mutation) (sanity.MutateResult, error)
}

// SanityStore keeps records as paymentRecord documents with a reference to
// the registration document.
type SanityStore struct {
	cms CMS
}

func NewSanityStore(cms CMS) *SanityStore {
	return &SanityStore{cms: cms}
}

var docIDUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// DocumentID derives a stable document id so retries replace one document.
func DocumentID(transactionID string) string {
	return "paymentRecord-" + docIDUnsafe.ReplaceAllString(transactionID, "-")
}

func (s *SanityStore) Upsert(ctx context.Context, r Record) (Record, error) {
	existing, err := s.FindByTransactionID(ctx, r.TransactionID)
	switch {
	case err == nil:
		r = merge(existing, r)
	case !errors.Is(err, sentinel.ErrNotFound):
		return Record{}, err
	}

	doc := map[string]any{
		"_id":                DocumentID(r.TransactionID),
		"_type":              DocumentType,
		"id":                 r.ID,
		"registrationId":     r.RegistrationID,
		"transactionId":      r.TransactionID,
		"orderId":            r.OrderID,
		"paymentMethod":      r.Method,
		"amount":             r.Amount,
		"currency":           r.Currency,
		"status":             r.Status,
		"emailSent":          r.EmailSent,
		"emailRecipient":     r.EmailRecipient,
		"receiptGenerated":   r.ReceiptGenerated,
		"pdfAssetId":         r.PDFAssetID,
		"processingAttempts": r.ProcessingAttempts,
		"capturedAt":         formatTime(r.CapturedAt),
		"createdAt":          formatTime(r.CreatedAt),
		"updatedAt":          formatTime(r.UpdatedAt),
	}
	if r.RegistrationDocID != "" {
		doc["registrationRef"] = map[string]any{"_type": "reference", "_ref": r.RegistrationDocID}
	}
	if _, err := s.cms.Mutate(ctx, sanity.Mutation{CreateOrReplace: doc}); err != nil {
		return Record{}, fmt.Errorf("upsert payment record %s: %w", r.TransactionID, err)
	}
	return r, nil
}

const recordProjection = `{
  "id": id, registrationId, "registrationDocId": registrationRef._ref,
  transactionId, orderId, paymentMethod, amount, currency, status,
  emailSent, emailRecipient, receiptGenerated, pdfAssetId, processingAttempts,
  capturedAt, createdAt, updatedAt
}`

func (s *SanityStore) FindByTransactionID(ctx context.Context, transactionID string) (Record, error) {
	var r Record
	err := s.cms.Query(ctx,
		`*[_type == "paymentRecord" && transactionId == $transactionId][0]`+recordProjection,
		map[string]any{"transactionId": transactionID}, &r)
	if err != nil {
		return Record{}, err
	}
	if r.TransactionID == "" {
		return Record{}, sentinel.ErrNotFound
	}
	return r, nil
}

func (s *SanityStore) ListByRegistration(ctx context.Context, registrationID string) ([]Record, error) {
	var out []Record
	err := s.cms.Query(ctx,
		`*[_type == "paymentRecord" && registrationId == $registrationId] | order(createdAt asc)`+recordProjection,
		map[string]any{"registrationId": registrationID}, &out)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	return out, err
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
