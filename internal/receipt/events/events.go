// Package events publishes the outcome of every receipt pipeline run so
// downstream consumers (reconciliation, dashboards) do not have to poll the
// CMS.
package events

import (
	"context"
	"time"
)

// TypeReceiptProcessed is the only event type emitted today.
const TypeReceiptProcessed = "receipt.processed"

// StepFailure is a non-fatal failure recorded during a run.
type StepFailure struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// Outcome summarizes one pipeline run.
type Outcome struct {
	EventID          string        `json:"eventId"`
	Type             string        `json:"type"`
	RegistrationID   string        `json:"registrationId"`
	TransactionID    string        `json:"transactionId,omitempty"`
	Method           string        `json:"paymentMethod,omitempty"`
	State            string        `json:"state"`
	Success          bool          `json:"success"`
	AlreadyProcessed bool          `json:"alreadyProcessed,omitempty"`
	Forced           bool          `json:"forced,omitempty"`
	EmailSent        bool          `json:"emailSent"`
	PDFGenerated     bool          `json:"pdfGenerated"`
	PDFUploaded      bool          `json:"pdfUploaded"`
	Failures         []StepFailure `json:"failures,omitempty"`
	RequestID        string        `json:"requestId,omitempty"`
	OccurredAt       time.Time     `json:"occurredAt"`
}

// Publisher delivers outcomes. Publish must not block the pipeline for long;
// implementations may drop events rather than fail the caller.
type Publisher interface {
	Publish(ctx context.Context, o Outcome) error
	Close()
}

// Nop discards every outcome.
type Nop struct{}

func (Nop) Publish(context.Context, Outcome) error { return nil }
func (Nop) Close()                                 {}
