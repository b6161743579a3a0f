package service

import (
	"strings"
	"time"

	payment "confreg/internal/payment/models"
	"confreg/internal/receipt/events"
	dErrors "confreg/pkg/domain-errors"
)

// State is how far a run progressed. Steps after REGISTRATION_RESOLVED can
// fail without stopping the run, so a DONE run may still carry Failures.
type State string

const (
	StateCaptured             State = "CAPTURED"
	StateRegistrationResolved State = "REGISTRATION_RESOLVED"
	StateReceiptRendered      State = "RECEIPT_RENDERED"
	StateEmailSent            State = "EMAIL_SENT"
	StatePersisted            State = "PERSISTED"
	StateDone                 State = "DONE"
)

// Step names used in logs, spans, metrics and Result.Failures.
const (
	stepResolve = "resolve"
	stepRender  = "render"
	stepEmail   = "email"
	stepUpload  = "upload"
	stepStatus  = "status"
	stepRecord  = "record"
)

const (
	outcomeDone             = "done"
	outcomeAlreadyProcessed = "already_processed"
	outcomeNotFound         = "not_found"
	outcomeLocked           = "locked"
	outcomeError            = "error"
	outcomePaymentFailed    = "payment_failed"
)

// ProcessRequest starts a run. Payment is the raw paymentData posted by the
// caller; Event, when set, takes precedence (captures and retries already
// hold a normalized event).
type ProcessRequest struct {
	RegistrationID string
	Payment        payment.RawPayment
	Method         payment.Method
	CustomerEmail  string
	ForceRetry     bool
	Event          *payment.PaymentEvent
}

func (r ProcessRequest) validate() error {
	var missing []string
	if strings.TrimSpace(r.RegistrationID) == "" {
		missing = append(missing, "registrationId")
	}
	if r.Event == nil {
		if r.Payment == nil {
			missing = append(missing, "paymentData")
		}
		if r.Method == "" {
			missing = append(missing, "paymentMethod")
		}
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "missing required parameters: "+strings.Join(missing, ", "))
	}
	return nil
}

func (r ProcessRequest) event(now time.Time) payment.PaymentEvent {
	if r.Event != nil {
		return *r.Event
	}
	return payment.Normalize(r.Method, r.Payment, now)
}

// Result describes a completed (possibly degraded) run.
type Result struct {
	RegistrationID   string
	TransactionID    string
	Method           payment.Method
	Event            payment.PaymentEvent
	State            State
	AlreadyProcessed bool
	Forced           bool
	EmailSent        bool
	EmailRecipient   string
	EmailTransport   string
	MessageID        string
	PDFGenerated     bool
	PDFUploaded      bool
	PDFAssetID       string
	StatusPersisted  bool
	Failures         []events.StepFailure
	ProcessedAt      time.Time
}

// Failed reports whether the named step failed.
func (r *Result) Failed(step string) bool {
	for _, f := range r.Failures {
		if f.Step == step {
			return true
		}
	}
	return false
}

// StatusView is the processing state of a registration.
type StatusView struct {
	RegistrationID   string
	PaymentCompleted bool
	PaymentStatus    string
	PaymentMethod    string
	EmailSent        bool
	EmailSentAt      *time.Time
	EmailRecipient   string
	PDFGenerated     bool
	PDFStored        bool
	PDFAssetID       string
	WebhookProcessed bool
	LastResult       string
	LastUpdated      *time.Time
}

// CaptureRequest captures a payment and then runs the pipeline.
type CaptureRequest struct {
	Method         payment.Method
	RegistrationID string
	OrderID        string
	PaymentID      string
	Signature      string
	CustomerEmail  string
}

// CaptureResult always carries the captured payment. Receipt is nil and
// ReceiptErr set when the pipeline could not run; neither makes the capture
// fail.
type CaptureResult struct {
	Event      payment.PaymentEvent
	Receipt    *Result
	ReceiptErr error
}

// PaymentFailure is a gateway report that a payment was declined or failed.
type PaymentFailure struct {
	RegistrationID string
	Method         payment.Method
	PaymentID      string
	Reason         string
}

// FailureResult tells whether the failure was written. A completed payment
// is never downgraded.
type FailureResult struct {
	RegistrationID string
	Applied        bool
	PaymentStatus  string
}
