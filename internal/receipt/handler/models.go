package handler

import (
	"time"

	payment "confreg/internal/payment/models"
	"confreg/internal/receipt/service"
)

// processCompletionRequest is the body of POST /payment/process-completion.
type processCompletionRequest struct {
	RegistrationID string             `json:"registrationId" validate:"required"`
	PaymentData    payment.RawPayment `json:"paymentData" validate:"required"`
	PaymentMethod  string             `json:"paymentMethod" validate:"required,oneof=paypal razorpay"`
	CustomerEmail  string             `json:"customerEmail" validate:"omitempty,email"`
	ForceRetry     bool               `json:"forceRetry"`
}

// retryRequest is the body of PUT /payment/process-completion and of the
// admin resend endpoint.
type retryRequest struct {
	RegistrationID string `json:"registrationId" validate:"required"`
	ForceRetry     bool   `json:"forceRetry"`
	CustomerEmail  string `json:"customerEmail" validate:"omitempty,email"`
}

type payPalCaptureRequest struct {
	OrderID        string `json:"orderId" validate:"required"`
	RegistrationID string `json:"registrationId" validate:"required"`
	CustomerEmail  string `json:"customerEmail" validate:"omitempty,email"`
}

type razorpayVerifyRequest struct {
	OrderID        string `json:"razorpay_order_id" validate:"required"`
	PaymentID      string `json:"razorpay_payment_id" validate:"required"`
	Signature      string `json:"razorpay_signature" validate:"required"`
	RegistrationID string `json:"registrationId" validate:"required"`
	CustomerEmail  string `json:"customerEmail" validate:"omitempty,email"`
}

// razorpayWebhook is the subset of a Razorpay webhook delivery we read.
type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID       string            `json:"id"`
				OrderID  string            `json:"order_id"`
				Amount   int64             `json:"amount"`
				Currency string            `json:"currency"`
				Status   string            `json:"status"`
				Email    string            `json:"email"`
				Notes    map[string]string `json:"notes"`

				ErrorCode        string `json:"error_code"`
				ErrorDescription string `json:"error_description"`
				ErrorReason      string `json:"error_reason"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// payPalWebhook is the subset of a PayPal capture event we read.
type payPalWebhook struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID       string `json:"id"`
		CustomID string `json:"custom_id"`
		Status   string `json:"status"`
		Amount   struct {
			Value        string `json:"value"`
			CurrencyCode string `json:"currency_code"`
		} `json:"amount"`
		CreateTime    string `json:"create_time"`
		StatusDetails struct {
			Reason string `json:"reason"`
		} `json:"status_details"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

type receiptPDFRequest struct {
	RegistrationID string `json:"registrationId"`
}

type webhookAck struct {
	Received       bool   `json:"received"`
	Event          string `json:"event,omitempty"`
	Ignored        bool   `json:"ignored,omitempty"`
	RegistrationID string `json:"registrationId,omitempty"`
	PaymentStatus  string `json:"paymentStatus,omitempty"`
}

type receiptData struct {
	RegistrationID string     `json:"registrationId"`
	PaymentMethod  string     `json:"paymentMethod"`
	TransactionID  string     `json:"transactionId"`
	EmailSent      bool       `json:"emailSent"`
	MessageID      string     `json:"messageId,omitempty"`
	PDFGenerated   bool       `json:"pdfGenerated"`
	PDFUploaded    bool       `json:"pdfUploaded"`
	PDFAssetID     string     `json:"pdfAssetId,omitempty"`
	State          string     `json:"state"`
	Failures       []string   `json:"failures,omitempty"`
	ProcessedAt    *time.Time `json:"processedAt,omitempty"`
}

type processCompletionResponse struct {
	Success       bool        `json:"success"`
	Message       string      `json:"message"`
	TransactionID string      `json:"transactionId"`
	EmailSent     bool        `json:"emailSent"`
	PDFGenerated  bool        `json:"pdfGenerated"`
	PDFUploaded   bool        `json:"pdfUploaded"`
	Data          receiptData `json:"data"`
}

type alreadyProcessedResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	AlreadyProcessed bool   `json:"alreadyProcessed"`
	TransactionID    string `json:"transactionId"`
}

type statusFlags struct {
	PaymentCompleted bool       `json:"paymentCompleted"`
	PaymentStatus    string     `json:"paymentStatus,omitempty"`
	EmailSent        bool       `json:"emailSent"`
	EmailSentAt      *time.Time `json:"emailSentAt"`
	EmailRecipient   string     `json:"emailRecipient,omitempty"`
	PDFGenerated     bool       `json:"pdfGenerated"`
	PDFStored        bool       `json:"pdfStored"`
	PDFAssetID       string     `json:"pdfAssetId,omitempty"`
	WebhookProcessed bool       `json:"webhookProcessed"`
	LastResult       string     `json:"lastAutomaticProcessingResult,omitempty"`
	PaymentMethod    string     `json:"paymentMethod"`
	LastUpdated      *time.Time `json:"lastUpdated"`
}

type statusResponse struct {
	Success        bool        `json:"success"`
	RegistrationID string      `json:"registrationId"`
	Status         statusFlags `json:"status"`
}

// captureResponse is returned by both gateway capture endpoints. The
// payment result never depends on the receipt outcome.
type captureResponse struct {
	Success       bool         `json:"success"`
	TransactionID string       `json:"transactionId"`
	OrderID       string       `json:"orderId"`
	Amount        string       `json:"amount"`
	Currency      string       `json:"currency"`
	Status        string       `json:"status"`
	PaymentMethod string       `json:"paymentMethod"`
	CapturedAt    time.Time    `json:"capturedAt"`
	Receipt       *receiptData `json:"receipt,omitempty"`
	ReceiptError  string       `json:"receiptError,omitempty"`
}

type failureResponse struct {
	Success        bool     `json:"success"`
	Error          string   `json:"error"`
	Required       []string `json:"required,omitempty"`
	RegistrationID string   `json:"registrationId,omitempty"`
}

type internalErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toReceiptData(res *service.Result) receiptData {
	d := receiptData{
		RegistrationID: res.RegistrationID,
		PaymentMethod:  res.Method.String(),
		TransactionID:  res.TransactionID,
		EmailSent:      res.EmailSent,
		MessageID:      res.MessageID,
		PDFGenerated:   res.PDFGenerated,
		PDFUploaded:    res.PDFUploaded,
		PDFAssetID:     res.PDFAssetID,
		State:          string(res.State),
	}
	if !res.ProcessedAt.IsZero() {
		at := res.ProcessedAt
		d.ProcessedAt = &at
	}
	for _, f := range res.Failures {
		d.Failures = append(d.Failures, f.Step)
	}
	return d
}

func toStatusResponse(v *service.StatusView) statusResponse {
	return statusResponse{
		Success:        true,
		RegistrationID: v.RegistrationID,
		Status: statusFlags{
			PaymentCompleted: v.PaymentCompleted,
			PaymentStatus:    v.PaymentStatus,
			EmailSent:        v.EmailSent,
			EmailSentAt:      v.EmailSentAt,
			EmailRecipient:   v.EmailRecipient,
			PDFGenerated:     v.PDFGenerated,
			PDFStored:        v.PDFStored,
			PDFAssetID:       v.PDFAssetID,
			WebhookProcessed: v.WebhookProcessed,
			LastResult:       v.LastResult,
			PaymentMethod:    v.PaymentMethod,
			LastUpdated:      v.LastUpdated,
		},
	}
}

func toCaptureResponse(out *service.CaptureResult) captureResponse {
	resp := captureResponse{
		Success:       true,
		TransactionID: out.Event.TransactionID,
		OrderID:       out.Event.OrderID,
		Amount:        out.Event.Amount,
		Currency:      out.Event.Currency,
		Status:        out.Event.Status,
		PaymentMethod: out.Event.Method.String(),
		CapturedAt:    out.Event.CapturedAt,
	}
	if out.Receipt != nil {
		d := toReceiptData(out.Receipt)
		resp.Receipt = &d
		if !out.Receipt.EmailSent {
			resp.ReceiptError = "receipt email could not be sent; it can be resent later"
		}
	}
	if out.ReceiptErr != nil {
		resp.ReceiptError = out.ReceiptErr.Error()
	}
	return resp
}
